package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illarion/credvault/cmd"
	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
	"github.com/illarion/credvault/internal/generator"
	"github.com/illarion/credvault/internal/logging"
)

var version = "dev" // set by the linker

var (
	cfgFile string
	cfg     config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "credvault",
		Short:        "Encrypted credential vault with CSV import and export",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(c.Flags(), cfgFile); err != nil {
				return err
			}
			return logging.Setup(cfg.LogLevel, os.Stderr)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches the user and system config dirs)")
	root.PersistentFlags().String("vault", "", "path to the vault file")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		initCmd(),
		addCmd(),
		listCmd(),
		showCmd(),
		rmCmd(),
		exportCmd(),
		importCmd(),
		passwdCmd(),
		statusCmd(),
		compactCmd(),
		generateCmd(),
		keyringCmd(),
		configCmd(),
	)
	return root
}

func initCmd() *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "init",
		Short: "Create a new vault",
		Long: `Creates the vault file and sets the master password.
The password is read from CREDVAULT_PASSWORD or prompted twice.
The password is not stored anywhere unless you save it to the OS keyring.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cmd.Init(cfg, force)
		},
	}
	c.Flags().BoolVar(&force, "force", false, "re-initialize an existing vault (stored passwords become unreadable)")
	return c
}

// generatorFlags registers the character class flags shared by add and generate
func generatorFlags(c *cobra.Command, length *int, noLetters, noNumbers, noSpecial *bool) {
	c.Flags().IntVarP(length, "length", "l", generator.DefaultLength, fmt.Sprintf("password length (%d-%d)", generator.MinLength, generator.MaxLength))
	c.Flags().BoolVar(noLetters, "no-letters", false, "exclude letters")
	c.Flags().BoolVar(noNumbers, "no-numbers", false, "exclude digits")
	c.Flags().BoolVar(noSpecial, "no-special", false, "exclude special characters")
}

func generatorOptions(noLetters, noNumbers, noSpecial bool) generator.Options {
	return generator.Options{
		Letters: !noLetters,
		Numbers: !noNumbers,
		Special: !noSpecial,
	}
}

func addCmd() *cobra.Command {
	var (
		generate                        bool
		length                          int
		noLetters, noNumbers, noSpecial bool
	)
	c := &cobra.Command{
		Use:   "add <service> <username>",
		Short: "Store a credential",
		Long: `Stores a credential. The password is prompted twice, or generated
with --generate and printed once.`,
		Example: `  credvault add GitHub octocat
  credvault add Bank me --generate --length 20 --no-special`,
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			cmd.Add(cfg, args[0], args[1], cmd.AddOptions{
				Generate:  generate,
				Length:    length,
				Generator: generatorOptions(noLetters, noNumbers, noSpecial),
			})
		},
	}
	c.Flags().BoolVarP(&generate, "generate", "g", false, "generate a random password")
	generatorFlags(c, &length, &noLetters, &noNumbers, &noSpecial)
	return c
}

func listCmd() *cobra.Command {
	var showPasswords bool
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored credentials",
		Args:    cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cmd.List(cfg, showPasswords)
		},
	}
	c.Flags().BoolVarP(&showPasswords, "show-passwords", "p", false, "print passwords in clear text")
	return c
}

func showCmd() *cobra.Command {
	var copyToClipboard bool
	c := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one credential",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cmd.Show(cfg, args[0], copyToClipboard)
		},
	}
	c.Flags().BoolVarP(&copyToClipboard, "copy", "c", false, "copy the password to the clipboard instead of printing it")
	return c
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id> [id...]",
		Short: "Remove credentials",
		Long:  "Removes credentials by id and compacts the vault. Unknown ids are ignored.",
		Args:  cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cmd.Remove(cfg, args)
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export credentials to a plaintext CSV file",
		Long: `Writes every credential to a CSV file with the columns
name,url,username,password,note. The file holds plaintext passwords and is
created with owner-only permissions.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cmd.Export(cfg, args[0])
		},
	}
}

func importCmd() *cobra.Command {
	var opts core.ImportOptions
	c := &cobra.Command{
		Use:   "import <file>",
		Short: "Import credentials from a CSV file",
		Long: `Reads credentials from a CSV file with a header row. Accepted column
names (case-insensitive): name/service/title, username/login/user,
password/pass. Other columns are ignored.

Rows matching an existing credential by service and username (ignoring case)
are skipped unless --merge is given, which overwrites the stored password.`,
		Example: `  credvault import passwords.csv
  credvault import passwords.csv --merge --dry-run`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cmd.Import(cfg, args[0], opts)
		},
	}
	c.Flags().BoolVarP(&opts.MergeDuplicates, "merge", "m", false, "overwrite passwords of duplicate credentials")
	c.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "report what would happen without writing")
	return c
}

func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password",
		Long:  "Re-encrypts every credential under a new master password and a fresh salt.",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cmd.Passwd(cfg)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vault information",
		Long:  "Shows the vault location, size, credential count and encryption settings. Does not require a password.",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cmd.Status(cfg)
		},
	}
}

func compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the vault to reclaim disk space",
		Long: `Compacts the vault database to reclaim unused disk space.
This is done automatically after 'rm' and 'passwd'.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cmd.Compact(cfg)
		},
	}
}

func generateCmd() *cobra.Command {
	var (
		length                          int
		noLetters, noNumbers, noSpecial bool
	)
	c := &cobra.Command{
		Use:   "generate",
		Short: "Print a random password",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cmd.Generate(length, generatorOptions(noLetters, noNumbers, noSpecial))
		},
	}
	generatorFlags(c, &length, &noLetters, &noNumbers, &noSpecial)
	return c
}

func keyringCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "keyring",
		Short: "Manage the master password cached in the OS keyring",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "save",
			Short: "Save the master password to the keyring",
			Args:  cobra.NoArgs,
			Run:   func(_ *cobra.Command, _ []string) { cmd.KeyringSave(cfg) },
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the master password from the keyring",
			Args:  cobra.NoArgs,
			Run:   func(_ *cobra.Command, _ []string) { cmd.KeyringDelete(cfg) },
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether the keyring holds the master password",
			Args:  cobra.NoArgs,
			Run:   func(_ *cobra.Command, _ []string) { cmd.KeyringStatus(cfg) },
		},
	)
	return c
}

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var system bool
	initC := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to a new config file",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cmd.ConfigInit(cfg, system)
		},
	}
	initC.Flags().BoolVar(&system, "system", false, "write the system-wide config instead of the user config")

	c.AddCommand(initC)
	return c
}
