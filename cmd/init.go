package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
	"github.com/illarion/credvault/internal/crypto"
)

// Init creates a new vault
func Init(cfg config.Config, force bool) {
	vault := core.New(cfg)
	defer vault.Close()

	refuseExisting(vault, force)

	// Read password (env var or prompt with confirmation)
	password, err := GetPasswordForInit("New master password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	// The file may have appeared while the prompt was open
	refuseExisting(vault, force)

	if err := vault.Initialize(password); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Initialized vault at %s\n", vault.Path())

	if cfg.UseKeyring {
		OfferToSavePassword(vault, password)
	}
}

// refuseExisting exits when the vault is initialized and force is unset, or
// when the file is present but cannot be opened. A file held by another
// process is never overwritten, even with force.
func refuseExisting(vault *core.Vault, force bool) {
	exists, err := vault.Exists()
	if err != nil {
		HandleError(err)
	}
	if exists && !force {
		fmt.Fprintf(os.Stderr, "Error: vault already exists at %s\n", vault.Path())
		fmt.Fprintf(os.Stderr, "Re-initializing makes every stored password unreadable.\n")
		fmt.Fprintf(os.Stderr, "Use 'credvault init --force' if that is what you want\n")
		os.Exit(1)
	}
}
