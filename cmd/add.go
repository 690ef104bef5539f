package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
	"github.com/illarion/credvault/internal/crypto"
	"github.com/illarion/credvault/internal/generator"
)

// AddOptions controls how the credential password is obtained
type AddOptions struct {
	Generate  bool
	Length    int
	Generator generator.Options
}

// Add stores a new credential. The password is generated or prompted.
func Add(cfg config.Config, service, username string, opts AddOptions) {
	if service == "" || username == "" {
		fmt.Fprintf(os.Stderr, "Error: service and username must not be empty\n")
		os.Exit(1)
	}

	var password []byte
	if opts.Generate {
		generated, err := generator.Password(opts.Length, opts.Generator)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		password = []byte(generated)
	} else {
		var err error
		password, err = core.ReadPasswordConfirm(fmt.Sprintf("Password for %s: ", service))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}
	defer crypto.ClearBytes(password)

	vault := unlockVault(cfg)
	defer vault.Close()

	id, err := vault.Save(service, username, password)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Saved %s / %s (id %d)\n", service, username, id)
	if opts.Generate {
		fmt.Printf("Generated password: %s\n", password)
	}
}
