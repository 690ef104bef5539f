package cmd

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"

	"github.com/illarion/credvault/internal/config"
)

// Show prints one credential, or copies its password to the clipboard
func Show(cfg config.Config, arg string, copyToClipboard bool) {
	id, err := parseID(arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	vault := unlockVault(cfg)
	defer vault.Close()

	cred, err := vault.Get(id)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Service:  %s\n", cred.Service)
	fmt.Printf("Username: %s\n", cred.Username)

	if copyToClipboard {
		if err := clipboard.WriteAll(cred.Password); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to copy to clipboard: %s\n", err)
			os.Exit(1)
		}
		fmt.Println("Password: copied to clipboard")
		return
	}
	fmt.Printf("Password: %s\n", cred.Password)
}
