package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
	"github.com/illarion/credvault/internal/crypto"
	"github.com/illarion/credvault/internal/keyring"
)

// KeyringSave saves the master password to the OS keyring
func KeyringSave(cfg config.Config) {
	vault := core.New(cfg)
	defer vault.Close()

	requireVault(vault)

	// Prompt for password
	password, err := core.ReadPassword(masterPrompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	// Verify password is correct
	if err := vault.VerifyPassword(password); err != nil {
		HandleError(err)
	}

	// Get vault ID (create if not exists)
	vaultID, err := vault.VaultID()
	if err != nil {
		HandleError(err)
	}

	// Save to keyring
	if err := keyring.SavePassword(vaultID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the master password from the OS keyring
func KeyringDelete(cfg config.Config) {
	vault := core.New(cfg)
	defer vault.Close()

	exists, err := vault.Exists()
	if err != nil {
		HandleError(err)
	}
	if !exists {
		fmt.Println("No password stored in keyring")
		return
	}

	vaultID, err := vault.VaultID()
	if err != nil {
		HandleError(err)
	}

	if !keyring.HasPassword(vaultID) {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(vaultID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove from keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if a password is stored in the keyring
func KeyringStatus(cfg config.Config) {
	vault := core.New(cfg)
	defer vault.Close()

	exists, err := vault.Exists()
	if err != nil {
		HandleError(err)
	}
	if !exists {
		fmt.Println("Password: not stored")
		return
	}

	vaultID, err := vault.VaultID()
	if err != nil {
		HandleError(err)
	}

	if keyring.HasPassword(vaultID) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
