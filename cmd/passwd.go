package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
	"github.com/illarion/credvault/internal/crypto"
	"github.com/illarion/credvault/internal/keyring"
)

// Passwd changes the master password
func Passwd(cfg config.Config) {
	vault := core.New(cfg)
	defer vault.Close()

	requireVault(vault)

	// Get vault ID for keyring lookup
	vaultID := keyringID(vault, cfg)

	// Get current password with retry on stale keyring
	currentPassword, _, err := GetPasswordWithRetry("Enter current master password: ", vaultID, cfg.UseKeyring, vault.VerifyPassword)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(currentPassword)

	// Get new password
	newPassword, err := core.ReadPasswordConfirm("New master password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(newPassword)

	// Change password
	if err := vault.ChangePassword(currentPassword, newPassword); err != nil {
		HandleError(err)
	}

	// Update the keyring only if it already holds this vault's password
	if vaultID != "" && keyring.HasPassword(vaultID) {
		if err := keyring.SavePassword(vaultID, string(newPassword)); err == nil {
			fmt.Println("Keyring updated with new password")
		}
	}

	// Compact database after rewriting all data
	if err := vault.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	fmt.Println("password changed successfully")
}
