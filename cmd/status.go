package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
	"github.com/illarion/credvault/internal/keyring"
)

// Status shows vault information without asking for the password
func Status(cfg config.Config) {
	vault := core.New(cfg)
	defer vault.Close()

	status, err := vault.Status()
	if errors.Is(err, core.ErrVaultNotInitialized) {
		fmt.Printf("No vault found at %s\n", vault.Path())
		fmt.Println("Run 'credvault init' to create one")
		return
	}
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Vault:       %s\n", status.Path)
	fmt.Printf("Size:        %s\n", formatSize(status.FileSize))
	fmt.Printf("Credentials: %d\n", status.Credentials)
	fmt.Printf("Encryption:  %s, %s (%d iterations)\n", status.Algorithm, status.KDF, status.KDFIterations)
	if !status.Created.IsZero() {
		fmt.Printf("Created:     %s\n", status.Created.Local().Format(time.RFC3339))
	}
	if !status.Modified.IsZero() {
		fmt.Printf("Modified:    %s\n", status.Modified.Local().Format(time.RFC3339))
	}

	if vaultID := keyringID(vault, cfg); vaultID != "" && keyring.HasPassword(vaultID) {
		fmt.Println("Keyring:     password stored")
	} else {
		fmt.Println("Keyring:     not stored")
	}
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
