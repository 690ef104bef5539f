package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
)

// Remove deletes credentials by id
func Remove(cfg config.Config, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: rm requires at least one credential id\n")
		fmt.Fprintf(os.Stderr, "Usage: credvault rm <id> [id...]\n")
		os.Exit(1)
	}

	ids := make([]uint64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		ids = append(ids, id)
	}

	vault := unlockVault(cfg)
	defer vault.Close()

	for _, id := range ids {
		if err := vault.Delete(id); err != nil {
			HandleError(err)
		}
		fmt.Printf("✓ Removed %d\n", id)
	}

	// Compact database to reclaim space
	if err := vault.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}
}
