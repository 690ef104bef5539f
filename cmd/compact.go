package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
)

// Compact compacts the vault database to reclaim unused space
func Compact(cfg config.Config) {
	vault := core.New(cfg)
	defer vault.Close()

	// Get file size before
	info, err := os.Stat(vault.Path())
	if err != nil {
		HandleError(core.ErrVaultNotInitialized)
	}
	sizeBefore := info.Size()

	if err := vault.Compact(); err != nil {
		HandleError(err)
	}

	// Get file size after
	info, err = os.Stat(vault.Path())
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
