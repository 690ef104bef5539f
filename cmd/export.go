package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/git"
)

// Export writes every credential to a plaintext CSV file
func Export(cfg config.Config, path string) {
	vault := unlockVault(cfg)
	defer vault.Close()

	result, err := vault.Export(path)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Exported %d credential(s) to %s\n", result.Exported, path)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d credential(s) could not be decrypted and were skipped:\n", len(result.Skipped))
		for _, skip := range result.Skipped {
			fmt.Fprintf(os.Stderr, "  - %s / %s\n", skip.Service, skip.Username)
		}
	}

	fmt.Fprintln(os.Stderr, "warning: the export contains plaintext passwords; delete it when done")

	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	status := git.CheckExport(filepath.Dir(abs), filepath.Base(abs))
	if msg := git.FormatExportStatus(status); msg != "" {
		fmt.Fprint(os.Stderr, msg)
	}
}
