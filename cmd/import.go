package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
)

// Import reads credentials from a CSV file
func Import(cfg config.Config, path string, opts core.ImportOptions) {
	vault := unlockVault(cfg)
	defer vault.Close()

	var before []core.Credential
	if opts.DryRun {
		var err error
		if before, err = vault.List(); err != nil {
			HandleError(err)
		}
	}

	result, err := vault.Import(path, opts)
	if result != nil {
		printImportResult(result, opts)
	}
	if err != nil {
		HandleError(err)
	}

	if opts.DryRun {
		if preview := core.PreviewImport(before, result); preview != "" {
			fmt.Println("\nChanges:")
			fmt.Print(preview)
		}
	}
}

func printImportResult(result *core.ImportResult, opts core.ImportOptions) {
	verb := "Imported"
	if opts.DryRun {
		verb = "Would import"
	}
	fmt.Printf("%s %d credential(s), skipped %d\n", verb, result.Imported, result.Skipped)

	if len(result.Issues) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "Skipped rows:")
	for _, issue := range result.Issues {
		fmt.Fprintf(os.Stderr, "  - %s / %s: %s\n", issue.Service, issue.Username, issue.Reason)
	}
}
