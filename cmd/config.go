package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/config"
)

// ConfigInit writes cfg to the user (or system) config file
func ConfigInit(cfg config.Config, system bool) {
	path, err := config.ConfigPath(system)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if err := config.WriteFile(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Wrote %s\n", path)
}
