package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/credvault/internal/generator"
)

// Generate prints a random password without touching the vault
func Generate(length int, opts generator.Options) {
	password, err := generator.Password(length, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	fmt.Println(password)
}
