package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
	"github.com/illarion/credvault/internal/crypto"
	"github.com/illarion/credvault/internal/keyring"
	"github.com/illarion/credvault/internal/logging"
)

const masterPrompt = "Enter master password: "

// GetPassword retrieves the master password from the environment, the OS
// keyring or a prompt, in that order. fromKeyring reports where it came from.
// The caller is responsible for calling crypto.ClearBytes on the returned password
func GetPassword(prompt, vaultID string, useKeyring bool) (password []byte, fromKeyring bool, err error) {
	// Try environment variable first
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, false, nil
	}

	if useKeyring && vaultID != "" {
		if stored, err := keyring.GetPassword(vaultID); err == nil {
			logging.Debugf("using master password from keyring")
			return []byte(stored), true, nil
		}
	}

	// Prompt user
	password, err = core.ReadPassword(prompt)
	if err != nil {
		return nil, false, err
	}
	return password, false, nil
}

// GetPasswordWithRetry is GetPassword followed by verify. A keyring password
// that fails verification is stale: it is removed and the user is prompted.
func GetPasswordWithRetry(prompt, vaultID string, useKeyring bool, verify func([]byte) error) ([]byte, bool, error) {
	password, fromKeyring, err := GetPassword(prompt, vaultID, useKeyring)
	if err != nil {
		return nil, false, err
	}

	err = verify(password)
	if err == nil {
		return password, fromKeyring, nil
	}
	crypto.ClearBytes(password)

	if !fromKeyring || !errors.Is(err, core.ErrInvalidPassword) {
		return nil, false, err
	}

	logging.Warnf("keyring password is stale, removing it")
	if err := keyring.DeletePassword(vaultID); err != nil {
		logging.Warnf("failed to remove stale keyring entry: %v", err)
	}

	password, err = core.ReadPassword(prompt)
	if err != nil {
		return nil, false, err
	}
	if err := verify(password); err != nil {
		crypto.ClearBytes(password)
		return nil, false, err
	}
	return password, false, nil
}

// GetPasswordForInit retrieves password for init command
// Checks environment variable first, then prompts with confirmation
func GetPasswordForInit(prompt string) ([]byte, error) {
	// Try environment variable first
	password := core.GetPasswordFromEnv()
	if password != nil {
		return password, nil
	}

	// Fall back to confirmation prompt
	return core.ReadPasswordConfirm(prompt)
}

// isInteractive reports whether stdin is a terminal
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm asks a yes/no question on stderr. Non-interactive sessions answer no.
func Confirm(question string) bool {
	if !isInteractive() {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// OfferToSavePassword asks whether to cache password in the OS keyring
func OfferToSavePassword(vault *core.Vault, password []byte) {
	if core.GetPasswordFromEnv() != nil || !isInteractive() {
		return
	}
	if !Confirm("Save master password to the OS keyring?") {
		return
	}

	vaultID, err := vault.VaultID()
	if err != nil {
		logging.Warnf("failed to get vault id: %v", err)
		return
	}
	if err := keyring.SavePassword(vaultID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save to keyring: %s\n", err)
		return
	}
	fmt.Println("Password saved to keyring")
}

// keyringID returns the vault id used as the keyring account, or "" when the
// keyring is disabled or the id is unavailable
func keyringID(vault *core.Vault, cfg config.Config) string {
	if !cfg.UseKeyring {
		return ""
	}
	vaultID, err := vault.VaultID()
	if err != nil {
		logging.Debugf("no vault id: %v", err)
		return ""
	}
	return vaultID
}

// requireVault exits unless the vault file is present and initialized
func requireVault(vault *core.Vault) {
	exists, err := vault.Exists()
	if err != nil {
		HandleError(err)
	}
	if !exists {
		HandleError(core.ErrVaultNotInitialized)
	}
}

// unlockVault opens and unlocks the configured vault or exits.
// The caller must Close the returned vault.
func unlockVault(cfg config.Config) *core.Vault {
	vault := core.New(cfg)
	requireVault(vault)

	vaultID := keyringID(vault, cfg)
	password, fromKeyring, err := GetPasswordWithRetry(masterPrompt, vaultID, cfg.UseKeyring, vault.Unlock)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	if cfg.UseKeyring && !fromKeyring {
		OfferToSavePassword(vault, password)
	}
	return vault
}

// parseID parses a credential id argument
func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid credential id %q", arg)
	}
	return id, nil
}

// HandleError handles common errors consistently
func HandleError(err error) {
	var schemaErr *core.SchemaError
	switch {
	case errors.Is(err, core.ErrVaultNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: vault not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'credvault init' first\n")
	case errors.Is(err, core.ErrVaultUnavailable):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Another credvault process may hold the vault, or the file is not a vault\n")
	case errors.Is(err, core.ErrInvalidPassword):
		fmt.Fprintf(os.Stderr, "Error: wrong master password\n")
	case errors.Is(err, core.ErrStorageCorrupted):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "The vault file is damaged; restore it from a backup\n")
	case errors.Is(err, core.ErrCredentialNotFound):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Use 'credvault list' to see stored ids\n")
	case errors.As(err, &schemaErr):
		fmt.Fprintf(os.Stderr, "Error: %s\n", schemaErr)
		fmt.Fprintf(os.Stderr, "Expected a header row such as: %s\n", strings.Join(core.ExportHeader, ","))
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
