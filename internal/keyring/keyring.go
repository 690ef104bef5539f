// Package keyring caches master passwords in the OS keyring, keyed by vault id.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "credvault"

// ErrNotFound is returned when no password is cached for a vault
var ErrNotFound = keyring.ErrNotFound

// SavePassword stores a vault's master password in the OS keyring
func SavePassword(vaultID string, password string) error {
	return keyring.Set(serviceName, vaultID, password)
}

// GetPassword retrieves a vault's master password from the OS keyring
func GetPassword(vaultID string) (string, error) {
	return keyring.Get(serviceName, vaultID)
}

// DeletePassword removes a vault's master password. Deleting a password that
// was never stored is not an error.
func DeletePassword(vaultID string) error {
	err := keyring.Delete(serviceName, vaultID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(vaultID string) bool {
	_, err := keyring.Get(serviceName, vaultID)
	return err == nil
}
