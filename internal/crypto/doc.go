// Package crypto provides cryptographic operations for credvault.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from the master password via PBKDF2
//   - 12-byte random nonce per encryption operation, prepended to the output
//   - Authenticated encryption, so a wrong key or tampered record fails to open
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 16-byte random salt (stored unencrypted in the vault config)
//   - 600,000 iterations for new vaults; the count in force is stored per vault
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
