// Package core provides the credvault vault operations.
//
// Lifecycle:
//   - Initialize: create the vault with a password-derived key (destructive
//     on an existing vault, see the method docs)
//   - Unlock/Close: hold or discard the derived key for this process
//
// Credential operations (vault must be unlocked):
//   - Save, List, Get, Delete
//   - ChangePassword: re-encrypt every record under a new key
//   - Export/Import: CSV interchange with duplicate detection
//
// Password verification decrypts a fixed marker stored at initialization;
// a wrong password fails authenticated decryption. Per-record decryption
// failures never abort List or Export, and per-row problems never abort
// Import.
package core
