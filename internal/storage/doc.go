// Package storage provides the BBolt database interface for credvault.
//
// Database structure uses two buckets:
//   - config: KDF parameters (salt, iterations), the encrypted verification
//     token, vault id and timestamps
//   - credentials: one JSON record per credential, keyed by a big endian
//     uint64 id taken from the bucket sequence
//
// Service and username are stored in the clear so that status, listing and
// duplicate detection do not need to decrypt anything. Only the password
// field of a record is ciphertext.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
