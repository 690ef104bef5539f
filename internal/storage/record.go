package storage

import (
	"encoding/binary"
	"time"
)

// Record is a credential as persisted in the credentials bucket.
// Password holds ciphertext, never plaintext.
type Record struct {
	ID        uint64    `json:"id"`
	Service   string    `json:"service"`
	Username  string    `json:"username"`
	Password  []byte    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

// itob encodes an id as an order-preserving bucket key
func itob(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
