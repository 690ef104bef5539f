package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKDF(t *testing.T) *KDF {
	t.Helper()
	kdf, err := NewKDF()
	require.NoError(t, err)
	kdf.Iterations = 1000
	return kdf
}

func TestNewKDF(t *testing.T) {
	kdf, err := NewKDF()
	require.NoError(t, err)
	assert.Len(t, kdf.Salt, SaltSize)
	assert.Equal(t, DefaultIters, kdf.Iterations)

	other, err := NewKDF()
	require.NoError(t, err)
	assert.NotEqual(t, kdf.Salt, other.Salt, "salts should be random")
}

func TestDeriveKeyDeterministic(t *testing.T) {
	kdf := testKDF(t)

	k1 := kdf.DeriveKey([]byte("master"))
	k2 := kdf.DeriveKey([]byte("master"))
	k3 := kdf.DeriveKey([]byte("other"))

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)

	salted := &KDF{Salt: bytes.Repeat([]byte{1}, SaltSize), Iterations: kdf.Iterations}
	assert.NotEqual(t, k1, salted.DeriveKey([]byte("master")))
}

func TestDeriveKeyPanicsOnBadSalt(t *testing.T) {
	kdf := &KDF{Salt: []byte("short"), Iterations: 1000}
	assert.Panics(t, func() { kdf.DeriveKey([]byte("pw")) })
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kdf := testKDF(t)
	enc := NewEncryptor(kdf.DeriveKey([]byte("master")))
	defer enc.Destroy()

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"ascii", []byte("hunter2")},
		{"utf8", []byte("pässwörd 世界")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := enc.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, ct, NonceSize+len(tt.plaintext)+TagSize)

			pt, err := enc.Decrypt(ct)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.plaintext, pt))
		})
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	kdf := testKDF(t)
	enc := NewEncryptor(kdf.DeriveKey([]byte("master")))

	a, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	kdf := testKDF(t)
	enc := NewEncryptor(kdf.DeriveKey([]byte("right")))
	wrong := NewEncryptor(kdf.DeriveKey([]byte("wrong")))

	ct, err := enc.Encrypt([]byte("VERIFICATION_TOKEN"))
	require.NoError(t, err)

	_, err = wrong.Decrypt(ct)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestDecryptTampered(t *testing.T) {
	kdf := testKDF(t)
	enc := NewEncryptor(kdf.DeriveKey([]byte("right")))

	ct, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0x01

	_, err = enc.Decrypt(ct)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestDecryptMalformed(t *testing.T) {
	kdf := testKDF(t)
	enc := NewEncryptor(kdf.DeriveKey([]byte("right")))

	_, err := enc.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDestroyClearsKey(t *testing.T) {
	key := bytes.Repeat([]byte{0xAA}, KeySize)
	enc := NewEncryptor(key)
	enc.Destroy()
	assert.Equal(t, make([]byte, KeySize), key)
}

func TestConstantTimeCompare(t *testing.T) {
	assert.True(t, ConstantTimeCompare([]byte("abc"), []byte("abc")))
	assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("abd")))
	assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("ab")))
}
