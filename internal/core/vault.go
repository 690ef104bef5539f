package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/crypto"
	"github.com/illarion/credvault/internal/logging"
	"github.com/illarion/credvault/internal/storage"
)

const (
	DirPermSecure = 0700 // Directory: owner rwx only

	// DecryptionErrorMarker replaces the password of a record that cannot be
	// decrypted with the current key.
	DecryptionErrorMarker = "<DECRYPTION_ERROR>"

	verificationMarker = "VERIFICATION_TOKEN"
)

var (
	ErrVaultNotInitialized = errors.New("vault not initialized")
	ErrInvalidPassword     = errors.New("invalid master password")
	ErrStorageCorrupted    = errors.New("vault configuration corrupted")
	ErrVaultLocked         = errors.New("vault is locked")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrVaultUnavailable    = errors.New("vault file cannot be opened")
)

// Credential is a decrypted credential record
type Credential struct {
	ID        uint64
	Service   string
	Username  string
	Password  string
	CreatedAt time.Time
}

// decrypted is the per-record outcome of decrypting a stored record.
// Err is set when the password could not be decrypted.
type decrypted struct {
	Credential
	Err error
}

// Vault is an encrypted credential store backed by one file. It is
// uninitialized until Initialize runs, locked while no key is held, and
// unlocked after Initialize or Unlock succeeds. A Vault is not safe for
// concurrent use.
type Vault struct {
	cfg config.Config
	db  *storage.Storage
	enc *crypto.Encryptor
}

// New creates a Vault for cfg.VaultPath. Nothing is opened until needed.
func New(cfg config.Config) *Vault {
	return &Vault{cfg: cfg}
}

// Path returns the vault file path
func (v *Vault) Path() string {
	return v.cfg.VaultPath
}

// IsUnlocked reports whether a key is held in memory
func (v *Vault) IsUnlocked() bool {
	return v.enc != nil
}

func (v *Vault) iterations() int {
	if v.cfg.KDFIterations > 0 {
		return v.cfg.KDFIterations
	}
	return crypto.DefaultIters
}

// open returns the held database connection, opening it on first use
func (v *Vault) open() (*storage.Storage, error) {
	if v.db != nil {
		return v.db, nil
	}
	db, err := storage.Open(v.cfg.VaultPath, v.cfg.OpenTimeout)
	if err != nil {
		return nil, err
	}
	v.db = db
	return db, nil
}

// Initialize creates the vault with a fresh salt and verification token and
// leaves it unlocked with the new key.
//
// WARNING: on an existing vault this replaces the salt and verification
// token. Records stored under the previous password stay in the file but can
// no longer be decrypted. Callers must confirm with the user before calling
// Initialize when Exists reports true.
func (v *Vault) Initialize(password []byte) error {
	if err := os.MkdirAll(filepath.Dir(v.cfg.VaultPath), DirPermSecure); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	db, err := v.open()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return fmt.Errorf("failed to create KDF: %w", err)
	}
	kdf.Iterations = v.iterations()

	enc := crypto.NewEncryptor(kdf.DeriveKey(password))

	verification, err := enc.Encrypt([]byte(verificationMarker))
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("failed to encrypt verification token: %w", err)
	}

	// Salt, work factor, token and buckets land in one transaction
	if err := db.Initialize(kdf.Salt, uint32(kdf.Iterations), verification); err != nil {
		enc.Destroy()
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	v.setEncryptor(enc)
	logging.Debugf("initialized vault %s (%d iterations)", v.cfg.VaultPath, kdf.Iterations)
	return nil
}

// Exists reports whether the vault file is present and has a config bucket.
// It does not require unlocking. A missing or zero-length file is reported as
// absent without being touched. A file that is present but cannot be opened,
// because another process holds the lock or it is not a vault, is an
// ErrVaultUnavailable error and never reported as absent.
func (v *Vault) Exists() (bool, error) {
	if v.db == nil {
		info, err := os.Stat(v.cfg.VaultPath)
		if os.IsNotExist(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
		}
		if info.Size() == 0 {
			return false, nil
		}
	}

	db, err := v.open()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}

	initialized, err := db.IsInitialized()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	return initialized, nil
}

// requireInitialized returns ErrVaultNotInitialized for an absent vault and
// the Exists error for one that cannot be opened
func (v *Vault) requireInitialized() error {
	exists, err := v.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return ErrVaultNotInitialized
	}
	return nil
}

// Unlock derives the key from password and checks it against the stored
// verification token.
func (v *Vault) Unlock(password []byte) error {
	enc, err := v.deriveEncryptor(password)
	if err != nil {
		return err
	}
	v.setEncryptor(enc)
	logging.Debugf("unlocked vault %s", v.cfg.VaultPath)
	return nil
}

// VerifyPassword checks password without changing the lock state
func (v *Vault) VerifyPassword(password []byte) error {
	enc, err := v.deriveEncryptor(password)
	if err != nil {
		return err
	}
	enc.Destroy()
	return nil
}

func (v *Vault) deriveEncryptor(password []byte) (*crypto.Encryptor, error) {
	if err := v.requireInitialized(); err != nil {
		return nil, err
	}

	salt, err := v.db.GetSalt()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupted, err)
	}
	if len(salt) != crypto.SaltSize {
		return nil, fmt.Errorf("%w: salt has %d bytes", ErrStorageCorrupted, len(salt))
	}

	iterations, err := v.db.GetIterations()
	if err != nil || iterations == 0 {
		return nil, fmt.Errorf("%w: missing KDF iterations", ErrStorageCorrupted)
	}

	verification, err := v.db.GetVerification()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupted, err)
	}

	kdf := &crypto.KDF{Salt: salt, Iterations: int(iterations)}
	enc := crypto.NewEncryptor(kdf.DeriveKey(password))

	plaintext, err := enc.Decrypt(verification)
	if err != nil || !crypto.ConstantTimeCompare(plaintext, []byte(verificationMarker)) {
		enc.Destroy()
		return nil, ErrInvalidPassword
	}

	return enc, nil
}

func (v *Vault) setEncryptor(enc *crypto.Encryptor) {
	if v.enc != nil && v.enc != enc {
		v.enc.Destroy()
	}
	v.enc = enc
}

// Close discards the key and releases the database. Calling it again is a
// no-op.
func (v *Vault) Close() error {
	if v.enc != nil {
		v.enc.Destroy()
		v.enc = nil
	}
	if v.db == nil {
		return nil
	}
	err := v.db.Close()
	v.db = nil
	return err
}

// unlocked returns the database, reopening it if needed, or ErrVaultLocked
func (v *Vault) unlocked() (*storage.Storage, error) {
	if v.enc == nil {
		return nil, ErrVaultLocked
	}
	return v.open()
}

// Save encrypts password and stores a new credential, returning its id
func (v *Vault) Save(service, username string, password []byte) (uint64, error) {
	db, err := v.unlocked()
	if err != nil {
		return 0, err
	}

	encrypted, err := v.enc.Encrypt(password)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt password: %w", err)
	}

	id, err := db.InsertCredential(service, username, encrypted)
	if err != nil {
		return 0, fmt.Errorf("failed to store credential: %w", err)
	}
	return id, nil
}

// sortedRecords returns the stored records ordered by service, then id
func sortedRecords(db *storage.Storage) ([]storage.Record, error) {
	records, err := db.ListCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	// ListCredentials yields id order, so a stable sort keeps ties by id
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Service < records[j].Service
	})
	return records, nil
}

func (v *Vault) decrypt(rec storage.Record) decrypted {
	d := decrypted{Credential: Credential{
		ID:        rec.ID,
		Service:   rec.Service,
		Username:  rec.Username,
		CreatedAt: rec.CreatedAt,
	}}
	plaintext, err := v.enc.Decrypt(rec.Password)
	if err != nil {
		d.Err = err
		return d
	}
	d.Password = string(plaintext)
	crypto.ClearBytes(plaintext)
	return d
}

func (v *Vault) decryptAll(db *storage.Storage) ([]decrypted, error) {
	records, err := sortedRecords(db)
	if err != nil {
		return nil, err
	}
	out := make([]decrypted, 0, len(records))
	for _, rec := range records {
		out = append(out, v.decrypt(rec))
	}
	return out, nil
}

// List returns every credential sorted by service name. A record that fails
// to decrypt is returned with DecryptionErrorMarker as its password.
func (v *Vault) List() ([]Credential, error) {
	db, err := v.unlocked()
	if err != nil {
		return nil, err
	}

	rows, err := v.decryptAll(db)
	if err != nil {
		return nil, err
	}

	creds := make([]Credential, 0, len(rows))
	for _, row := range rows {
		if row.Err != nil {
			logging.Warnf("credential %d (%s) could not be decrypted: %v", row.ID, row.Service, row.Err)
			row.Password = DecryptionErrorMarker
		}
		creds = append(creds, row.Credential)
	}
	return creds, nil
}

// Get returns a single decrypted credential
func (v *Vault) Get(id uint64) (*Credential, error) {
	db, err := v.unlocked()
	if err != nil {
		return nil, err
	}

	rec, err := db.GetCredential(id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrCredentialNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	row := v.decrypt(*rec)
	if row.Err != nil {
		return nil, fmt.Errorf("failed to decrypt credential %d: %w", id, row.Err)
	}
	return &row.Credential, nil
}

// Delete removes a credential. Unknown ids are ignored.
func (v *Vault) Delete(id uint64) error {
	db, err := v.unlocked()
	if err != nil {
		return err
	}
	if err := db.DeleteCredential(id); err != nil {
		return fmt.Errorf("failed to delete credential %d: %w", id, err)
	}
	return nil
}

// ChangePassword re-encrypts every record and the verification token under a
// key derived from newPassword and a fresh salt. Nothing is written unless
// currentPassword verifies and every record decrypts. The vault is left
// unlocked with the new key.
func (v *Vault) ChangePassword(currentPassword, newPassword []byte) error {
	if err := v.Unlock(currentPassword); err != nil {
		return err
	}
	db := v.db

	records, err := db.ListCredentials()
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	plaintexts := make(map[uint64][]byte, len(records))
	defer func() {
		for _, p := range plaintexts {
			crypto.ClearBytes(p)
		}
	}()
	for _, rec := range records {
		p, err := v.enc.Decrypt(rec.Password)
		if err != nil {
			return fmt.Errorf("failed to decrypt credential %d (%s): %w", rec.ID, rec.Service, err)
		}
		plaintexts[rec.ID] = p
	}

	newKDF, err := crypto.NewKDF()
	if err != nil {
		return fmt.Errorf("failed to create new KDF: %w", err)
	}
	newKDF.Iterations = v.iterations()
	newEnc := crypto.NewEncryptor(newKDF.DeriveKey(newPassword))

	reencrypted := make(map[uint64][]byte, len(plaintexts))
	for id, p := range plaintexts {
		ct, err := newEnc.Encrypt(p)
		if err != nil {
			newEnc.Destroy()
			return fmt.Errorf("failed to re-encrypt credential %d: %w", id, err)
		}
		reencrypted[id] = ct
	}

	verification, err := newEnc.Encrypt([]byte(verificationMarker))
	if err != nil {
		newEnc.Destroy()
		return fmt.Errorf("failed to encrypt verification token: %w", err)
	}

	if err := db.Rekey(newKDF.Salt, uint32(newKDF.Iterations), verification, reencrypted); err != nil {
		newEnc.Destroy()
		return fmt.Errorf("failed to store re-encrypted vault: %w", err)
	}

	v.setEncryptor(newEnc)
	logging.Debugf("re-encrypted %d credentials", len(reencrypted))
	return nil
}

// StatusInfo describes a vault without revealing any secret
type StatusInfo struct {
	Path          string
	Credentials   int
	FileSize      int64
	Algorithm     string
	KDF           string
	KDFIterations uint32
	Created       time.Time
	Modified      time.Time
	Unlocked      bool
}

// Status returns vault information (no password required)
func (v *Vault) Status() (*StatusInfo, error) {
	if err := v.requireInitialized(); err != nil {
		return nil, err
	}

	status := &StatusInfo{
		Path:      v.cfg.VaultPath,
		Algorithm: "AES-256-GCM",
		KDF:       "PBKDF2-HMAC-SHA256",
		Unlocked:  v.IsUnlocked(),
	}

	count, err := v.db.CountCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to count credentials: %w", err)
	}
	status.Credentials = count

	// Timestamps and iterations are informational only
	if iters, err := v.db.GetIterations(); err == nil {
		status.KDFIterations = iters
	}
	if created, err := v.db.GetCreated(); err == nil {
		status.Created = created
	}
	if modified, err := v.db.GetModified(); err == nil {
		status.Modified = modified
	}
	if info, err := os.Stat(v.cfg.VaultPath); err == nil {
		status.FileSize = info.Size()
	}

	return status, nil
}

// Compact rewrites the vault file to reclaim unused space. If the rewrite
// fails the connection is dropped and reopened on next use.
func (v *Vault) Compact() error {
	if err := v.requireInitialized(); err != nil {
		return err
	}
	if err := v.db.Compact(); err != nil {
		v.db.Close()
		v.db = nil
		return err
	}
	return nil
}

// VaultID returns the stable vault identifier, creating it on first use
func (v *Vault) VaultID() (string, error) {
	if err := v.requireInitialized(); err != nil {
		return "", err
	}
	return v.db.GetOrCreateVaultID()
}
