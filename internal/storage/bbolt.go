package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket      = []byte("config")      // KDF params, verification token, timestamps
	CredentialsBucket = []byte("credentials") // One JSON record per credential
)

// Config keys
var (
	ConfigVersion      = []byte("version")
	ConfigCreated      = []byte("created")
	ConfigModified     = []byte("modified")
	ConfigSalt         = []byte("salt")
	ConfigIters        = []byte("iterations")
	ConfigVerification = []byte("verification")
	ConfigVaultID      = []byte("vault_id")
)

const (
	SchemaVersion = "1"
	FilePerm      = 0600
)

var (
	ErrNotInitialized = errors.New("vault buckets not found")
	ErrMissingKey     = errors.New("config key not found")
	ErrRecordNotFound = errors.New("credential not found")
)

// Storage provides BBolt-based storage for credvault
type Storage struct {
	db      *bolt.DB
	path    string
	timeout time.Duration
}

// Open opens or creates a vault database. A zero timeout waits forever for
// the file lock held by another process.
func Open(path string, timeout time.Duration) (*Storage, error) {
	db, err := bolt.Open(path, FilePerm, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db, path: path, timeout: timeout}, nil
}

// Close closes the database. It is a no-op after a failed Compact left no
// open handle.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.path
}

// Initialize writes the bucket structure, KDF parameters and verification
// token in a single transaction. Existing config values are overwritten;
// existing credential records and the id sequence are kept.
func (s *Storage) Initialize(salt []byte, iterations uint32, verification []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, CredentialsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte(SchemaVersion)); err != nil {
			return err
		}
		if err := putKDF(config, salt, iterations, verification); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

func putKDF(config *bolt.Bucket, salt []byte, iterations uint32, verification []byte) error {
	if err := config.Put(ConfigSalt, salt); err != nil {
		return err
	}
	iters := make([]byte, 4)
	binary.BigEndian.PutUint32(iters, iterations)
	if err := config.Put(ConfigIters, iters); err != nil {
		return err
	}
	return config.Put(ConfigVerification, verification)
}

// IsInitialized checks if the database has the config bucket
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		initialized = tx.Bucket(ConfigBucket) != nil
		return nil
	})
	return initialized, err
}

// getConfig copies a config value out of the read transaction
func (s *Storage) getConfig(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		v := config.Get(key)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrMissingKey, key)
		}
		// Make a copy since the slice is only valid during the transaction
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

// GetSalt retrieves the KDF salt
func (s *Storage) GetSalt() ([]byte, error) {
	return s.getConfig(ConfigSalt)
}

// GetVerification retrieves the encrypted verification token
func (s *Storage) GetVerification() ([]byte, error) {
	return s.getConfig(ConfigVerification)
}

// GetIterations retrieves the KDF iterations
func (s *Storage) GetIterations() (uint32, error) {
	iters, err := s.getConfig(ConfigIters)
	if err != nil {
		return 0, err
	}
	if len(iters) != 4 {
		return 0, fmt.Errorf("%w: %s", ErrMissingKey, ConfigIters)
	}
	return binary.BigEndian.Uint32(iters), nil
}

// GetCreated retrieves the vault creation timestamp
func (s *Storage) GetCreated() (time.Time, error) {
	return s.getTime(ConfigCreated)
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	return s.getTime(ConfigModified)
}

func (s *Storage) getTime(key []byte) (time.Time, error) {
	var t time.Time
	data, err := s.getConfig(key)
	if err != nil {
		return t, err
	}
	return t, t.UnmarshalBinary(data)
}

func touchModified(tx *bolt.Tx) error {
	config := tx.Bucket(ConfigBucket)
	if config == nil {
		return ErrNotInitialized
	}
	modified, _ := time.Now().MarshalBinary()
	return config.Put(ConfigModified, modified)
}

// GetVaultID retrieves the vault ID from config bucket
func (s *Storage) GetVaultID() (string, error) {
	id, err := s.getConfig(ConfigVaultID)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// GetOrCreateVaultID retrieves existing vault ID or generates a new one
func (s *Storage) GetOrCreateVaultID() (string, error) {
	vaultID, err := s.GetVaultID()
	if err == nil {
		return vaultID, nil
	}
	if !errors.Is(err, ErrMissingKey) {
		return "", err
	}

	vaultID = uuid.NewString()
	err = s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		return config.Put(ConfigVaultID, []byte(vaultID))
	})
	if err != nil {
		return "", err
	}

	return vaultID, nil
}

// InsertCredential stores a new record and returns its id. The id comes from
// the bucket sequence, so it is never reused after a delete.
func (s *Storage) InsertCredential(service, username string, encryptedPassword []byte) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		creds := tx.Bucket(CredentialsBucket)
		if creds == nil {
			return ErrNotInitialized
		}

		seq, err := creds.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate id: %w", err)
		}

		rec := Record{
			ID:        seq,
			Service:   service,
			Username:  username,
			Password:  encryptedPassword,
			CreatedAt: time.Now().UTC(),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := creds.Put(itob(seq), data); err != nil {
			return err
		}
		id = seq
		return touchModified(tx)
	})
	return id, err
}

// UpdatePassword replaces the encrypted password of an existing record
func (s *Storage) UpdatePassword(id uint64, encryptedPassword []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		creds := tx.Bucket(CredentialsBucket)
		if creds == nil {
			return ErrNotInitialized
		}

		rec, err := getRecord(creds, id)
		if err != nil {
			return err
		}
		rec.Password = encryptedPassword
		if err := putRecord(creds, rec); err != nil {
			return err
		}
		return touchModified(tx)
	})
}

// DeleteCredential removes a record. Missing ids are not an error.
func (s *Storage) DeleteCredential(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		creds := tx.Bucket(CredentialsBucket)
		if creds == nil {
			return ErrNotInitialized
		}
		key := itob(id)
		if creds.Get(key) == nil {
			return nil
		}
		if err := creds.Delete(key); err != nil {
			return err
		}
		return touchModified(tx)
	})
}

// GetCredential returns a single record
func (s *Storage) GetCredential(id uint64) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		creds := tx.Bucket(CredentialsBucket)
		if creds == nil {
			return ErrNotInitialized
		}
		var err error
		rec, err = getRecord(creds, id)
		return err
	})
	return rec, err
}

// ListCredentials returns all records in id order
func (s *Storage) ListCredentials() ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		creds := tx.Bucket(CredentialsBucket)
		if creds == nil {
			return ErrNotInitialized
		}
		return creds.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode credential %d: %w", btoi(k), err)
			}
			rec.ID = btoi(k)
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// CountCredentials returns the number of stored records
func (s *Storage) CountCredentials() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		creds := tx.Bucket(CredentialsBucket)
		if creds == nil {
			return ErrNotInitialized
		}
		n = creds.Stats().KeyN
		return nil
	})
	return n, err
}

// Rekey replaces the KDF parameters, verification token and every given
// record password in one transaction. Either all of it lands or none.
func (s *Storage) Rekey(salt []byte, iterations uint32, verification []byte, passwords map[uint64][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		creds := tx.Bucket(CredentialsBucket)
		if config == nil || creds == nil {
			return ErrNotInitialized
		}

		for id, encrypted := range passwords {
			rec, err := getRecord(creds, id)
			if err != nil {
				return err
			}
			rec.Password = encrypted
			if err := putRecord(creds, rec); err != nil {
				return err
			}
		}

		if err := putKDF(config, salt, iterations, verification); err != nil {
			return err
		}
		return touchModified(tx)
	})
}

func getRecord(creds *bolt.Bucket, id uint64) (*Record, error) {
	data := creds.Get(itob(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode credential %d: %w", id, err)
	}
	rec.ID = id
	return rec, nil
}

func putRecord(creds *bolt.Bucket, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return creds.Put(itob(rec.ID), data)
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after deleting credentials or changing the password.
func (s *Storage) Compact() error {
	srcPath := s.path
	tmpPath := srcPath + ".compact"

	// Create new database
	dst, err := bolt.Open(tmpPath, FilePerm, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets, including their id sequences
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				if err := dstBucket.SetSequence(srcBucket.Sequence()); err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	// From here on a failure leaves no open handle; Close stays safe
	err = s.db.Close()
	s.db = nil
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	// Reopen database
	db, err := bolt.Open(srcPath, FilePerm, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	s.db = db

	return nil
}
