package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		VaultPath:     filepath.Join(t.TempDir(), "data", "vault.db"),
		OpenTimeout:   time.Second,
		KDFIterations: 1000,
	}
}

func newTestVault(t *testing.T, password string) *Vault {
	t.Helper()
	v := New(testConfig(t))
	require.NoError(t, v.Initialize([]byte(password)))
	t.Cleanup(func() { v.Close() })
	return v
}

// reopen closes v and returns a fresh, locked Vault on the same file
func reopen(t *testing.T, v *Vault) *Vault {
	t.Helper()
	require.NoError(t, v.Close())
	other := New(v.cfg)
	t.Cleanup(func() { other.Close() })
	return other
}

func assertExists(t *testing.T, v *Vault, want bool) {
	t.Helper()
	exists, err := v.Exists()
	require.NoError(t, err)
	assert.Equal(t, want, exists)
}

func TestInitializeAndExists(t *testing.T) {
	v := New(testConfig(t))
	defer v.Close()

	assertExists(t, v, false)
	assert.False(t, v.IsUnlocked())

	require.NoError(t, v.Initialize([]byte("masterpass")))
	assertExists(t, v, true)
	assert.True(t, v.IsUnlocked(), "Initialize leaves the vault unlocked")

	info, err := os.Stat(v.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(storage.FilePerm), info.Mode().Perm())
}

func TestExistsRejectsForeignFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.VaultPath), 0700))
	require.NoError(t, os.WriteFile(cfg.VaultPath, []byte("not a bolt database, just text"), 0600))

	v := New(cfg)
	defer v.Close()
	exists, err := v.Exists()
	assert.False(t, exists)
	assert.ErrorIs(t, err, ErrVaultUnavailable)
	assert.ErrorIs(t, v.Unlock([]byte("x")), ErrVaultUnavailable)
}

func TestExistsLeavesEmptyFileAlone(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.VaultPath), 0700))
	require.NoError(t, os.WriteFile(cfg.VaultPath, nil, 0600))

	v := New(cfg)
	defer v.Close()
	assertExists(t, v, false)
	assert.ErrorIs(t, v.Unlock([]byte("x")), ErrVaultNotInitialized)

	info, err := os.Stat(cfg.VaultPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "checking an empty file must not write to it")
}

func TestVaultHeldByAnotherHandle(t *testing.T) {
	holder := newTestVault(t, "secret")

	cfg := holder.cfg
	cfg.OpenTimeout = 100 * time.Millisecond
	v := New(cfg)
	defer v.Close()

	exists, err := v.Exists()
	assert.False(t, exists)
	assert.ErrorIs(t, err, ErrVaultUnavailable)
	assert.NotErrorIs(t, err, ErrVaultNotInitialized)

	assert.ErrorIs(t, v.Unlock([]byte("secret")), ErrVaultUnavailable)
	_, err = v.Status()
	assert.ErrorIs(t, err, ErrVaultUnavailable)
	_, err = v.VaultID()
	assert.ErrorIs(t, err, ErrVaultUnavailable)

	require.NoError(t, holder.Close())
	assertExists(t, v, true)
	require.NoError(t, v.Unlock([]byte("secret")))
}

func TestUnlock(t *testing.T) {
	v := newTestVault(t, "secret")
	v = reopen(t, v)

	assertExists(t, v, true)
	assert.False(t, v.IsUnlocked())

	for _, wrong := range []string{"wrong", "", "secret ", "Secret"} {
		assert.ErrorIs(t, v.Unlock([]byte(wrong)), ErrInvalidPassword, "password %q", wrong)
		assert.False(t, v.IsUnlocked())
	}

	require.NoError(t, v.Unlock([]byte("secret")))
	assert.True(t, v.IsUnlocked())
}

func TestUnlockMissingVault(t *testing.T) {
	v := New(testConfig(t))
	defer v.Close()

	assert.ErrorIs(t, v.Unlock([]byte("secret")), ErrVaultNotInitialized)
	_, err := os.Stat(v.Path())
	assert.True(t, os.IsNotExist(err), "Unlock must not create the vault file")
}

func TestUnlockCorruptedConfig(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.VaultPath), 0700))

	db, err := bolt.Open(cfg.VaultPath, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucket(storage.ConfigBucket)
		return err
	}))
	require.NoError(t, db.Close())

	v := New(cfg)
	defer v.Close()
	assertExists(t, v, true)
	assert.ErrorIs(t, v.Unlock([]byte("secret")), ErrStorageCorrupted)
}

func TestLockedOperations(t *testing.T) {
	v := newTestVault(t, "secret")
	v = reopen(t, v)
	assertExists(t, v, true)

	_, err := v.Save("svc", "user", []byte("pw"))
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = v.List()
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = v.Get(1)
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.ErrorIs(t, v.Delete(1), ErrVaultLocked)
	_, err = v.Export(filepath.Join(t.TempDir(), "out.csv"))
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = v.Import(filepath.Join(t.TempDir(), "in.csv"), ImportOptions{})
	assert.ErrorIs(t, err, ErrVaultLocked)
}

func TestCloseIsIdempotent(t *testing.T) {
	v := newTestVault(t, "secret")
	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.False(t, v.IsUnlocked())

	_, err := v.List()
	assert.ErrorIs(t, err, ErrVaultLocked)
}

func TestCredentialOps(t *testing.T) {
	v := newTestVault(t, "secret")

	googleID, err := v.Save("Google", "user@gmail.com", []byte("password123"))
	require.NoError(t, err)
	githubID, err := v.Save("GitHub", "dev", []byte("gh_token"))
	require.NoError(t, err)

	creds, err := v.List()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "GitHub", creds[0].Service, "ordered by service")
	assert.Equal(t, "gh_token", creds[0].Password)
	assert.Equal(t, githubID, creds[0].ID)
	assert.Equal(t, "Google", creds[1].Service)
	assert.Equal(t, "password123", creds[1].Password)
	assert.False(t, creds[1].CreatedAt.IsZero())

	cred, err := v.Get(googleID)
	require.NoError(t, err)
	assert.Equal(t, "user@gmail.com", cred.Username)

	require.NoError(t, v.Delete(githubID))
	require.NoError(t, v.Delete(githubID), "deleting a missing id is a no-op")
	require.NoError(t, v.Delete(424242))

	creds, err = v.List()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, googleID, creds[0].ID)

	_, err = v.Get(githubID)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestListTiesKeepInsertionOrder(t *testing.T) {
	v := newTestVault(t, "secret")

	first, _ := v.Save("Mail", "b", []byte("1"))
	_, _ = v.Save("Alpha", "z", []byte("2"))
	second, _ := v.Save("Mail", "a", []byte("3"))

	creds, err := v.List()
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "Alpha", creds[0].Service)
	assert.Equal(t, first, creds[1].ID)
	assert.Equal(t, second, creds[2].ID)
}

func TestSaveSurvivesReopen(t *testing.T) {
	v := newTestVault(t, "secret")
	id, err := v.Save("svc", "user", []byte("p@ss wörd"))
	require.NoError(t, err)

	v = reopen(t, v)
	require.NoError(t, v.Unlock([]byte("secret")))

	cred, err := v.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "p@ss wörd", cred.Password)
}

func TestListIsolatesDecryptionFailures(t *testing.T) {
	v := newTestVault(t, "secret")
	good, _ := v.Save("A", "a", []byte("fine"))
	bad, _ := v.Save("B", "b", []byte("soon broken"))

	require.NoError(t, v.db.UpdatePassword(bad, []byte("garbage that will not authenticate")))

	creds, err := v.List()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, good, creds[0].ID)
	assert.Equal(t, "fine", creds[0].Password)
	assert.Equal(t, DecryptionErrorMarker, creds[1].Password)

	_, err = v.Get(bad)
	assert.Error(t, err)
}

func TestReinitializeForfeitsOldRecords(t *testing.T) {
	v := newTestVault(t, "old")
	_, err := v.Save("svc", "user", []byte("pw"))
	require.NoError(t, err)

	require.NoError(t, v.Initialize([]byte("new")))

	v = reopen(t, v)
	assert.ErrorIs(t, v.Unlock([]byte("old")), ErrInvalidPassword)
	require.NoError(t, v.Unlock([]byte("new")))

	creds, err := v.List()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, DecryptionErrorMarker, creds[0].Password)
}

func TestChangePassword(t *testing.T) {
	v := newTestVault(t, "old")
	id1, _ := v.Save("A", "a", []byte("one"))
	id2, _ := v.Save("B", "b", []byte("two"))

	assert.ErrorIs(t, v.ChangePassword([]byte("nope"), []byte("new")), ErrInvalidPassword)

	require.NoError(t, v.ChangePassword([]byte("old"), []byte("new")))
	assert.True(t, v.IsUnlocked())

	c, err := v.Get(id1)
	require.NoError(t, err)
	assert.Equal(t, "one", c.Password)

	v = reopen(t, v)
	assert.ErrorIs(t, v.Unlock([]byte("old")), ErrInvalidPassword)
	require.NoError(t, v.Unlock([]byte("new")))

	c, err = v.Get(id2)
	require.NoError(t, err)
	assert.Equal(t, "two", c.Password)
}

func TestChangePasswordRefusesUndecryptableRecords(t *testing.T) {
	v := newTestVault(t, "old")
	id, _ := v.Save("A", "a", []byte("one"))
	require.NoError(t, v.db.UpdatePassword(id, []byte("this is not a valid ciphertext")))

	assert.Error(t, v.ChangePassword([]byte("old"), []byte("new")))

	v = reopen(t, v)
	require.NoError(t, v.Unlock([]byte("old")), "failed change must leave the old password in place")
}

func TestStatus(t *testing.T) {
	v := New(testConfig(t))
	defer v.Close()

	_, err := v.Status()
	assert.ErrorIs(t, err, ErrVaultNotInitialized)

	require.NoError(t, v.Initialize([]byte("secret")))
	_, _ = v.Save("A", "a", []byte("1"))
	_, _ = v.Save("B", "b", []byte("2"))

	v = reopen(t, v)
	status, err := v.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.Credentials)
	assert.Equal(t, uint32(1000), status.KDFIterations)
	assert.Equal(t, "AES-256-GCM", status.Algorithm)
	assert.False(t, status.Unlocked)
	assert.Positive(t, status.FileSize)
	assert.False(t, status.Created.IsZero())
	assert.False(t, status.Modified.Before(status.Created))
}

func TestCompactAndVaultID(t *testing.T) {
	v := newTestVault(t, "secret")
	id, _ := v.Save("A", "a", []byte("1"))

	vaultID, err := v.VaultID()
	require.NoError(t, err)
	assert.NotEmpty(t, vaultID)

	require.NoError(t, v.Compact())

	again, err := v.VaultID()
	require.NoError(t, err)
	assert.Equal(t, vaultID, again)

	c, err := v.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "1", c.Password)
}

func TestCompactFailureKeepsVaultUsable(t *testing.T) {
	v := newTestVault(t, "secret")
	id, _ := v.Save("A", "a", []byte("1"))

	// A directory on the backup path makes the final swap fail
	backup := v.Path() + ".backup"
	require.NoError(t, os.MkdirAll(filepath.Join(backup, "occupied"), 0700))

	assert.Error(t, v.Compact())
	assert.True(t, v.IsUnlocked())

	c, err := v.Get(id)
	require.NoError(t, err, "the vault reopens after a failed compact")
	assert.Equal(t, "1", c.Password)

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
}

func TestDefaultIterationsUsedWhenUnset(t *testing.T) {
	v := New(config.Config{})
	assert.Equal(t, 600000, v.iterations())
}
