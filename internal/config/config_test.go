package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config search location at a temp dir
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("CREDVAULT_VAULT", "")
	t.Setenv("CREDVAULT_LOG_LEVEL", "")
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	c, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, time.Second, c.OpenTimeout)
	assert.True(t, c.UseKeyring)
	assert.Zero(t, c.KDFIterations)
	assert.Equal(t, filepath.Join(dir, AppName, VaultFileName), c.VaultPath)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := isolate(t)

	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("vault: /from/file.db\nlog_level: info\nopen_timeout: 5s\nkeyring: false\nkdf_iterations: 1234\n"), 0600))

	c, err := Load(nil, file)
	require.NoError(t, err)
	assert.Equal(t, "/from/file.db", c.VaultPath)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 5*time.Second, c.OpenTimeout)
	assert.False(t, c.UseKeyring)
	assert.Equal(t, 1234, c.KDFIterations)

	t.Setenv("CREDVAULT_VAULT", "/from/env.db")
	c, err = Load(nil, file)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", c.VaultPath)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("vault", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--vault", "/from/flag.db", "--log-level", "debug"}))

	c, err = Load(flags, file)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.db", c.VaultPath)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(nil, filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", ConfigFileName)

	want := Defaults()
	want.VaultPath = filepath.Join(dir, "v.db")
	want.OpenTimeout = 3 * time.Second
	require.NoError(t, WriteFile(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, WriteFile(path, want), "existing file must not be overwritten")
}
