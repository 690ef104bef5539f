package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/credvault/internal/core"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 bytes", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
	assert.Equal(t, "1.0 GB", formatSize(1024*1024*1024))
}

func TestCredentialTable(t *testing.T) {
	creds := []core.Credential{
		{ID: 1, Service: "GitHub", Username: "dev", Password: "s3cret", CreatedAt: time.Now()},
		{ID: 7, Service: "Mail", Username: "me", Password: core.DecryptionErrorMarker, CreatedAt: time.Now()},
	}

	hidden := credentialTable(creds, false).String()
	assert.Contains(t, hidden, "GitHub")
	assert.Contains(t, hidden, hiddenPassword)
	assert.NotContains(t, hidden, "s3cret")
	assert.Contains(t, hidden, core.DecryptionErrorMarker)

	shown := credentialTable(creds, true).String()
	assert.Contains(t, shown, "s3cret")
	assert.True(t, strings.Contains(shown, "7"))
}
