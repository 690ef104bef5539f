package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewImport(t *testing.T) {
	before := []Credential{
		{ID: 1, Service: "GitHub", Username: "dev"},
		{ID: 2, Service: "Mail", Username: "me"},
	}
	res := &ImportResult{Rows: []RowResult{
		{Row: 2, Service: "Bank", Username: "acct", Outcome: RowInserted},
		{Row: 3, Service: "github", Username: "DEV", Outcome: RowMerged},
		{Row: 4, Service: "Mail", Username: "me", Outcome: RowSkipped, Reason: reasonDuplicate},
	}}

	lines := strings.Split(strings.TrimSuffix(PreviewImport(before, res), "\n"), "\n")
	assert.ElementsMatch(t, []string{
		"+ Bank / acct",
		"- GitHub / dev",
		"+ GitHub / dev (password updated)",
	}, lines)
}

func TestPreviewImportNoChanges(t *testing.T) {
	before := []Credential{{ID: 1, Service: "A", Username: "a"}}
	res := &ImportResult{Rows: []RowResult{
		{Row: 2, Service: "A", Username: "a", Outcome: RowSkipped},
	}}
	assert.Empty(t, PreviewImport(before, res))
	assert.Empty(t, PreviewImport(nil, &ImportResult{}))
}

func TestPreviewImportFromDryRun(t *testing.T) {
	v := newTestVault(t, "secret")
	_, _ = v.Save("Old", "o", []byte("pw"))

	before, err := v.List()
	if err != nil {
		t.Fatal(err)
	}
	res, err := v.Import(writeCSV(t, "name,username,password\nNew,n,pw\n"), ImportOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "+ New / n\n", PreviewImport(before, res))
}
