package core

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type indexEntry struct {
	service  string
	username string
	note     string
}

func (e indexEntry) String() string {
	line := e.service + " / " + e.username
	if e.note != "" {
		line += " " + e.note
	}
	return line
}

func renderIndex(entries []indexEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// PreviewImport renders how the credential index (service / username, no
// passwords) changes when res is applied on top of before. Lines are
// prefixed with "+ " or "- "; unchanged lines are omitted. Returns an empty
// string when nothing changes.
func PreviewImport(before []Credential, res *ImportResult) string {
	folder := newKeyFolder()

	beforeEntries := make([]indexEntry, 0, len(before))
	for _, c := range before {
		beforeEntries = append(beforeEntries, indexEntry{service: c.Service, username: c.Username})
	}

	after := append([]indexEntry(nil), beforeEntries...)
	positions := make(map[dupKey]int, len(after))
	for i, e := range after {
		positions[folder.key(e.service, e.username)] = i
	}

	for _, row := range res.Rows {
		key := folder.key(row.Service, row.Username)
		switch row.Outcome {
		case RowInserted:
			positions[key] = len(after)
			after = append(after, indexEntry{service: row.Service, username: row.Username})
		case RowMerged:
			if i, ok := positions[key]; ok {
				after[i].note = "(password updated)"
			}
		}
	}

	sort.SliceStable(after, func(i, j int) bool {
		return after[i].service < after[j].service
	})

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(renderIndex(beforeEntries), renderIndex(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out.WriteString(prefix)
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	return out.String()
}
