package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"

	"github.com/illarion/credvault/internal/logging"
	"github.com/illarion/credvault/internal/storage"
)

const (
	FilePermSecure = 0600 // File: owner rw only

	emptyField      = "(empty)"
	reasonDuplicate = "Duplicate (not merged)"
)

// ExportHeader is the column layout written by Export. url and note are
// always empty.
var ExportHeader = []string{"name", "url", "username", "password", "note"}

// Accepted header synonyms, first match wins
var (
	serviceColumns  = []string{"name", "service", "title"}
	usernameColumns = []string{"username", "login", "user"}
	passwordColumns = []string{"password", "pass"}
)

var ErrNoHeader = errors.New("CSV file has no headers")

// SchemaError reports required columns that no header cell resolved to
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "CSV missing required columns: " + strings.Join(e.Missing, ", ")
}

// ExportSkip is a record left out of an export because it failed to decrypt
type ExportSkip struct {
	Service  string
	Username string
	Err      error
}

// ExportResult summarizes an export. Exported + len(Skipped) equals the
// number of stored records.
type ExportResult struct {
	Exported int
	Skipped  []ExportSkip
}

// Export writes every decryptable credential to path as CSV, in the same
// order as List. The file is written next to path and renamed into place.
func (v *Vault) Export(path string) (*ExportResult, error) {
	db, err := v.unlocked()
	if err != nil {
		return nil, err
	}

	rows, err := v.decryptAll(db)
	if err != nil {
		return nil, err
	}

	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, FilePermSecure)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmpPath) // no-op after a successful rename

	result := &ExportResult{}
	w := csv.NewWriter(f)
	if err := w.Write(ExportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		if row.Err != nil {
			result.Skipped = append(result.Skipped, ExportSkip{
				Service:  row.Service,
				Username: row.Username,
				Err:      row.Err,
			})
			continue
		}
		if err := w.Write([]string{row.Service, "", row.Username, row.Password, ""}); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
		result.Exported++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("failed to move export into place: %w", err)
	}

	logging.Debugf("exported %d credentials to %s (%d skipped)", result.Exported, path, len(result.Skipped))
	return result, nil
}

// ImportOptions controls duplicate handling and persistence
type ImportOptions struct {
	// MergeDuplicates overwrites the stored password of a credential whose
	// (service, username) matches case-insensitively, instead of skipping.
	MergeDuplicates bool
	// DryRun reports exactly what a real run would report, writing nothing.
	DryRun bool
}

// RowOutcome is what happened to one CSV data row
type RowOutcome int

const (
	RowInserted RowOutcome = iota
	RowMerged
	RowSkipped
)

func (o RowOutcome) String() string {
	switch o {
	case RowInserted:
		return "inserted"
	case RowMerged:
		return "merged"
	case RowSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// RowResult is the outcome of one data row. Row counts the header as 1.
// ID is the affected credential, zero on dry runs and skipped rows.
type RowResult struct {
	Row      int
	Service  string
	Username string
	Outcome  RowOutcome
	Reason   string
	ID       uint64
}

// ImportIssue describes a skipped row
type ImportIssue struct {
	Service  string
	Username string
	Reason   string
}

// ImportResult summarizes an import
type ImportResult struct {
	Imported int
	Skipped  int
	Issues   []ImportIssue
	Rows     []RowResult
}

func (r *ImportResult) add(row RowResult) {
	r.Rows = append(r.Rows, row)
	if row.Outcome == RowSkipped {
		r.Skipped++
		r.Issues = append(r.Issues, ImportIssue{
			Service:  row.Service,
			Username: row.Username,
			Reason:   row.Reason,
		})
		return
	}
	r.Imported++
}

// dupKey is the case-insensitive identity of a credential
type dupKey struct {
	service  string
	username string
}

// keyFolder lowercases keys without locale rules. It is not a full case
// fold: "Straße" and "STRASSE" stay distinct.
type keyFolder struct {
	caser cases.Caser
}

func newKeyFolder() *keyFolder {
	return &keyFolder{caser: cases.Lower(language.Und)}
}

func (k *keyFolder) key(service, username string) dupKey {
	return dupKey{
		service:  k.caser.String(service),
		username: k.caser.String(username),
	}
}

// columnIndex maps the first matching synonym to its header position
func columnIndex(headers map[string]int, synonyms []string) (int, bool) {
	for _, name := range synonyms {
		if idx, ok := headers[name]; ok {
			return idx, true
		}
	}
	return -1, false
}

type importColumns struct {
	service, username, password int
}

func resolveColumns(header []string) (*importColumns, error) {
	headers := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, seen := headers[name]; !seen {
			headers[name] = i
		}
	}

	cols := &importColumns{}
	var missing []string
	var ok bool
	if cols.service, ok = columnIndex(headers, serviceColumns); !ok {
		missing = append(missing, strings.Join(serviceColumns, "/"))
	}
	if cols.username, ok = columnIndex(headers, usernameColumns); !ok {
		missing = append(missing, strings.Join(usernameColumns, "/"))
	}
	if cols.password, ok = columnIndex(headers, passwordColumns); !ok {
		missing = append(missing, strings.Join(passwordColumns, "/"))
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return cols, nil
}

// field returns a trimmed cell, tolerating short rows
func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func orEmpty(s string) string {
	if s == "" {
		return emptyField
	}
	return s
}

// Import reads credentials from a CSV file. Header names are matched
// case-insensitively against name/service/title, username/login/user and
// password/pass; other columns are ignored. Duplicates are detected by
// case-insensitive (service, username) against stored records and rows
// already processed in the same file.
//
// Each write commits on its own. If a storage error aborts the import, the
// result so far is returned together with the error and rows already written
// stay in the vault.
func (v *Vault) Import(path string, opts ImportOptions) (*ImportResult, error) {
	db, err := v.unlocked()
	if err != nil {
		return nil, err
	}

	records, err := db.ListCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	folder := newKeyFolder()
	existing := make(map[dupKey]uint64, len(records))
	for _, rec := range records {
		existing[folder.key(rec.Service, rec.Username)] = rec.ID
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	// UTF8BOM drops a leading byte order mark if there is one
	reader := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("failed to parse CSV row %d: %w", rowNum, err)
		}

		row, err := v.importRow(db, folder, existing, rowNum, record, cols, opts)
		if err != nil {
			return result, err
		}
		logging.Debugf("import row %d: %s", rowNum, row.Outcome)
		result.add(row)
	}

	return result, nil
}

func (v *Vault) importRow(db *storage.Storage, folder *keyFolder, existing map[dupKey]uint64, rowNum int, record []string, cols *importColumns, opts ImportOptions) (RowResult, error) {
	service := field(record, cols.service)
	username := field(record, cols.username)
	password := field(record, cols.password)

	if service == "" || username == "" || password == "" {
		return RowResult{
			Row:      rowNum,
			Service:  orEmpty(service),
			Username: orEmpty(username),
			Outcome:  RowSkipped,
			Reason:   fmt.Sprintf("Row %d: Missing required field(s)", rowNum),
		}, nil
	}

	row := RowResult{Row: rowNum, Service: service, Username: username}
	key := folder.key(service, username)

	if id, dup := existing[key]; dup {
		if !opts.MergeDuplicates {
			row.Outcome = RowSkipped
			row.Reason = reasonDuplicate
			return row, nil
		}

		row.Outcome = RowMerged
		if !opts.DryRun {
			encrypted, err := v.enc.Encrypt([]byte(password))
			if err != nil {
				return row, fmt.Errorf("failed to encrypt row %d: %w", rowNum, err)
			}
			if err := db.UpdatePassword(id, encrypted); err != nil {
				return row, fmt.Errorf("failed to update credential %d from row %d: %w", id, rowNum, err)
			}
			row.ID = id
		}
		return row, nil
	}

	row.Outcome = RowInserted
	if !opts.DryRun {
		encrypted, err := v.enc.Encrypt([]byte(password))
		if err != nil {
			return row, fmt.Errorf("failed to encrypt row %d: %w", rowNum, err)
		}
		id, err := db.InsertCredential(service, username, encrypted)
		if err != nil {
			return row, fmt.Errorf("failed to store row %d: %w", rowNum, err)
		}
		row.ID = id
	}
	// Registered on dry runs too, so later rows of this file see it
	existing[key] = row.ID
	return row, nil
}
