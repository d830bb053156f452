package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
)

// Snapshot is one material's movements from a single source file or query,
// tagged with the identity of that source.
type Snapshot struct {
	Source     string
	Identity   string
	MaterialID string
	Records    []domain.TransactionRecord
}

// Identity is a stable marker for a source snapshot: the content hash plus
// the modification time. Either changing yields a new identity.
func Identity(content []byte, modTime time.Time) string {
	sum := sha256.Sum256(content)
	id := hex.EncodeToString(sum[:])
	if !modTime.IsZero() {
		id += "@" + modTime.UTC().Format(time.RFC3339)
	}
	return id
}

// Decode parses a CSV or XLSX payload by file extension and splits it per
// material.
func Decode(name string, content []byte, modTime time.Time) ([]Snapshot, error) {
	var (
		records []domain.TransactionRecord
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", "":
		records, err = ParseCSV(bytes.NewReader(content))
	case ".xlsx":
		records, err = ParseXLSX(bytes.NewReader(content))
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrMalformed, filepath.Ext(name))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return Split(name, Identity(content, modTime), records), nil
}

// ReadFile loads a local CSV or XLSX file.
func ReadFile(path string) ([]Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(path, content, info.ModTime())
}

// Split groups records by material, ordered by material id. Record order
// inside a group follows the input; the aggregator re-sorts by date.
func Split(source, identity string, records []domain.TransactionRecord) []Snapshot {
	byMaterial := make(map[string][]domain.TransactionRecord)
	for _, r := range records {
		byMaterial[r.MaterialID] = append(byMaterial[r.MaterialID], r)
	}

	ids := make([]string, 0, len(byMaterial))
	for id := range byMaterial {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, Snapshot{
			Source:     source,
			Identity:   identity,
			MaterialID: id,
			Records:    byMaterial[id],
		})
	}
	return out
}

// Filter keeps the snapshots for the given materials. An empty list keeps all.
func Filter(snapshots []Snapshot, materials ...string) []Snapshot {
	if len(materials) == 0 {
		return snapshots
	}
	want := make(map[string]bool, len(materials))
	for _, m := range materials {
		want[strings.TrimSpace(m)] = true
	}
	var out []Snapshot
	for _, s := range snapshots {
		if want[s.MaterialID] {
			out = append(out, s)
		}
	}
	return out
}
