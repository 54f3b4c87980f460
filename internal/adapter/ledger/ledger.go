package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"esgkb/internal/domain"
)

// RecordFile is the ledger's on-disk name inside the output directory.
const RecordFile = "vector_build_record.json"

// Ledger is the persisted set of source files whose chunks are already part
// of the index. Keys are resolved absolute paths; entries are created when a
// file finishes processing and are never mutated or removed — re-processing
// a corpus means clearing the ledger and the index together.
type Ledger struct {
	path    string
	entries map[string]domain.LedgerEntry
}

// Open loads the ledger from the output directory, starting empty when no
// record file exists yet.
func Open(outputDir string) (*Ledger, error) {
	l := &Ledger{
		path:    filepath.Join(outputDir, RecordFile),
		entries: make(map[string]domain.LedgerEntry),
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read build record: %w", err)
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("parse build record %s: %w", l.path, err)
	}
	return l, nil
}

// Contains reports whether the file identity is already recorded.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.entries[id]
	return ok
}

// MarkDone records a finished file and persists the ledger immediately, so
// a crash after this point never re-processes the file.
func (l *Ledger) MarkDone(id, filename string) error {
	l.entries[id] = domain.LedgerEntry{Filename: filename}
	return l.save()
}

// Len returns the number of recorded files.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the recorded files.
func (l *Ledger) Entries() map[string]domain.LedgerEntry {
	out := make(map[string]domain.LedgerEntry, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

func (l *Ledger) save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.entries); err != nil {
		return fmt.Errorf("marshal build record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), RecordFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("write build record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write build record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write build record: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write build record: %w", err)
	}
	return nil
}

// FileIdentity computes the stable identity of a source file: its resolved
// absolute path, following symlinks when possible.
func FileIdentity(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
