package citation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// RecordStore persists one JSON record per citation item identifier. Records
// are written once and never overwritten, so repeated citations within a run
// and repeated runs leave the first record untouched.
type RecordStore struct {
	recordDir string
	seen      map[string]bool
}

// NewRecordStore creates a store in the given directory, creating it if it
// does not exist.
func NewRecordStore(recordDir string) (*RecordStore, error) {
	if err := os.MkdirAll(recordDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record directory %s: %w", recordDir, err)
	}
	return &RecordStore{
		recordDir: recordDir,
		seen:      make(map[string]bool),
	}, nil
}

// Exists reports whether a record for the identifier is already on disk.
func (store *RecordStore) Exists(identifier string) bool {
	if store.seen[identifier] {
		return true
	}
	if _, err := os.Stat(store.pathFor(identifier)); err == nil {
		store.seen[identifier] = true
		return true
	}
	return false
}

// Put writes the record unless one already exists. It reports whether a new
// file was created. The file is opened with O_EXCL, so a record that appears
// between the existence check and the write is still left alone.
func (store *RecordStore) Put(identifier string, record any) (bool, error) {
	if identifier == "" || strings.ContainsAny(identifier, `/\`) || identifier == ".." {
		return false, fmt.Errorf("invalid record identifier %q", identifier)
	}
	if store.Exists(identifier) {
		return false, nil
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal record %s: %w", identifier, err)
	}

	recordPath := store.pathFor(identifier)
	file, err := os.OpenFile(recordPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		store.seen[identifier] = true
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create record file %s: %w", recordPath, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return false, fmt.Errorf("failed to write record file %s: %w", recordPath, err)
	}
	if err := file.Close(); err != nil {
		return false, fmt.Errorf("failed to close record file %s: %w", recordPath, err)
	}

	store.seen[identifier] = true
	return true, nil
}

// Dir returns the record directory.
func (store *RecordStore) Dir() string {
	return store.recordDir
}

// pathFor returns the full file path for an identifier.
func (store *RecordStore) pathFor(identifier string) string {
	return filepath.Join(store.recordDir, identifier+".json")
}
