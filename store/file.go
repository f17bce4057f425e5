package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/renameio/v2"
	"io/fs"
	"os"
)

// FileStore persists records as a JSON array file which is read, updated and
// rewritten in full on every upsert
type FileStore struct {
	path string
	// atomic writes to a temporary file and renames it over path
	atomic bool
}

// NewFileStore returns a FileStore persisting to the JSON file at path
func NewFileStore(path string, atomic bool) *FileStore {
	return &FileStore{
		path:   path,
		atomic: atomic,
	}
}

// Path returns the JSON file path
func (s *FileStore) Path() string {
	return s.path
}

// Init removes any existing file and starts an empty collection
func (s *FileStore) Init() error {

	err := os.Remove(s.path)

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %w", ErrPersistence, s.path, err)
	}

	return writeRecords(s.path, []Record{}, s.atomic)
}

// Upsert loads the persisted collection, replaces or appends the record and
// writes the whole collection back.  A missing file is treated as an empty
// collection.
func (s *FileStore) Upsert(rec Record) error {

	recs, err := readRecords(s.path)

	if err != nil {
		return err
	}

	return writeRecords(s.path, upsertRecord(recs, rec), s.atomic)
}

// Flush is a no-op as every upsert is written through
func (s *FileStore) Flush() error {
	return nil
}

// Records returns the persisted records
func (s *FileStore) Records() ([]Record, error) {
	return readRecords(s.path)
}

// Close releases the store
func (s *FileStore) Close() error {
	return nil
}

// readRecords loads the JSON array at path, a missing file is an empty
// collection
func readRecords(path string) ([]Record, error) {

	data, err := os.ReadFile(path)

	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrPersistence, path, err)
	}

	recs := []Record{}

	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrPersistence, path, err)
	}

	return recs, nil
}

// writeRecords writes the records as an indented JSON array to path
func writeRecords(path string, recs []Record, atomic bool) error {

	if recs == nil {
		recs = []Record{}
	}

	data, err := json.MarshalIndent(recs, "", "  ")

	if err != nil {
		return fmt.Errorf("%w: encoding records: %w", ErrPersistence, err)
	}

	if atomic {
		// temporary file fsynced and renamed over path so readers never see
		// a partial file
		err = renameio.WriteFile(path, data, 0644)
	} else {
		err = os.WriteFile(path, data, 0644)
	}

	if err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrPersistence, path, err)
	}

	return nil
}
