package store

// IndexedStore keeps records in memory indexed by object ID and writes the
// whole collection to a JSON array file, atomically, when flushed.  The store
// is the sole owner of the file, it is never read back during a run.
type IndexedStore struct {
	path string
	// index maps object ID to position in records
	index   map[int]int
	records []Record
	dirty   bool
}

// NewIndexedStore returns an IndexedStore persisting to the JSON file at
// path
func NewIndexedStore(path string) *IndexedStore {
	return &IndexedStore{
		path:  path,
		index: make(map[int]int),
	}
}

// Path returns the JSON file path
func (s *IndexedStore) Path() string {
	return s.path
}

// Init clears all records and writes an empty collection
func (s *IndexedStore) Init() error {

	s.index = make(map[int]int)
	s.records = nil
	s.dirty = false

	return writeRecords(s.path, s.records, true)
}

// Upsert replaces or appends the record in memory
func (s *IndexedStore) Upsert(rec Record) error {

	if i, exists := s.index[rec.ObjectID]; exists {
		s.records[i] = rec
	} else {
		s.index[rec.ObjectID] = len(s.records)
		s.records = append(s.records, rec)
	}

	s.dirty = true
	return nil
}

// Flush writes the collection if it changed since the last flush
func (s *IndexedStore) Flush() error {

	if !s.dirty {
		return nil
	}

	if err := writeRecords(s.path, s.records, true); err != nil {
		return err
	}

	s.dirty = false
	return nil
}

// Records returns a copy of the records held in memory
func (s *IndexedStore) Records() ([]Record, error) {

	out := make([]Record, len(s.records))
	copy(out, s.records)

	return out, nil
}

// Close flushes any outstanding changes
func (s *IndexedStore) Close() error {
	return s.Flush()
}
