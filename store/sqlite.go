package store

import (
	"database/sql"
	"fmt"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS object_state (
	object_id     INTEGER PRIMARY KEY,
	seq           INTEGER NOT NULL,
	current_x     REAL NOT NULL,
	current_y     REAL NOT NULL,
	current_angle REAL NOT NULL,
	predicted_x   REAL NOT NULL,
	predicted_y   REAL NOT NULL,
	color         TEXT NOT NULL,
	timestamp     TEXT NOT NULL
)`

// upsertSQL keeps the original insertion sequence of a record when it is
// replaced
const upsertSQL = `
INSERT INTO object_state (object_id, seq, current_x, current_y, current_angle,
	predicted_x, predicted_y, color, timestamp)
VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM object_state), ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(object_id) DO UPDATE SET
	current_x = excluded.current_x,
	current_y = excluded.current_y,
	current_angle = excluded.current_angle,
	predicted_x = excluded.predicted_x,
	predicted_y = excluded.predicted_y,
	color = excluded.color,
	timestamp = excluded.timestamp`

// SQLiteStore persists records as rows of an SQLite table keyed by object ID
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens, or creates, the SQLite database at path
func OpenSQLite(path string) (*SQLiteStore, error) {

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrPersistence, path, err)
	}

	// a single connection keeps in-memory databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", ErrPersistence, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Init deletes all records
func (s *SQLiteStore) Init() error {

	if _, err := s.db.Exec(`DELETE FROM object_state`); err != nil {
		return fmt.Errorf("%w: clearing records: %w", ErrPersistence, err)
	}

	return nil
}

// Upsert inserts the record or updates the row with the same object ID
func (s *SQLiteStore) Upsert(rec Record) error {

	_, err := s.db.Exec(upsertSQL, rec.ObjectID,
		rec.CurrentPose[0], rec.CurrentPose[1], rec.CurrentPose[2],
		rec.PredictedPose[0], rec.PredictedPose[1], rec.Color, rec.Timestamp)

	if err != nil {
		return fmt.Errorf("%w: upserting object %d: %w", ErrPersistence, rec.ObjectID, err)
	}

	return nil
}

// Flush is a no-op as every upsert is committed immediately
func (s *SQLiteStore) Flush() error {
	return nil
}

// Records returns all records in insertion order
func (s *SQLiteStore) Records() ([]Record, error) {

	rows, err := s.db.Query(`SELECT object_id, current_x, current_y, current_angle,
		predicted_x, predicted_y, color, timestamp FROM object_state ORDER BY seq`)

	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %w", ErrPersistence, err)
	}

	defer rows.Close()

	recs := []Record{}

	for rows.Next() {
		var rec Record

		err := rows.Scan(&rec.ObjectID, &rec.CurrentPose[0], &rec.CurrentPose[1],
			&rec.CurrentPose[2], &rec.PredictedPose[0], &rec.PredictedPose[1],
			&rec.Color, &rec.Timestamp)

		if err != nil {
			return nil, fmt.Errorf("%w: scanning record: %w", ErrPersistence, err)
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading records: %w", ErrPersistence, err)
	}

	return recs, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
