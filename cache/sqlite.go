package cache

import (
	"database/sql"
	"fmt"
)

// SQLiteStorage is a Storage backend over a kv table in the garment index
// database, so the feature cache travels with the index file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates the kv table if needed and returns the backend.
func NewSQLiteStorage(db *sql.DB) (*SQLiteStorage, error) {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("cannot create kv table: %v", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Read returns the value for a key and whether it exists.
func (s *SQLiteStorage) Read(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv read for %s: %v", key, err)
	}
	return value, true, nil
}

// Write stores a value under a key, replacing any previous value.
func (s *SQLiteStorage) Write(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO kv_store (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("kv write for %s: %v", key, err)
	}
	return nil
}

// Delete removes a key.
func (s *SQLiteStorage) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv_store WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("kv delete for %s: %v", key, err)
	}
	return nil
}
