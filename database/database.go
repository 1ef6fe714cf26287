// Package database persists the garment index: one row per analyzed image
// with its feature vector, optional tag payload and source metadata.
package database

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/NanamiAkari/attire-ai-explorer/logging"
	"github.com/NanamiAkari/attire-ai-explorer/types"
)

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create table if it doesn't exist
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS garments (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		image_url TEXT,
		source_prefix TEXT,
		width INTEGER,
		height INTEGER,
		features BLOB,
		tags TEXT,
		indexed_at TEXT,
		UNIQUE(path, source_prefix)
	);
	CREATE INDEX IF NOT EXISTS idx_garments_path ON garments(path);
	CREATE INDEX IF NOT EXISTS idx_garments_prefix ON garments(source_prefix);`

	_, err = db.Exec(createTableSQL)
	if err != nil {
		return nil, err
	}

	// Check if tags column exists, add it if it doesn't (older index files
	// predate tag storage)
	var hasTagsColumn bool
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('garments') WHERE name='tags'").Scan(&hasTagsColumn)
	if err != nil {
		return nil, fmt.Errorf("error checking for tags column: %v", err)
	}

	if !hasTagsColumn {
		_, err = db.Exec("ALTER TABLE garments ADD COLUMN tags TEXT;")
		if err != nil {
			return nil, fmt.Errorf("error adding tags column: %v", err)
		}
		logging.DebugLog("Added 'tags' column to existing database schema")
	}

	return db, nil
}

// OpenDatabase opens an existing database connection
func OpenDatabase(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath)
}

// CheckGarmentExists checks if an image is already indexed
func CheckGarmentExists(db *sql.DB, path string, sourcePrefix string) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM garments WHERE path = ? AND source_prefix = ?", path, sourcePrefix).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("database error for %s: %v", path, err)
	}
	return count > 0, nil
}

// StoreGarment stores a garment record in the database
func StoreGarment(db *sql.DB, rec types.GarmentRecord, forceRewrite bool) error {
	var stmt *sql.Stmt
	var insertErr error

	if forceRewrite {
		stmt, insertErr = db.Prepare(`
			INSERT OR REPLACE INTO garments (
				id, path, image_url, source_prefix, width, height, features, tags, indexed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
	} else {
		stmt, insertErr = db.Prepare(`
			INSERT OR IGNORE INTO garments (
				id, path, image_url, source_prefix, width, height, features, tags, indexed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
	}

	if insertErr != nil {
		return fmt.Errorf("cannot prepare statement for %s: %v", rec.Path, insertErr)
	}
	defer stmt.Close()

	indexedAt := rec.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}

	_, err := stmt.Exec(
		rec.ID,
		rec.Path,
		rec.ImageURL,
		rec.SourcePrefix,
		rec.Width,
		rec.Height,
		EncodeFeatures(rec.Features),
		rec.TagsJSON,
		indexedAt.Format(time.RFC3339),
	)

	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %v", rec.Path, err)
	}

	return nil
}

// LoadGarments retrieves indexed records, optionally filtered by source prefix
func LoadGarments(db *sql.DB, sourcePrefix string) ([]types.GarmentRecord, error) {
	var rows *sql.Rows
	var err error

	if sourcePrefix != "" {
		rows, err = db.Query(`SELECT id, path, image_url, source_prefix, width, height, features, tags, indexed_at
			FROM garments WHERE source_prefix = ?`, sourcePrefix)
	} else {
		rows, err = db.Query(`SELECT id, path, image_url, source_prefix, width, height, features, tags, indexed_at FROM garments`)
	}
	if err != nil {
		return nil, fmt.Errorf("query garments: %v", err)
	}
	defer rows.Close()

	var records []types.GarmentRecord
	for rows.Next() {
		var rec types.GarmentRecord
		var imageURL, tagsJSON, indexedAt sql.NullString
		var features []byte

		if err := rows.Scan(&rec.ID, &rec.Path, &imageURL, &rec.SourcePrefix,
			&rec.Width, &rec.Height, &features, &tagsJSON, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan garment row: %v", err)
		}

		rec.ImageURL = imageURL.String
		rec.TagsJSON = tagsJSON.String
		rec.Features = DecodeFeatures(features)
		if indexedAt.Valid {
			if t, err := time.Parse(time.RFC3339, indexedAt.String); err == nil {
				rec.IndexedAt = t
			}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetIndexStats retrieves statistics about the garment index
func GetIndexStats(db *sql.DB, sourcePrefix string) (*types.IndexStats, error) {
	var stats types.IndexStats
	var args []interface{}

	totalQuery := "SELECT COUNT(*) FROM garments"
	taggedQuery := "SELECT COUNT(*) FROM garments WHERE tags IS NOT NULL AND tags != ''"
	if sourcePrefix != "" {
		totalQuery += " WHERE source_prefix = ?"
		taggedQuery += " AND source_prefix = ?"
		args = append(args, sourcePrefix)
	}

	if err := db.QueryRow(totalQuery, args...).Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("failed to get total records: %v", err)
	}
	if err := db.QueryRow(taggedQuery, args...).Scan(&stats.TaggedCount); err != nil {
		return nil, fmt.Errorf("failed to get tagged count: %v", err)
	}

	var newest sql.NullString
	newestQuery := "SELECT MAX(indexed_at) FROM garments"
	if sourcePrefix != "" {
		newestQuery += " WHERE source_prefix = ?"
	}
	if err := db.QueryRow(newestQuery, args...).Scan(&newest); err != nil {
		return nil, fmt.Errorf("failed to get newest timestamp: %v", err)
	}
	if newest.Valid {
		if t, err := time.Parse(time.RFC3339, newest.String); err == nil {
			stats.NewestAt = t
		}
	}

	return &stats, nil
}

// EncodeFeatures packs a feature vector into a little-endian float64 BLOB.
func EncodeFeatures(v types.FeatureVector) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeFeatures unpacks a BLOB written by EncodeFeatures.
func DecodeFeatures(buf []byte) types.FeatureVector {
	if len(buf) == 0 {
		return nil
	}
	v := make(types.FeatureVector, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}
