// Package store persists asset records in SQLite. It is the durable
// vault behind generation history and the asset library.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"studio-go/internal/store/migrations"
	"studio-go/internal/studio"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the Store interface using SQLite. The
// connection is opened lazily and reopened transparently if a previous
// one was closed or has gone stale, so callers never deal with
// connection lifecycle.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a store backed by the database at path.
// path can be a file path or ":memory:" for an in-memory store.
// The connection itself is established on first use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the store relies on. Exported for tools and tests that need
// a properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its own database,
	// so pin in-memory stores to a single connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// getDB returns a live connection, reopening it when the cached one is
// missing or no longer responds. Callers must hold s.mu.
func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s.db != nil {
		if err := s.db.Ping(); err == nil {
			return s.db, nil
		}
		// Stale from a prior Close or a dropped connection. Discard
		// and fall through to a fresh open.
		s.db.Close()
		s.db = nil
	}

	db, err := OpenConnection(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", studio.ErrRead, err)
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", studio.ErrRead, err)
	}

	s.db = db
	return s.db, nil
}

// Put inserts or fully replaces the record with the same ID. The
// stored form is normalized: a data-URL prefix is stripped from the
// base64 payload, and empty prompt/source fields get their defaults.
func (s *SQLiteStore) Put(record *studio.AssetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDB()
	if err != nil {
		return err
	}

	stored := normalize(record)

	var uploadType sql.NullString
	if stored.UploadType != "" {
		uploadType = sql.NullString{String: string(stored.UploadType), Valid: true}
	}
	var seed sql.NullInt64
	if stored.Seed != nil {
		seed = sql.NullInt64{Int64: *stored.Seed, Valid: true}
	}

	_, err = db.Exec(`
		INSERT INTO asset_records (id, url, base64, prompt, model_id, aspect_ratio, timestamp, source, upload_type, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			base64 = excluded.base64,
			prompt = excluded.prompt,
			model_id = excluded.model_id,
			aspect_ratio = excluded.aspect_ratio,
			timestamp = excluded.timestamp,
			source = excluded.source,
			upload_type = excluded.upload_type,
			seed = excluded.seed`,
		stored.ID, stored.URL, stored.Base64, stored.Prompt, stored.ModelID,
		stored.AspectRatio, stored.Timestamp, string(stored.Source), uploadType, seed)
	if err != nil {
		return fmt.Errorf("%w: saving record %s: %v", studio.ErrWrite, stored.ID, err)
	}
	return nil
}

// normalize returns the record in stored form without mutating the
// caller's copy.
func normalize(record *studio.AssetRecord) *studio.AssetRecord {
	stored := *record
	if i := strings.Index(stored.Base64, ";base64,"); i >= 0 && strings.HasPrefix(stored.Base64, "data:") {
		stored.Base64 = stored.Base64[i+len(";base64,"):]
	}
	// A record whose only payload is a data URL would be lost once that
	// URL goes stale, so derive the durable base64 copy from it.
	if stored.Base64 == "" {
		if i := strings.Index(stored.URL, ";base64,"); i >= 0 && strings.HasPrefix(stored.URL, "data:") {
			stored.Base64 = stored.URL[i+len(";base64,"):]
		}
	}
	if stored.Prompt == "" {
		stored.Prompt = studio.DefaultPrompt
	}
	if stored.Source == "" {
		stored.Source = studio.SourceGenerated
	}
	return &stored
}

// GetAll returns up to limit records, newest first. Records sharing a
// timestamp keep their insertion order relative to each other.
func (s *SQLiteStore) GetAll(limit int) ([]*studio.AssetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT id, url, base64, prompt, model_id, aspect_ratio, timestamp, source, upload_type, seed
		FROM asset_records
		ORDER BY timestamp DESC, rowid ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing records: %v", studio.ErrRead, err)
	}
	defer rows.Close()

	var records []*studio.AssetRecord
	for rows.Next() {
		var r studio.AssetRecord
		var source string
		var uploadType sql.NullString
		var seed sql.NullInt64
		if err := rows.Scan(&r.ID, &r.URL, &r.Base64, &r.Prompt, &r.ModelID,
			&r.AspectRatio, &r.Timestamp, &source, &uploadType, &seed); err != nil {
			return nil, fmt.Errorf("%w: scanning record: %v", studio.ErrRead, err)
		}
		r.Source = studio.Source(source)
		if uploadType.Valid {
			r.UploadType = studio.UploadType(uploadType.String)
		}
		if seed.Valid {
			v := seed.Int64
			r.Seed = &v
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing records: %v", studio.ErrRead, err)
	}
	return records, nil
}

// Delete removes the record with the given ID. Deleting an absent ID
// is not an error.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDB()
	if err != nil {
		return err
	}

	if _, err := db.Exec("DELETE FROM asset_records WHERE id = ?", id); err != nil {
		return fmt.Errorf("%w: deleting record %s: %v", studio.ErrWrite, id, err)
	}
	return nil
}

// Clear removes every record. Clearing an empty store succeeds.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDB()
	if err != nil {
		return err
	}

	if _, err := db.Exec("DELETE FROM asset_records"); err != nil {
		return fmt.Errorf("%w: clearing records: %v", studio.ErrWrite, err)
	}
	return nil
}

// SnapshotTo writes a complete copy of the database to destPath using
// VACUUM INTO.
func (s *SQLiteStore) SnapshotTo(destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDB()
	if err != nil {
		return err
	}

	if _, err := db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("%w: snapshotting database: %v", studio.ErrWrite, err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.getDB()
	if err != nil {
		return err
	}
	return migrations.CheckDBMigrationStatus(db)
}

// Close closes the connection. The store remains usable: the next
// operation reopens transparently.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Compile-time check that SQLiteStore implements the Store interface
var _ studio.Store = (*SQLiteStore)(nil)
