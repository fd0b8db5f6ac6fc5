// Package sqlite persists the metadata state to an embedded SQLite file as a
// JSON snapshot, rewritten after every successful commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/TatyanaKovaleva/rethinkdb/internal/metadata"
	"github.com/TatyanaKovaleva/rethinkdb/internal/observability"
	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

const databasesBucket = "databases"

// Store is a metadata store that snapshots the full state to a single SQLite
// table after every successful write.
type Store struct {
	*metadata.View
	db   *sql.DB
	mu   sync.Mutex
	path string
}

var _ metadata.Store = (*Store)(nil)

// NewStore opens (creating if needed) the SQLite file at path and hydrates
// the view from any persisted snapshot.
func NewStore(path, replica string, rec observability.Recorder) (*Store, error) {
	if path == "" {
		path = "dbconfig.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{View: metadata.NewView(replica, rec), db: db, path: path}
	if err := s.load(); err != nil {
		_ = s.View.Close()
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, databasesBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var loaded domain.Databases
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return fmt.Errorf("decode %s: %w", databasesBucket, err)
	}
	_, err = s.View.Commit(context.Background(), func(domain.Databases) domain.Databases {
		return loaded
	})
	return err
}

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode %s: %w", databasesBucket, err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		databasesBucket, payload); err != nil {
		return fmt.Errorf("upsert %s: %w", databasesBucket, err)
	}
	return nil
}

// Update applies fn through the view, then snapshots the merged state to
// SQLite if the write succeeded.
func (s *Store) Update(ctx context.Context, fn metadata.UpdateFunc) (domain.Databases, error) {
	merged, err := s.View.Update(ctx, fn)
	if err != nil {
		return merged, err
	}
	if err := s.persist(); err != nil {
		return merged, err
	}
	return merged, nil
}

// Commit mirrors Update for unconditional mutators.
func (s *Store) Commit(ctx context.Context, fn metadata.Mutator) (domain.Databases, error) {
	return s.Update(ctx, func(cur domain.Databases) (domain.Databases, error) {
		return fn(cur), nil
	})
}

// Close stops the view and releases the database handle.
func (s *Store) Close() error {
	verr := s.View.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return verr
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
