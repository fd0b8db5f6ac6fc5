// Package postgres provides a Postgres-backed metadata store that mirrors the
// in-memory semantics while snapshotting state to a JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/TatyanaKovaleva/rethinkdb/internal/metadata"
	"github.com/TatyanaKovaleva/rethinkdb/internal/observability"
	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

const (
	defaultDriver   = "pgx"
	defaultDSN      = "postgres://localhost/dbconfig?sslmode=disable"
	databasesBucket = "databases"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the connection opener for tests. The returned
// function restores the original.
func OverrideSQLOpen(fn func(driver, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Store is a metadata store that snapshots the full state to Postgres after
// every successful write.
type Store struct {
	*metadata.View
	db *sql.DB
	mu sync.Mutex
}

var _ metadata.Store = (*Store)(nil)

// NewStore connects using dsn (falling back to a local default), ensures the
// snapshot table exists, and hydrates the view from any persisted snapshot.
func NewStore(dsn, replica string, rec observability.Recorder) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	s := &Store{View: metadata.NewView(replica, rec), db: db}
	if err := s.load(ctx); err != nil {
		_ = s.View.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM state WHERE bucket = $1`, databasesBucket).Scan(&payload)
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
	_, err = s.View.Commit(ctx, func(domain.Databases) domain.Databases {
		return loaded
	})
	return err
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode %s: %w", databasesBucket, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload`,
		databasesBucket, payload); err != nil {
		return fmt.Errorf("upsert %s: %w", databasesBucket, err)
	}
	return nil
}

// Update applies fn through the view, then snapshots the merged state to
// Postgres if the write succeeded.
func (s *Store) Update(ctx context.Context, fn metadata.UpdateFunc) (domain.Databases, error) {
	merged, err := s.View.Update(ctx, fn)
	if err != nil {
		return merged, err
	}
	if err := s.persist(ctx); err != nil {
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
