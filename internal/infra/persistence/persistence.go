// Package persistence selects and opens the durable backing for the metadata
// view.
package persistence

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/TatyanaKovaleva/rethinkdb/internal/infra/persistence/memory"
	"github.com/TatyanaKovaleva/rethinkdb/internal/infra/persistence/postgres"
	"github.com/TatyanaKovaleva/rethinkdb/internal/infra/persistence/sqlite"
	"github.com/TatyanaKovaleva/rethinkdb/internal/metadata"
	"github.com/TatyanaKovaleva/rethinkdb/internal/observability"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	DBCONFIG_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	DBCONFIG_SQLITE_PATH: path to sqlite file (default ./dbconfig.db)
//	DBCONFIG_POSTGRES_DSN: postgres DSN when driver=postgres
//	DBCONFIG_REPLICA: this node's replica identity (default random)
func Open(rec observability.Recorder) (metadata.Store, error) {
	replica := os.Getenv("DBCONFIG_REPLICA")
	if replica == "" {
		replica = uuid.NewString()
	}
	driver := os.Getenv("DBCONFIG_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(replica, rec), nil
	case StorageSQLite:
		path := os.Getenv("DBCONFIG_SQLITE_PATH")
		return sqlite.NewStore(path, replica, rec)
	case StoragePostgres:
		dsn := os.Getenv("DBCONFIG_POSTGRES_DSN")
		return postgres.NewStore(dsn, replica, rec)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
