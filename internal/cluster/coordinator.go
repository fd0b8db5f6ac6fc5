// Package cluster holds the coordinator contract the db_config write path
// uses for cascading drops, plus an in-process table-ownership registry that
// implements it.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

// Permissions are the actor permissions a cascading operation runs with.
type Permissions struct {
	Read    bool
	Write   bool
	Config  bool
	Connect bool
}

// ConfigPermissions is the permission set the config write path uses for
// cascading drops: configuration changes only.
func ConfigPermissions() Permissions { return Permissions{Config: true} }

// Coordinator performs the cascading teardown of everything a database owns.
// DropDatabase must complete before the caller tombstones the database; any
// error, cancellation included, means nothing may be deleted.
type Coordinator interface {
	DropDatabase(ctx context.Context, perms Permissions, id domain.DatabaseID, name domain.Name) error
}

// TableID identifies a table in the ownership registry.
type TableID uuid.UUID

// NewTableID returns a fresh random table id.
func NewTableID() TableID { return TableID(uuid.New()) }

func (id TableID) String() string { return uuid.UUID(id).String() }

// Table is one entry of the ownership registry.
type Table struct {
	ID       TableID
	Database domain.DatabaseID
	Name     string
}

// Registry is an in-process Coordinator tracking which tables each database
// owns. Dropping a database removes every table it owns in one step.
type Registry struct {
	mu     sync.Mutex
	tables map[TableID]Table
}

var _ Coordinator = (*Registry)(nil)

// NewRegistry returns an empty ownership registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[TableID]Table)}
}

// AddTable records a table owned by db.
func (r *Registry) AddTable(db domain.DatabaseID, name string) Table {
	table := Table{ID: NewTableID(), Database: db, Name: name}
	r.mu.Lock()
	r.tables[table.ID] = table
	r.mu.Unlock()
	return table
}

// Tables lists the tables owned by db, sorted by name.
func (r *Registry) Tables(db domain.DatabaseID) []Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Table
	for _, table := range r.tables {
		if table.Database == db {
			out = append(out, table)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DropDatabase implements Coordinator: it deletes every table owned by id.
// It requires the config permission and honors ctx cancellation before
// touching the registry.
func (r *Registry) DropDatabase(ctx context.Context, perms Permissions, id domain.DatabaseID, name domain.Name) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !perms.Config {
		return fmt.Errorf("dropping database `%s` requires the config permission", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for tableID, table := range r.tables {
		if table.Database == id {
			delete(r.tables, tableID)
		}
	}
	return nil
}
