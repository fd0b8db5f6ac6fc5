package dbconfig

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/TatyanaKovaleva/rethinkdb/internal/cluster"
	"github.com/TatyanaKovaleva/rethinkdb/internal/metadata"
	"github.com/TatyanaKovaleva/rethinkdb/internal/observability"
	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

// wrongFormatPrefix qualifies row decode failures on the write path.
const wrongFormatPrefix = "The change you're trying to make to `rethinkdb.db_config` has the wrong format. "

// errUnchanged aborts an update without mutating state or notifying
// subscribers. Used for the delete-of-absent no-op.
var errUnchanged = errors.New("dbconfig: no change")

// Backend serves the db_config table: the map of database definitions
// projected as rows, with a validated write path. All writes run on the
// metadata view's home goroutine, so validation and mutation of one write
// never interleave with another.
type Backend struct {
	view        metadata.Store
	coordinator cluster.Coordinator
	notifier    *Notifier
	rec         observability.Recorder
}

// NewBackend wires a backend over view. Every successful commit, this
// replica's or a merged remote one's, triggers a notifier broadcast.
func NewBackend(view metadata.Store, coordinator cluster.Coordinator, rec observability.Recorder) *Backend {
	if rec == nil {
		rec = observability.NopRecorder{}
	}
	b := &Backend{
		view:        view,
		coordinator: coordinator,
		notifier:    NewNotifier(),
		rec:         rec,
	}
	view.OnCommit(b.notifier.Broadcast)
	return b
}

// PrimaryKeyName returns the table's primary key field.
func (b *Backend) PrimaryKeyName() string { return "id" }

// Notifier exposes the change subscription surface.
func (b *Backend) Notifier() *Notifier { return b.notifier }

// Close tears down the notification surface. It returns only after any
// broadcast already underway has drained; the view itself stays open.
func (b *Backend) Close() {
	b.notifier.Close()
}

// ListRows returns one row per live database, sorted by id. Tombstones are
// invisible.
func (b *Backend) ListRows(ctx context.Context) []Row {
	start := time.Now()
	snapshot := b.view.Snapshot()
	rows := make([]Row, 0, len(snapshot))
	for id, entry := range snapshot {
		if entry.IsDeleted() {
			continue
		}
		rows = append(rows, ToRow(Record{ID: id, Name: entry.Ref().Name.Value}))
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["id"].(string) < rows[j]["id"].(string)
	})
	b.rec.Observe(ctx, "list_rows", true, time.Since(start))
	return rows
}

// ReadRow returns the row for key, or ok=false when no live database has
// that id. A key that does not parse as an id refers to no row; it is a
// miss, not an error.
func (b *Backend) ReadRow(ctx context.Context, key string) (Row, bool) {
	start := time.Now()
	id := parseKey(key)
	snapshot := b.view.Snapshot()
	entry, found := snapshot[id]
	if !found || entry.IsDeleted() {
		b.rec.Observe(ctx, "read_row", true, time.Since(start))
		return nil, false
	}
	b.rec.Observe(ctx, "read_row", true, time.Since(start))
	return ToRow(Record{ID: id, Name: entry.Ref().Name.Value}), true
}

// WriteRow is the single write entry point: create or rename when newRow is
// non-nil, delete when it is nil. pkeyWasAutogenerated records whether the
// request layer invented key, which is only legal for creates. The whole
// operation, validation included, executes as one step on the view's home
// goroutine.
func (b *Backend) WriteRow(ctx context.Context, key string, pkeyWasAutogenerated bool, newRow Row) error {
	start := time.Now()
	id := parseKey(key)
	var err error
	if newRow != nil {
		_, err = b.view.Update(ctx, func(cur domain.Databases) (domain.Databases, error) {
			return b.writeConfig(cur, id, pkeyWasAutogenerated, newRow)
		})
	} else {
		_, err = b.view.Update(ctx, func(cur domain.Databases) (domain.Databases, error) {
			return b.deleteConfig(ctx, cur, id, pkeyWasAutogenerated)
		})
		if errors.Is(err, errUnchanged) {
			err = nil
		}
	}
	b.rec.Observe(ctx, "write_row", err == nil, time.Since(start))
	return err
}

// writeConfig handles the create and rename branches. It runs on the view's
// home goroutine against the authoritative snapshot.
func (b *Backend) writeConfig(cur domain.Databases, id domain.DatabaseID, pkeyWasAutogenerated bool, newRow Row) (domain.Databases, error) {
	entry, present := cur[id]
	existedBefore := present && !entry.IsDeleted()

	rec, err := FromRow(newRow)
	if err != nil {
		return nil, &domain.ValidationError{Msg: wrongFormatPrefix + err.Error()}
	}
	domain.Guarantee(rec.ID == id,
		"the request layer should ensure that the primary key doesn't change")

	if existedBefore {
		domain.Guarantee(!pkeyWasAutogenerated, "UUID collision happened")
	} else {
		if !pkeyWasAutogenerated {
			return nil, &domain.PolicyError{Msg: "If you want to create a new table by inserting into " +
				"`rethinkdb.db_config`, you must use an auto-generated primary key."}
		}
		// A freshly generated id must not resurrect a tombstone either.
		domain.Guarantee(!present, "UUID collision happened")
	}

	var oldName domain.Name
	if existedBefore {
		oldName = entry.Ref().Name.Value
	}

	if !existedBefore || rec.Name != oldName {
		if err := checkNameFree(cur, rec.Name, oldName, existedBefore); err != nil {
			return nil, err
		}
	}

	if existedBefore {
		cfg := entry.Ref()
		cfg.Name = cfg.Name.Set(rec.Name, b.view.Replica())
		cur[id] = domain.NewDeletable(cfg)
	} else {
		cur[id] = domain.NewDeletable(domain.DatabaseConfig{
			Name: domain.NewVersioned(rec.Name, b.view.Replica()),
		})
	}
	return cur, nil
}

// deleteConfig handles the delete branch. The coordinator's cascading drop
// must succeed before the tombstone is committed; its failure leaves the
// store untouched.
func (b *Backend) deleteConfig(ctx context.Context, cur domain.Databases, id domain.DatabaseID, pkeyWasAutogenerated bool) (domain.Databases, error) {
	entry, present := cur[id]
	if !present || entry.IsDeleted() {
		return nil, errUnchanged
	}
	domain.Guarantee(!pkeyWasAutogenerated, "UUID collision happened")

	name := entry.Ref().Name.Value
	if err := b.coordinator.DropDatabase(ctx, cluster.ConfigPermissions(), id, name); err != nil {
		return nil, &domain.CascadeError{Name: name, Err: err}
	}
	cur[id] = domain.NewTombstone[domain.DatabaseConfig]()
	return cur, nil
}

// checkNameFree rejects the reserved system name and collisions with any
// live database, with the message flavored for create versus rename.
func checkNameFree(cur domain.Databases, newName, oldName domain.Name, existedBefore bool) error {
	if newName == domain.ReservedDatabaseName {
		return nameConflict(newName, oldName, existedBefore)
	}
	for _, other := range cur {
		if !other.IsDeleted() && other.Ref().Name.Value == newName {
			return nameConflict(newName, oldName, existedBefore)
		}
	}
	return nil
}

func nameConflict(newName, oldName domain.Name, existedBefore bool) error {
	if !existedBefore {
		return &domain.ConflictError{Msg: fmt.Sprintf("Database `%s` already exists.", newName)}
	}
	return &domain.ConflictError{Msg: fmt.Sprintf(
		"Cannot rename database `%s` to `%s` because database `%s` already exists.",
		oldName, newName, newName)}
}

// parseKey resolves a primary key string to an id. A malformed key refers to
// no stored record, so it maps to the nil id rather than failing.
func parseKey(key string) domain.DatabaseID {
	id, err := domain.ParseDatabaseID(key)
	if err != nil {
		return domain.NilDatabaseID
	}
	return id
}
