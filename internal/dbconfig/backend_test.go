package dbconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/TatyanaKovaleva/rethinkdb/internal/cluster"
	"github.com/TatyanaKovaleva/rethinkdb/internal/metadata"
	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

func newTestBackend(t *testing.T, coordinator cluster.Coordinator) (*Backend, *metadata.View) {
	t.Helper()
	view := metadata.NewView("replica-a", nil)
	t.Cleanup(func() { view.Close() })
	if coordinator == nil {
		coordinator = cluster.NewRegistry()
	}
	b := NewBackend(view, coordinator, nil)
	t.Cleanup(b.Close)
	return b, view
}

func mustCreate(t *testing.T, b *Backend, name string) domain.DatabaseID {
	t.Helper()
	id := domain.NewDatabaseID()
	row := Row{"id": id.String(), "name": name}
	if err := b.WriteRow(context.Background(), id.String(), true, row); err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return id
}

func TestBackendPrimaryKeyName(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	if got := b.PrimaryKeyName(); got != "id" {
		t.Fatalf("PrimaryKeyName() = %q, want %q", got, "id")
	}
}

func TestBackendCreateReadList(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	ctx := context.Background()
	first := mustCreate(t, b, "shop")
	second := mustCreate(t, b, "analytics")

	row, ok := b.ReadRow(ctx, first.String())
	if !ok {
		t.Fatal("expected row for created database")
	}
	if row["name"] != "shop" || row["id"] != first.String() {
		t.Fatalf("unexpected row %v", row)
	}

	rows := b.ListRows(ctx)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["id"].(string) >= rows[1]["id"].(string) {
		t.Fatalf("rows not sorted by id: %v", rows)
	}
	if _, ok := b.ReadRow(ctx, second.String()); !ok {
		t.Fatal("expected row for second database")
	}
}

func TestBackendReadRowMisses(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	ctx := context.Background()
	if _, ok := b.ReadRow(ctx, domain.NewDatabaseID().String()); ok {
		t.Fatal("expected miss for unknown id")
	}
	if _, ok := b.ReadRow(ctx, "not-a-uuid"); ok {
		t.Fatal("a malformed key refers to no row")
	}
}

func TestBackendCreateRequiresAutogeneratedKey(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	id := domain.NewDatabaseID()
	row := Row{"id": id.String(), "name": "shop"}
	err := b.WriteRow(context.Background(), id.String(), false, row)
	if err == nil {
		t.Fatal("expected policy error")
	}
	if domain.KindOf(err) != domain.KindPolicy {
		t.Fatalf("expected policy kind, got %v (%v)", domain.KindOf(err), err)
	}
	want := "If you want to create a new table by inserting into " +
		"`rethinkdb.db_config`, you must use an auto-generated primary key."
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if len(b.ListRows(context.Background())) != 0 {
		t.Fatal("rejected create must not land")
	}
}

func TestBackendMalformedRowLeavesStoreUntouched(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	id := domain.NewDatabaseID()
	row := Row{"id": id.String(), "name": "bad name!"}
	err := b.WriteRow(context.Background(), id.String(), true, row)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation kind, got %v", domain.KindOf(err))
	}
	want := "The change you're trying to make to `rethinkdb.db_config` has the " +
		"wrong format. In `name`: Database name `bad name!` invalid. (Use A-Za-z0-9_ only.)"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if len(b.ListRows(context.Background())) != 0 {
		t.Fatal("rejected write must not land")
	}
}

func TestBackendNameConflictOnCreate(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	mustCreate(t, b, "shop")
	id := domain.NewDatabaseID()
	err := b.WriteRow(context.Background(), id.String(), true, Row{"id": id.String(), "name": "shop"})
	if err == nil {
		t.Fatal("expected conflict")
	}
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict kind, got %v", domain.KindOf(err))
	}
	if got, want := err.Error(), "Database `shop` already exists."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBackendNameConflictOnRename(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	mustCreate(t, b, "shop")
	id := mustCreate(t, b, "staging")
	err := b.WriteRow(context.Background(), id.String(), false, Row{"id": id.String(), "name": "shop"})
	if err == nil {
		t.Fatal("expected conflict")
	}
	want := "Cannot rename database `staging` to `shop` because database `shop` already exists."
	if got := err.Error(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	row, ok := b.ReadRow(context.Background(), id.String())
	if !ok || row["name"] != "staging" {
		t.Fatalf("failed rename must leave the name unchanged: %v (ok=%v)", row, ok)
	}
}

func TestBackendReservedNameRejected(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	ctx := context.Background()

	id := domain.NewDatabaseID()
	err := b.WriteRow(ctx, id.String(), true, Row{"id": id.String(), "name": "rethinkdb"})
	if err == nil || err.Error() != "Database `rethinkdb` already exists." {
		t.Fatalf("create: got %v", err)
	}

	existing := mustCreate(t, b, "shop")
	err = b.WriteRow(ctx, existing.String(), false, Row{"id": existing.String(), "name": "rethinkdb"})
	want := "Cannot rename database `shop` to `rethinkdb` because database `rethinkdb` already exists."
	if err == nil || err.Error() != want {
		t.Fatalf("rename: got %v, want %q", err, want)
	}
}

func TestBackendRenameKeepsIDAndSkipsSelfConflict(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	ctx := context.Background()
	id := mustCreate(t, b, "shop")

	// Writing back the current name is not a collision with itself.
	if err := b.WriteRow(ctx, id.String(), false, Row{"id": id.String(), "name": "shop"}); err != nil {
		t.Fatalf("self rewrite: %v", err)
	}
	if err := b.WriteRow(ctx, id.String(), false, Row{"id": id.String(), "name": "storefront"}); err != nil {
		t.Fatalf("rename: %v", err)
	}

	row, ok := b.ReadRow(ctx, id.String())
	if !ok || row["name"] != "storefront" {
		t.Fatalf("rename did not stick: %v (ok=%v)", row, ok)
	}
	if rows := b.ListRows(ctx); len(rows) != 1 {
		t.Fatalf("rename must not create a new row: %v", rows)
	}
}

func TestBackendDeleteCascadesAndTombstones(t *testing.T) {
	registry := cluster.NewRegistry()
	b, view := newTestBackend(t, registry)
	ctx := context.Background()
	id := mustCreate(t, b, "shop")
	registry.AddTable(id, "orders")

	if err := b.WriteRow(ctx, id.String(), false, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := b.ReadRow(ctx, id.String()); ok {
		t.Fatal("deleted database still readable")
	}
	if got := registry.Tables(id); len(got) != 0 {
		t.Fatalf("cascade left tables behind: %v", got)
	}

	// The tombstone stays in the replicated state so the deletion survives
	// merges with replicas that still hold the live record.
	entry, ok := view.Snapshot()[id]
	if !ok || !entry.IsDeleted() {
		t.Fatalf("expected tombstone, got %+v (ok=%v)", entry, ok)
	}
}

func TestBackendDeleteAbsentIsNoOp(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	ctx := context.Background()

	var broadcasts int
	sub, err := b.Notifier().Subscribe(func() { broadcasts++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.WriteRow(ctx, domain.NewDatabaseID().String(), false, nil); err != nil {
		t.Fatalf("delete of absent id: %v", err)
	}
	if err := b.WriteRow(ctx, "not-a-uuid", false, nil); err != nil {
		t.Fatalf("delete with malformed key: %v", err)
	}
	if broadcasts != 0 {
		t.Fatalf("no-op deletes must not notify, got %d broadcasts", broadcasts)
	}

	id := mustCreate(t, b, "shop")
	if err := b.WriteRow(ctx, id.String(), false, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after := broadcasts
	if err := b.WriteRow(ctx, id.String(), false, nil); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if broadcasts != after {
		t.Fatal("repeat delete of a tombstone must not notify")
	}
}

type failingCoordinator struct{ err error }

func (f failingCoordinator) DropDatabase(ctx context.Context, perms cluster.Permissions, id domain.DatabaseID, name domain.Name) error {
	return f.err
}

type countingCoordinator struct{ calls int }

func (c *countingCoordinator) DropDatabase(ctx context.Context, perms cluster.Permissions, id domain.DatabaseID, name domain.Name) error {
	c.calls++
	return nil
}

func TestBackendDeleteInvokesCascadeOnce(t *testing.T) {
	coordinator := &countingCoordinator{}
	b, _ := newTestBackend(t, coordinator)
	ctx := context.Background()
	id := mustCreate(t, b, "shop")

	if err := b.WriteRow(ctx, id.String(), false, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if coordinator.calls != 1 {
		t.Fatalf("cascade invoked %d times, want 1", coordinator.calls)
	}
	// A repeat delete of the tombstone never reaches the coordinator.
	if err := b.WriteRow(ctx, id.String(), false, nil); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if coordinator.calls != 1 {
		t.Fatalf("tombstone delete re-invoked the cascade: %d calls", coordinator.calls)
	}
}

func TestBackendCascadeFailureLeavesStore(t *testing.T) {
	boom := errors.New("table server unreachable")
	b, _ := newTestBackend(t, failingCoordinator{err: boom})
	ctx := context.Background()
	id := mustCreate(t, b, "shop")

	err := b.WriteRow(ctx, id.String(), false, nil)
	if err == nil {
		t.Fatal("expected cascade failure")
	}
	if domain.KindOf(err) != domain.KindCascade {
		t.Fatalf("expected cascade kind, got %v (%v)", domain.KindOf(err), err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("cause not preserved: %v", err)
	}
	if _, ok := b.ReadRow(ctx, id.String()); !ok {
		t.Fatal("failed delete must leave the database live")
	}
}

func TestBackendCancelledDeleteIsInterrupted(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	id := mustCreate(t, b, "shop")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.WriteRow(ctx, id.String(), false, nil)
	if err == nil {
		t.Fatal("expected interruption")
	}
	if domain.KindOf(err) != domain.KindInterrupted {
		t.Fatalf("expected interrupted kind, got %v (%v)", domain.KindOf(err), err)
	}
	if _, ok := b.ReadRow(context.Background(), id.String()); !ok {
		t.Fatal("interrupted delete must leave the database live")
	}
}

func TestBackendNotifiesOnSuccessfulWritesOnly(t *testing.T) {
	b, _ := newTestBackend(t, nil)
	ctx := context.Background()

	var broadcasts int
	sub, err := b.Notifier().Subscribe(func() { broadcasts++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	id := mustCreate(t, b, "shop")
	if broadcasts != 1 {
		t.Fatalf("expected 1 broadcast after create, got %d", broadcasts)
	}

	dup := domain.NewDatabaseID()
	_ = b.WriteRow(ctx, dup.String(), true, Row{"id": dup.String(), "name": "shop"})
	if broadcasts != 1 {
		t.Fatalf("failed write must not notify, got %d", broadcasts)
	}

	if err := b.WriteRow(ctx, id.String(), false, Row{"id": id.String(), "name": "store"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := b.WriteRow(ctx, id.String(), false, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if broadcasts != 3 {
		t.Fatalf("expected 3 broadcasts, got %d", broadcasts)
	}
}

func expectInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected invariant panic")
		}
		if _, ok := r.(*domain.InvariantError); !ok {
			t.Fatalf("expected *domain.InvariantError, got %T", r)
		}
	}()
	fn()
}

func TestWriteConfigInvariantViolations(t *testing.T) {
	b, view := newTestBackend(t, nil)
	id := mustCreate(t, b, "shop")
	cur := view.Snapshot()

	// The request layer must never claim autogeneration for an existing id.
	expectInvariantPanic(t, func() {
		_, _ = b.writeConfig(cur, id, true, Row{"id": id.String(), "name": "shop"})
	})

	// The decoded id must match the operation's primary key.
	other := domain.NewDatabaseID()
	expectInvariantPanic(t, func() {
		_, _ = b.writeConfig(cur, id, false, Row{"id": other.String(), "name": "shop"})
	})

	// Deleting through a key the request layer claims it autogenerated is
	// equally impossible for a live record.
	expectInvariantPanic(t, func() {
		_, _ = b.deleteConfig(context.Background(), cur, id, true)
	})

	// A tombstoned id is still occupied; autogeneration may not collide with it.
	if err := b.WriteRow(context.Background(), id.String(), false, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cur = view.Snapshot()
	expectInvariantPanic(t, func() {
		_, _ = b.writeConfig(cur, id, true, Row{"id": id.String(), "name": "shop"})
	})
}
