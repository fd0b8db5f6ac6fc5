// Package archive exports point-in-time snapshots of the replicated database
// metadata to a blob store, and restores them by merge so a restore never
// regresses state the node learned since the snapshot was taken.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/TatyanaKovaleva/rethinkdb/internal/blob"
	"github.com/TatyanaKovaleva/rethinkdb/internal/metadata"
	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

const (
	keyPrefix   = "snapshots/"
	keyTime     = "20060102T150405.000000000Z"
	contentType = "application/json"
)

// Snapshot is the archived form of one replica's state.
type Snapshot struct {
	Replica    string           `json:"replica"`
	ExportedAt time.Time        `json:"exported_at"`
	Databases  domain.Databases `json:"databases"`
}

// Exporter writes and reads snapshots of a metadata store.
type Exporter struct {
	store metadata.Store
	objs  blob.Store
	now   func() time.Time
}

// NewExporter wires an exporter over the given metadata store and blob
// backend.
func NewExporter(store metadata.Store, objs blob.Store) *Exporter {
	return &Exporter{store: store, objs: objs, now: time.Now}
}

// Export archives the current state under a timestamped key and returns the
// stored object's metadata. Keys sort chronologically.
func (e *Exporter) Export(ctx context.Context) (blob.Info, error) {
	now := e.now().UTC()
	snapshot := Snapshot{
		Replica:    e.store.Replica(),
		ExportedAt: now,
		Databases:  e.store.Snapshot(),
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := keyPrefix + now.Format(keyTime) + ".json"
	info, err := e.objs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"replica": snapshot.Replica},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store snapshot: %w", err)
	}
	return info, nil
}

// Latest returns the most recent archived snapshot.
func (e *Exporter) Latest(ctx context.Context) (Snapshot, error) {
	infos, err := e.objs.List(ctx, keyPrefix)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list snapshots: %w", err)
	}
	if len(infos) == 0 {
		return Snapshot{}, fmt.Errorf("no snapshots archived")
	}
	key := infos[len(infos)-1].Key
	_, rc, err := e.objs.Get(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch snapshot %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snapshot, nil
}

// Restore merges the most recent archived snapshot into the store. Entries
// written since the snapshot survive; the merge can only add knowledge.
func (e *Exporter) Restore(ctx context.Context) error {
	snapshot, err := e.Latest(ctx)
	if err != nil {
		return err
	}
	_, err = e.store.Commit(ctx, func(domain.Databases) domain.Databases {
		return snapshot.Databases
	})
	return err
}
