// Package memory provides the ephemeral metadata store: a plain view with no
// durability, for tests and throwaway nodes.
package memory

import (
	"github.com/TatyanaKovaleva/rethinkdb/internal/metadata"
	"github.com/TatyanaKovaleva/rethinkdb/internal/observability"
)

// Store is an in-memory metadata store. State is lost on Close.
type Store struct {
	*metadata.View
}

var _ metadata.Store = (*Store)(nil)

// NewStore starts an empty in-memory store for the given replica identity.
func NewStore(replica string, rec observability.Recorder) *Store {
	return &Store{View: metadata.NewView(replica, rec)}
}
