package blob

import (
	memstore "github.com/TatyanaKovaleva/rethinkdb/internal/infra/blob/memory"
)

// NewMemory returns an in-memory archive store for tests.
func NewMemory() Store { return memstore.New() }
