// Package domain defines the replicated database-configuration value types,
// their join-semilattice merge, and the error taxonomy shared by every layer
// of the config table.
package domain

import "github.com/google/uuid"

// DatabaseID is the opaque 128-bit identifier of a database definition. IDs
// are generated randomly at create time and never change for the life of a
// record, tombstone included.
type DatabaseID uuid.UUID

// NilDatabaseID is the zero id. It never identifies a stored record; an
// unparseable primary key resolves to it so lookups miss.
var NilDatabaseID DatabaseID

// NewDatabaseID returns a fresh random id.
func NewDatabaseID() DatabaseID { return DatabaseID(uuid.New()) }

// ParseDatabaseID parses the canonical UUID string form of an id.
func ParseDatabaseID(s string) (DatabaseID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilDatabaseID, err
	}
	return DatabaseID(u), nil
}

func (id DatabaseID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether id is the zero id.
func (id DatabaseID) IsNil() bool { return id == NilDatabaseID }

// MarshalText implements encoding.TextMarshaler so ids can key JSON objects
// in persisted snapshots.
func (id DatabaseID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *DatabaseID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = DatabaseID(u)
	return nil
}
