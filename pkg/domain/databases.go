package domain

// DatabaseConfig is the replicated definition of one database. Each field is
// individually versioned so concurrent writes on different replicas merge
// field-wise instead of last-writer-takes-record.
type DatabaseConfig struct {
	Name Versioned[Name] `json:"name"`
}

// Join merges two configs field by field.
func (c DatabaseConfig) Join(other DatabaseConfig) DatabaseConfig {
	return DatabaseConfig{Name: c.Name.Join(other.Name)}
}

// Databases is one replica's copy of every database definition, tombstones
// included. It forms a join semilattice under Join: any two divergent copies
// merge to the same result regardless of order or grouping.
type Databases map[DatabaseID]Deletable[DatabaseConfig]

// Clone returns an independent shallow copy. Entries are value types, so the
// copy shares nothing mutable with the original.
func (d Databases) Clone() Databases {
	out := make(Databases, len(d))
	for id, entry := range d {
		out[id] = entry
	}
	return out
}

// Join merges two snapshots id by id into a new map. It is pure: neither
// input is modified, and the result is the least upper bound of both.
func (d Databases) Join(other Databases) Databases {
	out := make(Databases, len(d))
	for id, entry := range d {
		out[id] = entry
	}
	for id, entry := range other {
		if existing, ok := out[id]; ok {
			out[id] = existing.Join(entry)
		} else {
			out[id] = entry
		}
	}
	return out
}
