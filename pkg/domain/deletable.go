package domain

// Joinable is the merge contract a record must satisfy to live inside a
// Deletable wrapper.
type Joinable[T any] interface {
	Join(T) T
}

// Deletable wraps a record with a tombstone flag. A deleted entry stays in
// the store so the deletion survives merges with replicas that still hold
// the live record. The payload of a tombstone is cleared to the zero record,
// making the tombstone a fixed point of Join.
type Deletable[T Joinable[T]] struct {
	Value   T    `json:"value"`
	Deleted bool `json:"deleted"`
}

// NewDeletable wraps a live record.
func NewDeletable[T Joinable[T]](value T) Deletable[T] {
	return Deletable[T]{Value: value}
}

// NewTombstone returns the deleted marker for this entry type.
func NewTombstone[T Joinable[T]]() Deletable[T] {
	return Deletable[T]{Deleted: true}
}

// IsDeleted reports whether the entry is a tombstone.
func (d Deletable[T]) IsDeleted() bool { return d.Deleted }

// Ref returns the wrapped record. Callers must check IsDeleted first; a
// tombstone's payload is always the zero record.
func (d Deletable[T]) Ref() T { return d.Value }

// Join merges two entries for the same id. Deletion wins over any live value
// and never reverts.
func (d Deletable[T]) Join(other Deletable[T]) Deletable[T] {
	if d.Deleted || other.Deleted {
		return NewTombstone[T]()
	}
	return Deletable[T]{Value: d.Value.Join(other.Value)}
}
