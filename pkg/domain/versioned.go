package domain

import "cmp"

// Versioned carries a value together with the logical clock that orders
// concurrent assignments across replicas. Clock ties are broken first by the
// actor (replica identity) that produced the assignment, then by value
// ordering, so any two replicas resolve the same conflict identically.
type Versioned[T cmp.Ordered] struct {
	Value T      `json:"value"`
	Clock uint64 `json:"clock"`
	Actor string `json:"actor"`
}

// NewVersioned seeds a field at clock 1 for its creating actor.
func NewVersioned[T cmp.Ordered](value T, actor string) Versioned[T] {
	return Versioned[T]{Value: value, Clock: 1, Actor: actor}
}

// Set returns the field reassigned to value, one clock tick later. Once
// merged, the returned field supersedes v on every replica.
func (v Versioned[T]) Set(value T, actor string) Versioned[T] {
	return Versioned[T]{Value: value, Clock: v.Clock + 1, Actor: actor}
}

// Join resolves v against other, keeping the assignment with the higher
// clock. It is commutative, associative and idempotent.
func (v Versioned[T]) Join(other Versioned[T]) Versioned[T] {
	switch {
	case v.Clock != other.Clock:
		if v.Clock > other.Clock {
			return v
		}
		return other
	case v.Actor != other.Actor:
		if v.Actor > other.Actor {
			return v
		}
		return other
	case cmp.Less(other.Value, v.Value):
		return v
	default:
		return other
	}
}
