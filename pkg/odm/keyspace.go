package odm

import (
	"fmt"
	"iter"
	"slices"
)

// Keyspace is a named top-level container with a presence flag and an
// ordered store of entries. Paradigm packages instantiate it with their own
// entry types (items, tables, collections, nodes).
type Keyspace[T any] struct {
	Name   string // Container name.
	Exists bool   // Whether the container exists on the server.
	store  []T
}

// NewKeyspace returns a keyspace named name holding entries in order.
func NewKeyspace[T any](name string, entries ...T) *Keyspace[T] {
	return &Keyspace[T]{Name: name, store: slices.Clone(entries)}
}

// Append adds entries at the end.
func (k *Keyspace[T]) Append(entries ...T) {
	k.store = append(k.store, entries...)
}

// Pop removes and returns the entry at position i. Negative positions count
// from the end, so Pop(-1) removes the last entry.
func (k *Keyspace[T]) Pop(i int) (T, error) {
	var zero T
	j, err := k.position(i)
	if err != nil {
		return zero, err
	}
	v := k.store[j]
	k.store = slices.Delete(k.store, j, j+1)
	return v, nil
}

// At returns the entry at position i. Negative positions count from the end.
func (k *Keyspace[T]) At(i int) (T, error) {
	var zero T
	j, err := k.position(i)
	if err != nil {
		return zero, err
	}
	return k.store[j], nil
}

// IndexFunc returns the position of the first entry satisfying match, or -1.
func (k *Keyspace[T]) IndexFunc(match func(T) bool) int {
	return slices.IndexFunc(k.store, match)
}

// Len returns the number of entries.
func (k *Keyspace[T]) Len() int { return len(k.store) }

// All iterates over the entries in insertion order.
func (k *Keyspace[T]) All() iter.Seq[T] {
	return slices.Values(k.store)
}

// Entries returns a copy of the store.
func (k *Keyspace[T]) Entries() []T { return slices.Clone(k.store) }

// Truthy reports whether the keyspace holds entries.
func (k *Keyspace[T]) Truthy() bool { return len(k.store) > 0 }

func (k *Keyspace[T]) String() string {
	return fmt.Sprintf("<Keyspace %q exists=%t entries=%d>", k.Name, k.Exists, len(k.store))
}

func (k *Keyspace[T]) position(i int) (int, error) {
	n := len(k.store)
	j := i
	if j < 0 {
		j += n
	}
	if j < 0 || j >= n {
		return 0, fmt.Errorf("%w: %d (len %d)", ErrIndexRange, i, n)
	}
	return j, nil
}
