package kvdb

import (
	"context"
	"slices"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Record is the payload of KV lookups: key to value.
type Record = map[string]any

// Connection is the key-value database-level role.
type Connection interface {
	types.Connection
}

// Session is the key-value data-level role. Get, Find and the selector
// range lookups return a Record; mutating operations return a generic Result
// holding the affected keys.
type Session interface {
	types.Session

	// Get returns {key: value}. A missing key is ErrSessionFinding.
	Get(ctx context.Context, key string) (*types.Response[Record], error)

	// Insert stores a new key. An existing key is ErrSessionInserting.
	Insert(ctx context.Context, key string, value any, params ...types.Params) (*types.Result, error)

	// InsertMany stores every pair, failing as a whole if any key exists.
	InsertMany(ctx context.Context, items Record, params ...types.Params) (*types.Result, error)

	// Update replaces the value of an existing key. A missing key is
	// ErrSessionUpdating.
	Update(ctx context.Context, key string, value any, params ...types.Params) (*types.Result, error)

	// UpdateMany replaces every pair.
	UpdateMany(ctx context.Context, items Record, params ...types.Params) (*types.Result, error)

	// Delete removes a key. Failures are ErrSessionDeleting.
	Delete(ctx context.Context, key string, params ...types.Params) (*types.Result, error)

	// Find returns every pair matched by selector. Failures are
	// ErrSessionFinding.
	Find(ctx context.Context, selector types.Selector) (*types.Response[Record], error)

	// Copy duplicates the value of src into dst.
	Copy(ctx context.Context, src, dst string, params ...types.Params) (*types.Result, error)

	// AddIndex registers index.
	AddIndex(ctx context.Context, index Index, params ...types.Params) (*types.Result, error)
}

// Selector is the key-value selector: a key pattern plus four range lookups
// that locate records by key order.
type Selector interface {
	types.Selector

	FirstGreaterOrEqual(ctx context.Context, key string) (*types.Response[Record], error)
	FirstGreaterThan(ctx context.Context, key string) (*types.Response[Record], error)
	LastLessOrEqual(ctx context.Context, key string) (*types.Response[Record], error)
	LastLessThan(ctx context.Context, key string) (*types.Response[Record], error)
}

// Batch is the key-value batch role.
type Batch interface {
	types.Batch
}

// BaseSelector is the shared key-value selector state. Selector holds a
// glob-style key pattern; Partition, when set, is prepended with ":".
type BaseSelector struct {
	types.BaseSelector
}

// Build returns the key pattern.
func (s *BaseSelector) Build() (string, error) {
	if err := s.RequireSelector(); err != nil {
		return "", err
	}
	if s.Partition != "" {
		return s.Partition + ":" + s.Selector, nil
	}
	return s.Selector, nil
}

// Bound identifies one of the four range lookups.
type Bound int

// Range lookups over a sorted key space.
const (
	FirstGreaterOrEqual Bound = iota
	FirstGreaterThan
	LastLessOrEqual
	LastLessThan
)

// Locate returns the key the bound selects from sorted keys, and false when
// no key qualifies. keys must be sorted ascending.
func Locate(keys []string, key string, b Bound) (string, bool) {
	i, found := slices.BinarySearch(keys, key)
	switch b {
	case FirstGreaterOrEqual:
		if i < len(keys) {
			return keys[i], true
		}
	case FirstGreaterThan:
		if found {
			i++
		}
		if i < len(keys) {
			return keys[i], true
		}
	case LastLessOrEqual:
		if found {
			return keys[i], true
		}
		if i > 0 {
			return keys[i-1], true
		}
	case LastLessThan:
		if i > 0 {
			return keys[i-1], true
		}
	}
	return "", false
}
