package redis

import (
	"context"

	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Selector is a key pattern bound to a session. Its range lookups scan the
// keys matching the pattern and pick one by key order.
type Selector struct {
	kvdb.BaseSelector
	session *Session
}

var _ kvdb.Selector = (*Selector)(nil)

// NewSelector returns a selector over keys of s matching pattern.
func NewSelector(s *Session, pattern string) *Selector {
	sel := &Selector{session: s}
	sel.Selector = pattern
	return sel
}

func (sel *Selector) locate(ctx context.Context, key string, b kvdb.Bound) (*types.Response[kvdb.Record], error) {
	s := sel.session
	if err := s.Check(); err != nil {
		return nil, err
	}
	pattern, err := sel.Build()
	if err != nil {
		return nil, err
	}
	keys, err := s.keys(ctx, pattern)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "scanning "+pattern)
	}
	found, ok := kvdb.Locate(keys, key, b)
	if !ok {
		s.SetItemCount(0)
		return types.NewResponse(kvdb.Record{}), nil
	}
	rec, err := s.fetch(ctx, []string{found})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "scanning "+pattern)
	}
	s.SetItemCount(len(rec))
	return types.NewResponse(rec), nil
}

// FirstGreaterOrEqual returns the first pair whose key is >= key.
func (sel *Selector) FirstGreaterOrEqual(ctx context.Context, key string) (*types.Response[kvdb.Record], error) {
	return sel.locate(ctx, key, kvdb.FirstGreaterOrEqual)
}

// FirstGreaterThan returns the first pair whose key is > key.
func (sel *Selector) FirstGreaterThan(ctx context.Context, key string) (*types.Response[kvdb.Record], error) {
	return sel.locate(ctx, key, kvdb.FirstGreaterThan)
}

// LastLessOrEqual returns the last pair whose key is <= key.
func (sel *Selector) LastLessOrEqual(ctx context.Context, key string) (*types.Response[kvdb.Record], error) {
	return sel.locate(ctx, key, kvdb.LastLessOrEqual)
}

// LastLessThan returns the last pair whose key is < key.
func (sel *Selector) LastLessThan(ctx context.Context, key string) (*types.Response[kvdb.Record], error) {
	return sel.locate(ctx, key, kvdb.LastLessThan)
}
