package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Session implements kvdb.Session. Values are stored JSON-encoded, so Get
// returns what encoding/json decodes: numbers come back as float64.
//
// Write operations accept a "ttl" param (time.Duration or a duration
// string) that sets the key expiry.
type Session struct {
	types.BaseSession
	client *goredis.Client
	prefix string
	log    *slog.Logger
}

var _ kvdb.Session = (*Session)(nil)

func newSession(c *Connection, client *goredis.Client, name string) *Session {
	s := &Session{client: client, prefix: prefix(name), log: c.log.With("database", name)}
	s.Bind(c, name)
	s.SetDescription(types.Description{
		"driver":   "redis",
		"paradigm": "kv",
		"addr":     client.Options().Addr,
		"prefix":   s.prefix,
	})
	return s
}

// Key returns the Redis key that stores key in the session database.
func (s *Session) Key(key string) string { return s.prefix + key }

func (s *Session) indexKey() string { return "_nosqlapi:indexes:" + s.Database() }

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding value: %w", err)
	}
	return string(b), nil
}

// decode returns the JSON value of raw, or raw itself for values written
// by other clients.
func decode(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func ttl(params []types.Params) time.Duration {
	return types.MergeParams(params...).Duration("ttl", 0)
}

// Close ends the session; the connection stays open.
func (s *Session) Close(ctx context.Context) error {
	if s.Closed() {
		return types.Errorf(types.ErrSessionClosing, "session already closed")
	}
	s.MarkClosed()
	return nil
}

// Get returns {key: value}.
func (s *Session) Get(ctx context.Context, key string) (*types.Response[kvdb.Record], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, s.Key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, types.Errorf(types.ErrSessionFinding, "key %s not found", key)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "getting "+key)
	}
	s.SetItemCount(1)
	return types.NewResponse(kvdb.Record{key: decode(raw)}), nil
}

// Insert stores a new key. An existing key fails with ErrSessionInserting.
func (s *Session) Insert(ctx context.Context, key string, value any, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	v, err := encode(value)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting "+key)
	}
	ok, err := s.client.SetNX(ctx, s.Key(key), v, ttl(params)).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting "+key)
	}
	if !ok {
		return nil, types.Errorf(types.ErrSessionInserting, "key %s already exists", key)
	}
	s.SetItemCount(1)
	return types.NewResponse[any]([]string{key}), nil
}

// InsertItem stores an ODM entry; an *kvdb.ExpiredItem keeps its TTL.
func (s *Session) InsertItem(ctx context.Context, item kvdb.Entry, params ...types.Params) (*types.Result, error) {
	if e, ok := item.(*kvdb.ExpiredItem); ok && e.TTL > 0 {
		params = append(params, types.Params{"ttl": e.TTL})
	}
	return s.Insert(ctx, item.Key(), item.Value(), params...)
}

// InsertMany stores every pair with MSETNX: nothing is written if any key
// exists.
func (s *Session) InsertMany(ctx context.Context, items kvdb.Record, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		s.SetItemCount(0)
		return types.NewResponse[any]([]string{}), nil
	}
	keys := slices.Sorted(maps.Keys(items))
	pairs := make([]any, 0, 2*len(items))
	for _, k := range keys {
		v, err := encode(items[k])
		if err != nil {
			return nil, types.Wrap(types.ErrSessionInserting, err, "inserting "+k)
		}
		pairs = append(pairs, s.Key(k), v)
	}
	ok, err := s.client.MSetNX(ctx, pairs...).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting keys")
	}
	if !ok {
		return nil, types.Errorf(types.ErrSessionInserting, "some of %v already exist", keys)
	}
	if d := ttl(params); d > 0 {
		_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			for _, k := range keys {
				p.Expire(ctx, s.Key(k), d)
			}
			return nil
		})
		if err != nil {
			return nil, types.Wrap(types.ErrSessionInserting, err, "setting expiry")
		}
	}
	s.SetItemCount(len(keys))
	return types.NewResponse[any](keys), nil
}

// Update replaces the value of an existing key, keeping its expiry unless
// a "ttl" param is given.
func (s *Session) Update(ctx context.Context, key string, value any, params ...types.Params) (*types.Result, error) {
	return s.UpdateMany(ctx, kvdb.Record{key: value}, params...)
}

// UpdateMany replaces every pair atomically. The keys are watched, so a
// missing key or a concurrent change aborts the whole update.
func (s *Session) UpdateMany(ctx context.Context, items kvdb.Record, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	keys := slices.Sorted(maps.Keys(items))
	redisKeys := make([]string, len(keys))
	values := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = s.Key(k)
		v, err := encode(items[k])
		if err != nil {
			return nil, types.Wrap(types.ErrSessionUpdating, err, "updating "+k)
		}
		values[i] = v
	}
	expiry := ttl(params)
	if expiry == 0 {
		expiry = goredis.KeepTTL
	}

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, redisKeys...).Result()
		if err != nil {
			return err
		}
		if int(n) != len(redisKeys) {
			return fmt.Errorf("%d of %d keys not found", len(redisKeys)-int(n), len(redisKeys))
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			for i, k := range redisKeys {
				p.Set(ctx, k, values[i], expiry)
			}
			return nil
		})
		return err
	}, redisKeys...)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating "+strings.Join(keys, ", "))
	}
	s.SetItemCount(len(keys))
	return types.NewResponse[any](keys), nil
}

// Delete removes key.
func (s *Session) Delete(ctx context.Context, key string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	n, err := s.client.Del(ctx, s.Key(key)).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting "+key)
	}
	if n == 0 {
		return nil, types.Errorf(types.ErrSessionDeleting, "key %s not found", key)
	}
	s.SetItemCount(1)
	return types.NewResponse[any]([]string{key}), nil
}

// keys returns the session keys matching a glob pattern, sorted and
// without the database prefix.
func (s *Session) keys(ctx context.Context, pattern string) ([]string, error) {
	full, err := scanKeys(ctx, s.client, s.Key(pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(full))
	for i, k := range full {
		out[i] = strings.TrimPrefix(k, s.prefix)
	}
	return out, nil
}

// fetch returns the record for keys with MGET. Keys that vanished between
// scan and read are skipped.
func (s *Session) fetch(ctx context.Context, keys []string) (kvdb.Record, error) {
	rec := kvdb.Record{}
	if len(keys) == 0 {
		return rec, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.Key(k)
	}
	vals, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if raw, ok := v.(string); ok {
			rec[keys[i]] = decode(raw)
		}
	}
	return rec, nil
}

// Find returns the pairs whose key matches the selector pattern, in key
// order up to Limit.
func (s *Session) Find(ctx context.Context, selector types.Selector) (*types.Response[kvdb.Record], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	pattern, err := selector.Build()
	if err != nil {
		return nil, err
	}
	keys, err := s.keys(ctx, pattern)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding "+pattern)
	}
	if n := selectorLimit(selector); n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	rec, err := s.fetch(ctx, keys)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding "+pattern)
	}
	s.log.Debug("find", "pattern", pattern, "keys", len(rec))
	s.SetItemCount(len(rec))
	return types.NewResponse(rec), nil
}

func selectorLimit(selector types.Selector) int {
	switch sel := selector.(type) {
	case *Selector:
		return sel.Limit
	case *kvdb.BaseSelector:
		return sel.Limit
	}
	return 0
}

// Copy duplicates src into dst with its remaining expiry. An existing dst
// fails unless the "replace" param is true.
func (s *Session) Copy(ctx context.Context, src, dst string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	replace := types.MergeParams(params...).Bool("replace")
	from, to := s.Key(src), s.Key(dst)

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, from).Result()
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("key %s not found", src)
		}
		if err != nil {
			return err
		}
		left, err := tx.PTTL(ctx, from).Result()
		if err != nil {
			return err
		}
		if left < 0 {
			left = 0
		}
		if !replace {
			n, err := tx.Exists(ctx, to).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("key %s already exists", dst)
			}
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, to, raw, left)
			return nil
		})
		return err
	}, from, to)
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "copying "+src)
	}
	s.SetItemCount(1)
	return types.NewResponse[any]([]string{dst}), nil
}

// AddIndex records index in the database index registry. Redis keeps keys
// ordered by nothing, so the registry only names which keys callers look up.
func (s *Session) AddIndex(ctx context.Context, index kvdb.Index, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if index.Name == "" {
		return nil, types.Errorf(types.ErrSession, "index needs a name")
	}
	added, err := s.client.HSetNX(ctx, s.indexKey(), index.Name, index.Key).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "adding index "+index.Name)
	}
	if !added {
		return nil, types.Errorf(types.ErrSession, "index %s already exists", index.Name)
	}
	return types.NewResponse[any](index.Name), nil
}

// Indexes lists the registered index names, sorted.
func (s *Session) Indexes(ctx context.Context) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	names, err := s.client.HKeys(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "listing indexes")
	}
	slices.Sort(names)
	s.SetItemCount(len(names))
	return types.NewResponse[any](names), nil
}

// DeleteIndex removes an index from the registry.
func (s *Session) DeleteIndex(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	n, err := s.client.HDel(ctx, s.indexKey(), name).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting index "+name)
	}
	if n == 0 {
		return nil, types.Errorf(types.ErrSessionDeleting, "index %s not found", name)
	}
	return types.NewResponse[any](name), nil
}
