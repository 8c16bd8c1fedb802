package kvdb

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/nosqlapi/pkg/odm"
)

// Entry is anything a Keyspace can store.
type Entry interface {
	Key() string
	Value() any
}

// Keyspace is a named container of key-value entries.
type Keyspace = odm.Keyspace[Entry]

// NewKeyspace returns a keyspace holding entries in order.
func NewKeyspace(name string, entries ...Entry) *Keyspace {
	return odm.NewKeyspace(name, entries...)
}

// DefaultSep joins a subspace to its parent.
const DefaultSep = "."

// Subspace is a Keyspace whose name is parent + sep + sub.
type Subspace struct {
	Keyspace
	Parent string
	Sep    string
}

// NewSubspace returns parent.sub.
func NewSubspace(parent, sub string) *Subspace {
	return NewSubspaceSep(parent, sub, DefaultSep)
}

// NewSubspaceSep returns a subspace joined with sep. An empty sub yields a
// subspace named exactly parent.
func NewSubspaceSep(parent, sub, sep string) *Subspace {
	name := parent
	if sub != "" {
		name = parent + sep + sub
	}
	return &Subspace{Keyspace: odm.Keyspace[Entry]{Name: name}, Parent: parent, Sep: sep}
}

// Item is a single key-value pair addressed like a one-entry dictionary.
type Item struct {
	key   string
	value any
}

// NewItem returns the pair key=value.
func NewItem(key string, value any) *Item {
	return &Item{key: key, value: value}
}

// Key returns the key.
func (i *Item) Key() string { return i.key }

// Value returns the value.
func (i *Item) Value() any { return i.value }

// Get returns the value stored under key.
func (i *Item) Get(key string) (any, bool) {
	if key != i.key {
		return nil, false
	}
	return i.value, true
}

// Set stores value under key. Setting a different key replaces the prior
// pair, so an item never holds more than one pair.
func (i *Item) Set(key string, value any) {
	i.key = key
	i.value = value
}

// Dict returns the pair as a one-entry map.
func (i *Item) Dict() map[string]any {
	return map[string]any{i.key: i.value}
}

// Render returns {key: value} with the value quoted.
func (i *Item) Render() string {
	return "{" + i.key + ": " + odm.Quote(i.value) + "}"
}

func (i *Item) String() string { return fmt.Sprintf("Item(%s=%v)", i.key, i.value) }

// ExpiredItem is an Item with a time to live. Changing the pair through Set
// keeps TTL.
type ExpiredItem struct {
	Item
	TTL time.Duration
}

// NewExpiredItem returns the pair key=value expiring after ttl.
func NewExpiredItem(key string, value any, ttl time.Duration) *ExpiredItem {
	return &ExpiredItem{Item: Item{key: key, value: value}, TTL: ttl}
}

// Dict returns the pair plus a "ttl" entry in seconds.
func (e *ExpiredItem) Dict() map[string]any {
	return map[string]any{e.key: e.value, "ttl": int64(e.TTL / time.Second)}
}

// Index is a named key-value index on a key.
type Index struct {
	Name string
	Key  string
}
