package kvdb

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

func TestKeyspaceIteration(t *testing.T) {
	k := NewKeyspace("ks")
	k.Append(NewItem("a", 1))
	k.Append(NewItem("b", 2))

	assert.Equal(t, 2, k.Len())

	var keys []string
	for e := range k.All() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestSubspaceName(t *testing.T) {
	assert.Equal(t, "app.users", NewSubspace("app", "users").Name)
	assert.Equal(t, "app:users", NewSubspaceSep("app", "users", ":").Name)
	assert.Equal(t, "app", NewSubspace("app", "").Name)

	s := NewSubspace("app", "users")
	s.Append(NewItem("k", "v"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "app", s.Parent)
}

func TestItemSinglePair(t *testing.T) {
	it := NewItem("a", 1)
	v, ok := it.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	it.Set("b", 2)
	_, ok = it.Get("a")
	assert.False(t, ok, "setting a new key clears the prior pair")
	assert.Equal(t, map[string]any{"b": 2}, it.Dict())
	assert.Equal(t, "{b: 2}", it.Render())
	assert.Equal(t, "{b: 'x'}", NewItem("b", "x").Render())
}

func TestExpiredItemKeepsTTL(t *testing.T) {
	e := NewExpiredItem("session", "tok", 30*time.Second)
	e.Set("other", "tok2")

	assert.Equal(t, "other", e.Key())
	assert.Equal(t, 30*time.Second, e.TTL)
	assert.Equal(t, map[string]any{"other": "tok2", "ttl": int64(30)}, e.Dict())

	k := NewKeyspace("ks", e, NewItem("plain", 1))
	assert.Equal(t, 2, k.Len())
}

func TestLocate(t *testing.T) {
	keys := []string{"b", "d", "f"}
	tests := []struct {
		key   string
		bound Bound
		want  string
		ok    bool
	}{
		{"d", FirstGreaterOrEqual, "d", true},
		{"c", FirstGreaterOrEqual, "d", true},
		{"g", FirstGreaterOrEqual, "", false},
		{"d", FirstGreaterThan, "f", true},
		{"a", FirstGreaterThan, "b", true},
		{"f", FirstGreaterThan, "", false},
		{"d", LastLessOrEqual, "d", true},
		{"e", LastLessOrEqual, "d", true},
		{"a", LastLessOrEqual, "", false},
		{"d", LastLessThan, "b", true},
		{"z", LastLessThan, "f", true},
		{"b", LastLessThan, "", false},
	}
	for _, tt := range tests {
		got, ok := Locate(keys, tt.key, tt.bound)
		assert.Equal(t, tt.ok, ok, "%s bound %d", tt.key, tt.bound)
		assert.Equal(t, tt.want, got, "%s bound %d", tt.key, tt.bound)
	}
	assert.True(t, slices.IsSorted(keys))
}

func TestBaseSelectorBuild(t *testing.T) {
	s := &BaseSelector{}
	_, err := s.Build()
	assert.ErrorIs(t, err, types.ErrSelectorAttribute)

	s.Selector = "user:*"
	got, err := s.Build()
	require.NoError(t, err)
	assert.Equal(t, "user:*", got)

	s.Partition = "app"
	got, err = s.Build()
	require.NoError(t, err)
	assert.Equal(t, "app:user:*", got)
}
