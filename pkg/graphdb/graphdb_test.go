package graphdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

func TestNodeRender(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{"scenario", NewNode("p", Property{"name": "M"}, "Person"), "(p:Person {name: 'M'})"},
		{"two labels", NewNode("p", nil, "Person", "Admin"), "(p:Person:Admin)"},
		{"anonymous", NewNode("", Property{"age": 30}, "Person"), "(:Person {age: 30})"},
		{"properties only", NewNode("", Property{"b": true, "a": "x"}), "({a: 'x', b: True})"},
		{"empty", &Node{}, "()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Render())
		})
	}
}

func TestRelationshipRender(t *testing.T) {
	r := NewRelationship("r", Property{"since": 2020}, "KNOWS")
	assert.Equal(t, "[r:KNOWS {since: 2020}]", r.Render())
	assert.Equal(t, RelationshipType("KNOWS"), r.Type())
	assert.Equal(t, RelationshipType(""), (&Relationship{}).Type())
}

func TestPropertyRender(t *testing.T) {
	assert.Equal(t, "{}", Property{}.Render())
	assert.Equal(t, "{a: 1, b: 'it\\'s'}", Property{"b": "it's", "a": 1}.Render())
}

func TestPropertyMatches(t *testing.T) {
	p := Property{"name": "M", "age": 30}
	assert.True(t, p.Matches(Property{"name": "M"}))
	assert.True(t, p.Matches(nil))
	assert.True(t, p.Matches(Property{"age": float64(30)}), "numbers compare by encoded value")
	assert.False(t, p.Matches(Property{"name": "N"}))
	assert.False(t, p.Matches(Property{"city": "X"}))
}

func TestDatabaseOnline(t *testing.T) {
	db := NewDatabase("neo", NewNode("a", nil, "A"))
	assert.False(t, db.Online())
	db.Status = StatusOnline
	assert.True(t, db.Online())
	assert.Equal(t, 1, db.Len())
	assert.True(t, NewNode("a", nil, "A", "B").HasLabel("B"))
}

func TestSelectorBuild(t *testing.T) {
	s := &BaseSelector{}
	_, err := s.Build()
	assert.ErrorIs(t, err, types.ErrSelectorAttribute)

	s.Selector = "Person"
	got, err := s.Build()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n:Person) RETURN n", got)

	s.Var = "p"
	s.Properties = Property{"name": "M"}
	s.Condition = "p.age > 18"
	s.Fields = []string{"p.name", "p.age"}
	s.Order = "p.age DESC"
	s.Limit = 3
	got, err = s.Build()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (p:Person {name: 'M'}) WHERE p.age > 18 RETURN p.name, p.age ORDER BY p.age DESC LIMIT 3", got)
}
