package graphdb

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/odm"
)

// Label tags a node.
type Label string

// RelationshipType tags a relationship.
type RelationshipType string

// Property is a node or relationship property map rendered as
// {name: 'M', age: 30} with keys in sorted order.
type Property map[string]any

func (p Property) Render() string {
	keys := slices.Sorted(maps.Keys(p))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + odm.Quote(p[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Matches reports whether p holds every entry of want. Values are compared
// by their JSON encoding so that numbers decoded from storage match Go
// literals.
func (p Property) Matches(want Property) bool {
	for k, v := range want {
		got, ok := p[k]
		if !ok {
			return false
		}
		a, errA := json.Marshal(got)
		b, errB := json.Marshal(v)
		if errA != nil || errB != nil || string(a) != string(b) {
			return false
		}
	}
	return true
}

// Node is a labelled vertex rendered as (var:L1:L2 {props}).
type Node struct {
	ID         string   // Engine-assigned identity; not rendered.
	Var        string   // Pattern variable.
	Labels     []Label  // Node labels.
	Properties Property // Node properties.
}

// NewNode returns a node with the given labels and properties.
func NewNode(v string, props Property, labels ...Label) *Node {
	return &Node{Var: v, Labels: labels, Properties: props}
}

// HasLabel reports whether the node carries l.
func (n *Node) HasLabel(l Label) bool { return slices.Contains(n.Labels, l) }

func (n *Node) Render() string {
	return "(" + pattern(n.Var, n.Labels, n.Properties) + ")"
}

func (n *Node) String() string { return n.Render() }

// Relationship is a typed edge rendered as [var:TYPE {props}].
type Relationship struct {
	ID         string
	Var        string
	Types      []RelationshipType
	Properties Property
}

// NewRelationship returns a relationship with the given types and properties.
func NewRelationship(v string, props Property, types ...RelationshipType) *Relationship {
	return &Relationship{Var: v, Types: types, Properties: props}
}

// Type returns the first relationship type, or "".
func (r *Relationship) Type() RelationshipType {
	if len(r.Types) == 0 {
		return ""
	}
	return r.Types[0]
}

func (r *Relationship) Render() string {
	return "[" + pattern(r.Var, r.Types, r.Properties) + "]"
}

func (r *Relationship) String() string { return r.Render() }

func pattern[L ~string](v string, labels []L, props Property) string {
	var b strings.Builder
	b.WriteString(v)
	for _, l := range labels {
		b.WriteString(":" + string(l))
	}
	if len(props) > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(props.Render())
	}
	return b.String()
}

// StatusOnline is the Database status of a database accepting queries.
const StatusOnline = "online"

// Database is a keyspace of nodes with server placement details.
type Database struct {
	odm.Keyspace[*Node]
	Address string
	Role    string
	Status  string
	Default bool
}

// NewDatabase returns a database holding nodes in order.
func NewDatabase(name string, nodes ...*Node) *Database {
	return &Database{Keyspace: *odm.NewKeyspace(name, nodes...)}
}

// Online reports whether Status is StatusOnline.
func (db *Database) Online() bool { return db.Status == StatusOnline }

// Index is a named index over properties of nodes with a label.
type Index struct {
	Name       string
	Node       Label
	Properties []string
	Options    map[string]any
}
