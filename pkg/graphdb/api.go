package graphdb

import (
	"context"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Nodes is the payload of graph lookups.
type Nodes = []*Node

// Connection is the graph database-level role.
type Connection interface {
	types.Connection
}

// Update sets properties on every node matching Match.
type Update struct {
	Match *Node
	Set   Property
}

// Session is the graph data-level role. Nodes are matched by pattern: a
// pattern node selects every stored node carrying all of its labels and
// properties, or the single node with its ID when set.
type Session interface {
	types.Session

	// Get returns the nodes matching pattern.
	Get(ctx context.Context, pattern *Node) (*types.Response[Nodes], error)

	// Insert stores node and returns its assigned ID in a one-element
	// slice.
	Insert(ctx context.Context, node *Node, params ...types.Params) (*types.Result, error)
	InsertMany(ctx context.Context, nodes []*Node, params ...types.Params) (*types.Result, error)

	// Update merges set into the properties of nodes matching pattern.
	Update(ctx context.Context, pattern *Node, set Property, params ...types.Params) (*types.Result, error)
	UpdateMany(ctx context.Context, updates []Update, params ...types.Params) (*types.Result, error)

	// Delete removes nodes matching pattern. Nodes that still have
	// relationships are not removed and the call fails with
	// ErrSessionDeleting; see Detach.
	Delete(ctx context.Context, pattern *Node, params ...types.Params) (*types.Result, error)

	// Find runs a selector. Failures are ErrSessionFinding.
	Find(ctx context.Context, selector types.Selector) (*types.Response[Nodes], error)

	// Link creates rel from every node matching from to every node matching
	// to.
	Link(ctx context.Context, from *Node, rel *Relationship, to *Node, params ...types.Params) (*types.Result, error)

	// Detach removes nodes matching pattern together with their
	// relationships.
	Detach(ctx context.Context, pattern *Node, params ...types.Params) (*types.Result, error)

	AddIndex(ctx context.Context, index Index, params ...types.Params) (*types.Result, error)
}

// Selector is the graph selector role.
type Selector interface {
	types.Selector
}

// Batch is the graph batch role.
type Batch interface {
	types.Batch
}

// DefaultVar is the pattern variable used when a selector names none.
const DefaultVar = "n"

// BaseSelector matches nodes labelled Selector. Properties restricts the
// match by equality; Condition is an extra WHERE clause in the driver's
// dialect.
type BaseSelector struct {
	types.BaseSelector
	Var        string
	Properties Property
}

// Pattern returns the node pattern the selector matches.
func (s *BaseSelector) Pattern() *Node {
	v := s.Var
	if v == "" {
		v = DefaultVar
	}
	return &Node{Var: v, Labels: []Label{Label(s.Selector)}, Properties: s.Properties}
}

// Build returns a Cypher-style MATCH ... RETURN query.
func (s *BaseSelector) Build() (string, error) {
	if err := s.RequireSelector(); err != nil {
		return "", err
	}
	p := s.Pattern()

	var b strings.Builder
	b.WriteString("MATCH " + p.Render())
	if s.Condition != "" {
		b.WriteString(" WHERE " + s.Condition)
	}
	b.WriteString(" RETURN ")
	if len(s.Fields) == 0 {
		b.WriteString(p.Var)
	} else {
		b.WriteString(strings.Join(s.Fields, ", "))
	}
	if s.Order != "" {
		b.WriteString(" ORDER BY " + s.Order)
	}
	if s.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(s.Limit))
	}
	return b.String(), nil
}
