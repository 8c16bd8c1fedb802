package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// GraphConnection opens graph sessions over a nodes table and an edges
// table.
type GraphConnection struct {
	backend
}

// NewGraphConnection returns a disconnected connection.
func NewGraphConnection(cfg types.Config, opts ...Option) *GraphConnection {
	c := &GraphConnection{}
	c.init(cfg, "graph", graphSchema, opts)
	return c
}

// Connect opens the configured database and returns a *GraphSession.
func (c *GraphConnection) Connect(ctx context.Context) (types.Session, error) {
	db, name, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	s := &GraphSession{}
	s.init(&c.backend, c, db, name)
	return s, nil
}

// GraphSession implements graphdb.Session. Selector conditions are not
// supported; filter with Properties instead.
type GraphSession struct {
	session
}

var (
	_ graphdb.Connection = (*GraphConnection)(nil)
	_ graphdb.Session    = (*GraphSession)(nil)
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanNode(rows *sql.Rows) (*graphdb.Node, error) {
	var id, labels, props string
	if err := rows.Scan(&id, &labels, &props); err != nil {
		return nil, err
	}
	n := &graphdb.Node{ID: id}
	if err := json.Unmarshal([]byte(labels), &n.Labels); err != nil {
		return nil, fmt.Errorf("node %s labels: %w", id, err)
	}
	if err := json.Unmarshal([]byte(props), &n.Properties); err != nil {
		return nil, fmt.Errorf("node %s properties: %w", id, err)
	}
	return n, nil
}

// match returns the stored nodes matching pattern: by ID when set,
// otherwise every node carrying all pattern labels and properties.
// Labels are filtered in SQL, properties in Go.
func match(ctx context.Context, q querier, pattern *graphdb.Node) (graphdb.Nodes, error) {
	if pattern == nil {
		return nil, fmt.Errorf("nil node pattern")
	}
	var (
		where []string
		args  []any
	)
	if pattern.ID != "" {
		where = append(where, "node_id = ?")
		args = append(args, pattern.ID)
	}
	for _, l := range pattern.Labels {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(nodes.labels) WHERE value = ?)")
		args = append(args, string(l))
	}
	stmt := "SELECT node_id, labels, properties FROM nodes"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY node_id"

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := graphdb.Nodes{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		if n.Properties.Matches(pattern.Properties) {
			n.Var = pattern.Var
			out = append(out, n)
		}
	}
	return out, rows.Err()
}

// Get returns the nodes matching pattern.
func (s *GraphSession) Get(ctx context.Context, pattern *graphdb.Node) (*types.Response[graphdb.Nodes], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	nodes, err := match(ctx, s.db, pattern)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "matching nodes")
	}
	s.SetItemCount(len(nodes))
	return types.NewResponse(nodes), nil
}

func insertNode(ctx context.Context, q querier, n *graphdb.Node) (string, error) {
	id := n.ID
	if id == "" {
		id = generateUUID()
	}
	labels := n.Labels
	if labels == nil {
		labels = []graphdb.Label{}
	}
	lb, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	props := n.Properties
	if props == nil {
		props = graphdb.Property{}
	}
	pb, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	_, err = q.ExecContext(ctx,
		"INSERT INTO nodes (node_id, labels, properties) VALUES (?, ?, ?)", id, string(lb), string(pb))
	return id, err
}

// Insert stores node and returns its ID in a one-element slice. A node
// without ID gets a UUID v7; the ID is written back to node.
func (s *GraphSession) Insert(ctx context.Context, node *graphdb.Node, params ...types.Params) (*types.Result, error) {
	return s.InsertMany(ctx, []*graphdb.Node{node}, params...)
}

// InsertMany stores nodes in one transaction and returns their IDs.
func (s *GraphSession) InsertMany(ctx context.Context, nodes []*graphdb.Node, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	ids := make([]string, len(nodes))
	err := s.tx(ctx, func(tx *sql.Tx) error {
		for i, n := range nodes {
			if n == nil {
				return fmt.Errorf("nil node at %d", i)
			}
			id, err := insertNode(ctx, tx, n)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting nodes")
	}
	for i, n := range nodes {
		n.ID = ids[i]
	}
	s.SetItemCount(len(nodes))
	return types.NewResponse[any](ids), nil
}

func setProperties(ctx context.Context, tx *sql.Tx, pattern *graphdb.Node, set graphdb.Property) ([]string, error) {
	nodes, err := match(ctx, tx, pattern)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		props := n.Properties
		if props == nil {
			props = graphdb.Property{}
		}
		maps.Copy(props, set)
		b, err := json.Marshal(props)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE nodes SET properties = ? WHERE node_id = ?", string(b), n.ID); err != nil {
			return nil, err
		}
		ids[i] = n.ID
	}
	return ids, nil
}

// Update merges set into the properties of every node matching pattern and
// returns the IDs of the nodes changed. Matching nothing is an error.
func (s *GraphSession) Update(ctx context.Context, pattern *graphdb.Node, set graphdb.Property, params ...types.Params) (*types.Result, error) {
	return s.UpdateMany(ctx, []graphdb.Update{{Match: pattern, Set: set}}, params...)
}

// UpdateMany applies updates in order inside one transaction and returns
// the changed node IDs, once per matching update.
func (s *GraphSession) UpdateMany(ctx context.Context, updates []graphdb.Update, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	ids := []string{}
	err := s.tx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			got, err := setProperties(ctx, tx, u.Match, u.Set)
			if err != nil {
				return err
			}
			if len(got) == 0 {
				return fmt.Errorf("no node matches %s", u.Match)
			}
			ids = append(ids, got...)
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating nodes")
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

func edgeCount(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edges WHERE from_id = ? OR to_id = ?", id, id).Scan(&n)
	return n, err
}

func (s *GraphSession) remove(ctx context.Context, pattern *graphdb.Node, detach bool) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	removed := []string{}
	err := s.tx(ctx, func(tx *sql.Tx) error {
		nodes, err := match(ctx, tx, pattern)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return fmt.Errorf("no node matches %s", pattern)
		}
		for _, n := range nodes {
			if detach {
				if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE from_id = ? OR to_id = ?", n.ID, n.ID); err != nil {
					return err
				}
			} else {
				c, err := edgeCount(ctx, tx, n.ID)
				if err != nil {
					return err
				}
				if c > 0 {
					return fmt.Errorf("node %s still has %d relationships", n.ID, c)
				}
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE node_id = ?", n.ID); err != nil {
				return err
			}
			removed = append(removed, n.ID)
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting nodes")
	}
	s.SetItemCount(len(removed))
	return types.NewResponse[any](removed), nil
}

// Delete removes the nodes matching pattern. Nodes that still have
// relationships fail the whole call.
func (s *GraphSession) Delete(ctx context.Context, pattern *graphdb.Node, params ...types.Params) (*types.Result, error) {
	return s.remove(ctx, pattern, false)
}

// Detach removes the nodes matching pattern and their relationships.
func (s *GraphSession) Detach(ctx context.Context, pattern *graphdb.Node, params ...types.Params) (*types.Result, error) {
	return s.remove(ctx, pattern, true)
}

// Link creates rel from every node matching from to every node matching
// to, and returns the new relationship IDs.
func (s *GraphSession) Link(ctx context.Context, from *graphdb.Node, rel *graphdb.Relationship, to *graphdb.Node, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if rel == nil || rel.Type() == "" {
		return nil, types.Errorf(types.ErrSessionInserting, "relationship needs a type")
	}
	props := rel.Properties
	if props == nil {
		props = graphdb.Property{}
	}
	pb, err := json.Marshal(props)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "encoding relationship")
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	var ids []string
	err = s.tx(ctx, func(tx *sql.Tx) error {
		src, err := match(ctx, tx, from)
		if err != nil {
			return err
		}
		dst, err := match(ctx, tx, to)
		if err != nil {
			return err
		}
		if len(src) == 0 || len(dst) == 0 {
			return fmt.Errorf("no nodes to link: %d from, %d to", len(src), len(dst))
		}
		for _, a := range src {
			for _, b := range dst {
				id := generateUUID()
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO edges (edge_id, edge_type, from_id, to_id, properties) VALUES (?, ?, ?, ?, ?)",
					id, string(rel.Type()), a.ID, b.ID, string(pb)); err != nil {
					return err
				}
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "linking nodes")
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// Edge is a stored relationship with its endpoints.
type Edge struct {
	Relationship *graphdb.Relationship
	From, To     string
}

// Relationships lists the edges touching the node with the given ID,
// outgoing first.
func (s *GraphSession) Relationships(ctx context.Context, nodeID string) (*types.Response[[]Edge], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT edge_id, edge_type, from_id, to_id, properties FROM edges
WHERE from_id = ? OR to_id = ? ORDER BY from_id != ?, edge_id`, nodeID, nodeID, nodeID)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "listing relationships")
	}
	defer rows.Close()

	edges := []Edge{}
	for rows.Next() {
		var id, typ, from, to, props string
		if err := rows.Scan(&id, &typ, &from, &to, &props); err != nil {
			return nil, types.Wrap(types.ErrSessionFinding, err, "listing relationships")
		}
		r := &graphdb.Relationship{ID: id, Types: []graphdb.RelationshipType{graphdb.RelationshipType(typ)}}
		if err := json.Unmarshal([]byte(props), &r.Properties); err != nil {
			return nil, types.Wrap(types.ErrSessionFinding, err, "listing relationships")
		}
		edges = append(edges, Edge{Relationship: r, From: from, To: to})
	}
	if err := rows.Err(); err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "listing relationships")
	}
	s.SetItemCount(len(edges))
	return types.NewResponse(edges), nil
}

// compareProperty orders nodes by one property: missing values last,
// numbers numerically, everything else by JSON text.
func compareProperty(field string) func(a, b *graphdb.Node) int {
	return func(a, b *graphdb.Node) int {
		va, okA := a.Properties[field]
		vb, okB := b.Properties[field]
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		fa, numA := va.(float64)
		fb, numB := vb.(float64)
		if numA && numB {
			return cmp.Compare(fa, fb)
		}
		ja, _ := json.Marshal(va)
		jb, _ := json.Marshal(vb)
		return strings.Compare(string(ja), string(jb))
	}
}

// Find runs a *graphdb.BaseSelector: its pattern selects nodes, Order sorts
// them by a property ("age DESC"), Limit caps the result. Fields project the
// returned properties.
func (s *GraphSession) Find(ctx context.Context, selector types.Selector) (*types.Response[graphdb.Nodes], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	sel, ok := selector.(*graphdb.BaseSelector)
	if !ok {
		return nil, types.Errorf(types.ErrSessionFinding, "unsupported selector %T", selector)
	}
	if err := sel.RequireSelector(); err != nil {
		return nil, err
	}
	if sel.Condition != "" {
		return nil, types.Errorf(types.ErrSessionFinding, "sqlite graph selectors do not support conditions")
	}

	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	nodes, err := match(ctx, s.db, sel.Pattern())
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding nodes")
	}

	if field, desc := splitOrder(sel.Order); field != "" {
		by := compareProperty(field)
		slices.SortStableFunc(nodes, func(a, b *graphdb.Node) int {
			if desc {
				return by(b, a)
			}
			return by(a, b)
		})
	}
	if sel.Limit > 0 && len(nodes) > sel.Limit {
		nodes = nodes[:sel.Limit]
	}
	if len(sel.Fields) > 0 {
		for _, n := range nodes {
			kept := graphdb.Property{}
			for _, f := range sel.Fields {
				if v, ok := n.Properties[f]; ok {
					kept[f] = v
				}
			}
			n.Properties = kept
		}
	}
	s.SetItemCount(len(nodes))
	return types.NewResponse(nodes), nil
}

// AddIndex indexes properties of nodes. SQLite cannot restrict an index to
// a label, so the index covers every node.
func (s *GraphSession) AddIndex(ctx context.Context, index graphdb.Index, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if index.Name == "" || len(index.Properties) == 0 {
		return nil, types.Errorf(types.ErrSession, "index needs a name and properties")
	}
	exprs := make([]string, len(index.Properties))
	for i, p := range index.Properties {
		exprs[i] = "json_extract(properties, " + jsonPath(p) + ")"
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON nodes (%s)", quoteIdent(index.Name), strings.Join(exprs, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return nil, types.Wrap(types.ErrSession, err, "creating index "+index.Name)
	}
	return types.NewResponse[any](index.Name), nil
}
