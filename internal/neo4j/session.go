package neo4j

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

var errNoMatch = errors.New("no node matches")

// Session implements graphdb.Session. Selector conditions are Cypher
// expressions over the selector variable.
type Session struct {
	types.BaseSession
	run runner
	log *slog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
}

var _ graphdb.Session = (*Session)(nil)

func newSession(c *Connection, r runner, name string) *Session {
	s := &Session{
		run:          r,
		log:          c.log.With("database", name),
		readTimeout:  c.Config.ReadTimeout,
		writeTimeout: c.Config.WriteTimeout,
	}
	s.Bind(c, name)
	s.SetDescription(types.Description{
		"driver":   "neo4j",
		"paradigm": "graph",
		"uri":      URI(c.Config),
	})
	return s
}

func (s *Session) read(ctx context.Context, st statement) ([]*driver.Record, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	s.log.Debug("read", "cypher", st.cypher)
	ctx, cancel := bound(ctx, s.readTimeout)
	defer cancel()
	return s.run.read(ctx, s.Database(), st)
}

func (s *Session) write(ctx context.Context, sts ...statement) ([][]*driver.Record, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	s.log.Debug("write", "statements", len(sts))
	ctx, cancel := bound(ctx, s.writeTimeout)
	defer cancel()
	return s.run.write(ctx, s.Database(), sts...)
}

// admin runs a write on the system database.
func (s *Session) admin(ctx context.Context, cypher string, params map[string]any) error {
	if err := s.Check(); err != nil {
		return err
	}
	_, err := s.run.write(ctx, systemDatabase, statement{cypher: cypher, params: params})
	return err
}

func bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func nonEmpty(recs []*driver.Record) error {
	if len(recs) == 0 {
		return errNoMatch
	}
	return nil
}

// Close ends the session; the driver stays open.
func (s *Session) Close(ctx context.Context) error {
	if s.Closed() {
		return types.Errorf(types.ErrSessionClosing, "session already closed")
	}
	s.MarkClosed()
	return nil
}

// Get returns the nodes matching pattern, ordered by element ID.
func (s *Session) Get(ctx context.Context, pattern *graphdb.Node) (*types.Response[graphdb.Nodes], error) {
	if pattern == nil {
		return nil, types.Errorf(types.ErrSessionFinding, "nil node pattern")
	}
	params := map[string]any{}
	q := matchQuery(params, []string{"n"}, pattern) + " RETURN n ORDER BY elementId(n)"
	recs, err := s.read(ctx, statement{cypher: q, params: params})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "matching "+pattern.Render())
	}
	out := nodes(recs, "n")
	s.SetItemCount(len(out))
	return types.NewResponse(out), nil
}

// Insert creates node and returns its element ID in a one-element slice.
// The ID is also written to node.ID.
func (s *Session) Insert(ctx context.Context, node *graphdb.Node, params ...types.Params) (*types.Result, error) {
	return s.InsertMany(ctx, []*graphdb.Node{node}, params...)
}

// InsertMany creates nodes in one transaction.
func (s *Session) InsertMany(ctx context.Context, nodes []*graphdb.Node, params ...types.Params) (*types.Result, error) {
	sts := make([]statement, len(nodes))
	for i, n := range nodes {
		if n == nil {
			return nil, types.Errorf(types.ErrSessionInserting, "node %d is nil", i)
		}
		sts[i] = createQuery(n)
		sts[i].check = nonEmpty
	}
	res, err := s.write(ctx, sts...)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "creating nodes")
	}
	ids := make([]string, len(nodes))
	for i, recs := range res {
		ids[i] = column(recs, "id")[0]
		nodes[i].ID = ids[i]
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

func updateQuery(u graphdb.Update) statement {
	params := map[string]any{"set": map[string]any(u.Set)}
	q := matchQuery(params, []string{"n"}, u.Match) + " SET n += $set RETURN elementId(n) AS id"
	return statement{cypher: q, params: params, check: nonEmpty}
}

// Update merges set into the properties of every node matching pattern.
func (s *Session) Update(ctx context.Context, pattern *graphdb.Node, set graphdb.Property, params ...types.Params) (*types.Result, error) {
	return s.UpdateMany(ctx, []graphdb.Update{{Match: pattern, Set: set}}, params...)
}

// UpdateMany applies updates in one transaction and returns the element
// IDs of the changed nodes. An update matching no node rolls back all of
// them.
func (s *Session) UpdateMany(ctx context.Context, updates []graphdb.Update, params ...types.Params) (*types.Result, error) {
	sts := make([]statement, len(updates))
	for i, u := range updates {
		if u.Match == nil {
			return nil, types.Errorf(types.ErrSessionUpdating, "update %d has no pattern", i)
		}
		sts[i] = updateQuery(u)
	}
	res, err := s.write(ctx, sts...)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating nodes")
	}
	ids := []string{}
	for _, recs := range res {
		ids = append(ids, column(recs, "id")...)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

func (s *Session) remove(ctx context.Context, pattern *graphdb.Node, detach bool) (*types.Result, error) {
	if pattern == nil {
		return nil, types.Errorf(types.ErrSessionDeleting, "nil node pattern")
	}
	params := map[string]any{}
	verb := "DELETE"
	if detach {
		verb = "DETACH DELETE"
	}
	q := matchQuery(params, []string{"n"}, pattern) + " WITH n, elementId(n) AS id " + verb + " n RETURN id"
	res, err := s.write(ctx, statement{cypher: q, params: params, check: nonEmpty})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting "+pattern.Render())
	}
	ids := column(res[0], "id")
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// Delete removes nodes matching pattern. The engine refuses nodes that
// still have relationships.
func (s *Session) Delete(ctx context.Context, pattern *graphdb.Node, params ...types.Params) (*types.Result, error) {
	return s.remove(ctx, pattern, false)
}

// Detach removes nodes matching pattern with their relationships.
func (s *Session) Detach(ctx context.Context, pattern *graphdb.Node, params ...types.Params) (*types.Result, error) {
	return s.remove(ctx, pattern, true)
}

// Link creates rel from every node matching from to every node matching to
// and returns the relationship element IDs.
func (s *Session) Link(ctx context.Context, from *graphdb.Node, rel *graphdb.Relationship, to *graphdb.Node, params ...types.Params) (*types.Result, error) {
	if from == nil || to == nil || rel == nil || rel.Type() == "" {
		return nil, types.Errorf(types.ErrSessionInserting, "link needs two patterns and a typed relationship")
	}
	vars := map[string]any{"props": map[string]any(rel.Properties)}
	if rel.Properties == nil {
		vars["props"] = map[string]any{}
	}
	q := matchQuery(vars, []string{"a", "b"}, from, to) +
		" CREATE (a)-[r:" + quote(string(rel.Type())) + "]->(b) SET r = $props RETURN elementId(r) AS id"
	res, err := s.write(ctx, statement{cypher: q, params: vars, check: nonEmpty})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "linking "+from.Render()+" to "+to.Render())
	}
	ids := column(res[0], "id")
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// Find runs a *graphdb.BaseSelector rendered by its Build method.
func (s *Session) Find(ctx context.Context, selector types.Selector) (*types.Response[graphdb.Nodes], error) {
	sel, ok := selector.(*graphdb.BaseSelector)
	if !ok {
		return nil, types.Errorf(types.ErrSessionFinding, "unsupported selector %T", selector)
	}
	q, err := sel.Build()
	if err != nil {
		return nil, err
	}
	recs, err := s.read(ctx, statement{cypher: q})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding "+sel.Selector)
	}
	out := nodes(recs, sel.Pattern().Var)
	s.SetItemCount(len(out))
	return types.NewResponse(out), nil
}

// AddIndex creates a range index over index.Properties of index.Node
// nodes.
func (s *Session) AddIndex(ctx context.Context, index graphdb.Index, params ...types.Params) (*types.Result, error) {
	if index.Name == "" || index.Node == "" || len(index.Properties) == 0 {
		return nil, types.Errorf(types.ErrSession, "index needs a name, a label and properties")
	}
	if _, err := s.write(ctx, statement{cypher: indexQuery(index)}); err != nil {
		return nil, types.Wrap(types.ErrSession, err, "creating index "+index.Name)
	}
	return types.NewResponse[any](index.Name), nil
}

// Indexes lists index names, sorted.
func (s *Session) Indexes(ctx context.Context) (*types.Result, error) {
	recs, err := s.read(ctx, statement{cypher: "SHOW INDEXES YIELD name RETURN name ORDER BY name"})
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "listing indexes")
	}
	names := column(recs, "name")
	s.SetItemCount(len(names))
	return types.NewResponse[any](names), nil
}

// DeleteIndex drops the named index; an "if_exists" param tolerates a
// missing one.
func (s *Session) DeleteIndex(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	q := "DROP INDEX " + quote(name)
	if types.MergeParams(params...).Bool("if_exists") {
		q += " IF EXISTS"
	}
	if _, err := s.write(ctx, statement{cypher: q}); err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting index "+name)
	}
	return types.NewResponse[any](name), nil
}

// ACL lists the users with their roles as "user: role, role".
func (s *Session) ACL(ctx context.Context) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	recs, err := s.run.read(ctx, systemDatabase, statement{cypher: "SHOW USERS YIELD user, roles RETURN user, roles ORDER BY user"})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "listing users")
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		user, _ := r.Get("user")
		entry, _ := user.(string)
		if roles, ok := r.Get("roles"); ok {
			if list, ok := roles.([]any); ok && len(list) > 0 {
				names := make([]string, len(list))
				for i, v := range list {
					names[i], _ = v.(string)
				}
				entry += ": " + strings.Join(names, ", ")
			}
		}
		out = append(out, entry)
	}
	s.SetItemCount(len(out))
	return types.NewResponse[any](out), nil
}

// Grant gives role to user. Neo4j roles are server-wide, so database is
// only recorded in the log.
func (s *Session) Grant(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	if err := s.admin(ctx, "GRANT ROLE "+quote(role)+" TO "+quote(user), nil); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "granting "+role+" to "+user)
	}
	s.log.Info("role granted", "user", user, "role", role, "database", database)
	return types.NewResponse[any](role), nil
}

// Revoke removes role from user.
func (s *Session) Revoke(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	if err := s.admin(ctx, "REVOKE ROLE "+quote(role)+" FROM "+quote(user), nil); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "revoking "+role+" from "+user)
	}
	s.log.Info("role revoked", "user", user, "role", role, "database", database)
	return types.NewResponse[any](role), nil
}

// NewUser creates user. The password does not have to be changed on first
// login.
func (s *Session) NewUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	q := "CREATE USER " + quote(user)
	if types.MergeParams(params...).Bool("not_exists") {
		q += " IF NOT EXISTS"
	}
	q += " SET PASSWORD $password CHANGE NOT REQUIRED"
	if err := s.admin(ctx, q, map[string]any{"password": password}); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "creating user "+user)
	}
	return types.NewResponse[any](user), nil
}

// SetUser changes the password of user.
func (s *Session) SetUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	q := "ALTER USER " + quote(user) + " SET PASSWORD $password CHANGE NOT REQUIRED"
	if err := s.admin(ctx, q, map[string]any{"password": password}); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "changing user "+user)
	}
	return types.NewResponse[any](user), nil
}

// DeleteUser drops user.
func (s *Session) DeleteUser(ctx context.Context, user string, params ...types.Params) (*types.Result, error) {
	if err := s.admin(ctx, "DROP USER "+quote(user), nil); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "deleting user "+user)
	}
	return types.NewResponse[any](user), nil
}

// Statement is one Cypher query with its parameters.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Batch runs statements in one write transaction.
type Batch struct {
	types.BaseBatch[Statement]
}

// NewBatch returns a batch bound to s.
func NewBatch(s *Session, stmts ...Statement) *Batch {
	return &Batch{BaseBatch: types.NewBaseBatch[Statement](s, stmts...)}
}

// Execute commits every statement or none and returns the record count of
// each.
func (b *Batch) Execute(ctx context.Context) (*types.Result, error) {
	s, ok := b.Session().(*Session)
	if !ok {
		return nil, types.Errorf(types.ErrSession, "%T is not a neo4j session", b.Session())
	}
	cmds := b.Commands()
	if len(cmds) == 0 {
		return nil, types.Errorf(types.ErrSession, "empty batch")
	}
	sts := make([]statement, len(cmds))
	for i, c := range cmds {
		sts[i] = statement{cypher: c.Cypher, params: c.Params}
	}
	res, err := s.write(ctx, sts...)
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "executing batch of "+strconv.Itoa(len(cmds)))
	}
	counts := make([]int, len(res))
	for i, recs := range res {
		counts[i] = len(recs)
	}
	s.SetItemCount(len(cmds))
	return types.NewResponse[any](counts), nil
}
