package surreal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Session implements docdb.Session. Selector conditions are SurrealQL
// expressions.
type Session struct {
	types.BaseSession
	client client
	log    *slog.Logger

	// timeout bounds each query; SurrealQL does not separate reads from
	// writes, so the larger of the configured timeouts applies.
	timeout time.Duration
}

var _ docdb.Session = (*Session)(nil)

func newSession(c *Connection, cl client, name string) *Session {
	s := &Session{
		client:  cl,
		log:     c.log.With("database", name),
		timeout: max(c.Config.ReadTimeout, c.Config.WriteTimeout),
	}
	s.Bind(c, name)
	s.SetDescription(types.Description{
		"driver":    "surreal",
		"paradigm":  "document",
		"namespace": c.namespace(),
		"endpoint":  Endpoint(c.Config),
	})
	return s
}

func (s *Session) query(ctx context.Context, q string, vars map[string]any) ([]any, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	s.log.Debug("query", "q", q)
	if d := s.timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return s.client.query(ctx, q, vars)
}

// first returns the records of the first statement result.
func first(res []any) []map[string]any {
	if len(res) == 0 {
		return nil
	}
	return records(res[0])
}

// Close ends the session; the connection stays open.
func (s *Session) Close(ctx context.Context) error {
	if s.Closed() {
		return types.Errorf(types.ErrSessionClosing, "session already closed")
	}
	s.MarkClosed()
	return nil
}

// Get returns the document with the given id.
func (s *Session) Get(ctx context.Context, collection, id string) (*types.Response[*docdb.Document], error) {
	res, err := s.query(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]any{"tb": collection, "id": id})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "getting "+id)
	}
	recs := first(res)
	if len(recs) == 0 {
		return nil, types.Errorf(types.ErrSessionFinding, "document %s not found in %s", id, collection)
	}
	s.SetItemCount(1)
	return types.NewResponse(document(recs[0])), nil
}

func ids(docs []*docdb.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

// Insert creates doc and returns its id in a one-element slice. An existing
// _id fails with ErrSessionInserting.
func (s *Session) Insert(ctx context.Context, collection string, doc *docdb.Document, params ...types.Params) (*types.Result, error) {
	return s.InsertMany(ctx, collection, []*docdb.Document{doc}, params...)
}

// InsertMany creates docs in one transaction.
func (s *Session) InsertMany(ctx context.Context, collection string, docs []*docdb.Document, params ...types.Params) (*types.Result, error) {
	q, vars := writeMany("CREATE", collection, docs)
	if _, err := s.query(ctx, q, vars); err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting into "+collection)
	}
	s.SetItemCount(len(docs))
	return types.NewResponse[any](ids(docs)), nil
}

// Update replaces the stored document with doc's _id.
func (s *Session) Update(ctx context.Context, collection string, doc *docdb.Document, params ...types.Params) (*types.Result, error) {
	return s.UpdateMany(ctx, collection, []*docdb.Document{doc}, params...)
}

// UpdateMany replaces every document and returns their ids. The ids are
// checked first so that UPDATE never creates a record.
func (s *Session) UpdateMany(ctx context.Context, collection string, docs []*docdb.Document, params ...types.Params) (*types.Result, error) {
	want := ids(docs)
	res, err := s.query(ctx, "SELECT VALUE record::id(id) FROM type::table($tb) WHERE record::id(id) IN $ids",
		map[string]any{"tb": collection, "ids": want})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating "+collection)
	}
	found := map[string]bool{}
	if len(res) > 0 {
		if vals, ok := res[0].([]any); ok {
			for _, v := range vals {
				found[fmt.Sprint(v)] = true
			}
		}
	}
	for _, id := range want {
		if !found[id] {
			return nil, types.Errorf(types.ErrSessionUpdating, "document %s not found in %s", id, collection)
		}
	}

	q, vars := writeMany("UPDATE", collection, docs)
	if _, err := s.query(ctx, q, vars); err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating "+collection)
	}
	s.SetItemCount(len(want))
	return types.NewResponse[any](want), nil
}

// Delete removes the document with the given id.
func (s *Session) Delete(ctx context.Context, collection, id string, params ...types.Params) (*types.Result, error) {
	res, err := s.query(ctx, "DELETE type::thing($tb, $id) RETURN BEFORE", map[string]any{"tb": collection, "id": id})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting "+id)
	}
	if len(first(res)) == 0 {
		return nil, types.Errorf(types.ErrSessionDeleting, "document %s not found in %s", id, collection)
	}
	s.SetItemCount(1)
	return types.NewResponse[any]([]string{id}), nil
}

// Find runs a *docdb.BaseSelector.
func (s *Session) Find(ctx context.Context, selector types.Selector) (*types.Response[docdb.Documents], error) {
	sel, ok := selector.(*docdb.BaseSelector)
	if !ok {
		return nil, types.Errorf(types.ErrSessionFinding, "unsupported selector %T", selector)
	}
	q, vars, err := selectQuery(sel)
	if err != nil {
		return nil, err
	}
	res, err := s.query(ctx, q, vars)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding in "+sel.Selector)
	}
	docs := docdb.Documents{}
	for _, r := range first(res) {
		docs = append(docs, document(r))
	}
	s.SetItemCount(len(docs))
	return types.NewResponse(docs), nil
}

func (s *Session) tableIndexes(ctx context.Context, table string) ([]string, error) {
	res, err := s.query(ctx, "INFO FOR TABLE "+ident(table), nil)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return infoKeys(res[0], "indexes"), nil
}

func (s *Session) tables(ctx context.Context) ([]string, error) {
	res, err := s.query(ctx, "INFO FOR DB", nil)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return infoKeys(res[0], "tables"), nil
}

// Compact rebuilds every index of collection; SurrealDB has no storage
// compaction.
func (s *Session) Compact(ctx context.Context, collection string, params ...types.Params) (*types.Result, error) {
	names, err := s.tableIndexes(ctx, collection)
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "compacting "+collection)
	}
	for _, n := range names {
		if _, err := s.query(ctx, fmt.Sprintf("REBUILD INDEX %s ON TABLE %s", ident(n), ident(collection)), nil); err != nil {
			return nil, types.Wrap(types.ErrSession, err, "rebuilding "+n)
		}
	}
	s.SetItemCount(len(names))
	return types.NewResponse[any](names), nil
}

// AddIndex defines an index over the fields of index.Data. A "unique"
// param makes it unique.
func (s *Session) AddIndex(ctx context.Context, collection string, index docdb.Index, params ...types.Params) (*types.Result, error) {
	if index.Name == "" || len(index.Data) == 0 {
		return nil, types.Errorf(types.ErrSession, "index needs a name and fields")
	}
	q := indexQuery(collection, index, types.MergeParams(params...).Bool("unique"))
	if _, err := s.query(ctx, q, nil); err != nil {
		return nil, types.Wrap(types.ErrSession, err, "creating index "+index.Name)
	}
	return types.NewResponse[any](index.Name), nil
}

// Indexes lists the indexes of every table as "table.index".
func (s *Session) Indexes(ctx context.Context) (*types.Result, error) {
	tables, err := s.tables(ctx)
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "listing indexes")
	}
	out := []string{}
	for _, tb := range tables {
		names, err := s.tableIndexes(ctx, tb)
		if err != nil {
			return nil, types.Wrap(types.ErrSession, err, "listing indexes of "+tb)
		}
		for _, n := range names {
			out = append(out, tb+"."+n)
		}
	}
	s.SetItemCount(len(out))
	return types.NewResponse[any](out), nil
}

// DeleteIndex removes an index named "table.index", or the first index
// with that name on any table.
func (s *Session) DeleteIndex(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	table, index, ok := strings.Cut(name, ".")
	if !ok {
		index = name
		tables, err := s.tables(ctx)
		if err != nil {
			return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting index "+name)
		}
		table = ""
		for _, tb := range tables {
			names, err := s.tableIndexes(ctx, tb)
			if err != nil {
				return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting index "+name)
			}
			for _, n := range names {
				if n == index {
					table = tb
				}
			}
			if table != "" {
				break
			}
		}
		if table == "" {
			return nil, types.Errorf(types.ErrSessionDeleting, "index %s not found", name)
		}
	}
	if _, err := s.query(ctx, fmt.Sprintf("REMOVE INDEX %s ON TABLE %s", ident(index), ident(table)), nil); err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting index "+name)
	}
	return types.NewResponse[any](table + "." + index), nil
}

// ACL lists the database users.
func (s *Session) ACL(ctx context.Context) (*types.Result, error) {
	res, err := s.query(ctx, "INFO FOR DB", nil)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "listing users")
	}
	if len(res) == 0 {
		return types.NewResponse[any]([]string{}), nil
	}
	return types.NewResponse[any](infoKeys(res[0], "users")), nil
}

// userQuery defines a database user. roles defaults to VIEWER.
func userQuery(user string, overwrite bool, roles []string) string {
	verb := "DEFINE USER "
	if overwrite {
		verb = "DEFINE USER OVERWRITE "
	}
	if len(roles) == 0 {
		roles = []string{"VIEWER"}
	}
	return verb + ident(user) + " ON DATABASE PASSWORD $password ROLES " + strings.ToUpper(strings.Join(roles, ", "))
}

func roles(params []types.Params) []string {
	switch v := types.MergeParams(params...)["roles"].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	}
	return nil
}

// NewUser defines a database user; a "roles" param sets its roles.
func (s *Session) NewUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	if _, err := s.query(ctx, userQuery(user, false, roles(params)), map[string]any{"password": password}); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "creating user "+user)
	}
	return types.NewResponse[any](user), nil
}

// SetUser redefines user with a new password.
func (s *Session) SetUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	if _, err := s.query(ctx, userQuery(user, true, roles(params)), map[string]any{"password": password}); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "changing user "+user)
	}
	return types.NewResponse[any](user), nil
}

// DeleteUser removes a database user.
func (s *Session) DeleteUser(ctx context.Context, user string, params ...types.Params) (*types.Result, error) {
	if _, err := s.query(ctx, "REMOVE USER "+ident(user)+" ON DATABASE", nil); err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, "deleting user "+user)
	}
	return types.NewResponse[any](user), nil
}

// Grant and Revoke fail: SurrealDB user roles are replaced whole through
// SetUser with a "roles" param.
func (s *Session) Grant(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	return nil, types.Errorf(types.ErrSessionACL, "grant %s: set roles with SetUser", role)
}

func (s *Session) Revoke(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	return nil, types.Errorf(types.ErrSessionACL, "revoke %s: set roles with SetUser", role)
}

// Statement is one SurrealQL statement with its variables.
type Statement struct {
	Query string
	Vars  map[string]any
}

// Batch runs statements in one transaction. Variables of all statements
// share one namespace.
type Batch struct {
	types.BaseBatch[Statement]
}

// NewBatch returns a batch bound to s.
func NewBatch(s *Session, stmts ...Statement) *Batch {
	return &Batch{BaseBatch: types.NewBaseBatch[Statement](s, stmts...)}
}

// Execute sends the transaction and returns the per-statement results.
func (b *Batch) Execute(ctx context.Context) (*types.Result, error) {
	s, ok := b.Session().(*Session)
	if !ok {
		return nil, types.Errorf(types.ErrSession, "%T is not a surreal session", b.Session())
	}
	stmts := b.Commands()
	queries := make([]string, len(stmts))
	vars := map[string]any{}
	for i, st := range stmts {
		queries[i] = strings.TrimSuffix(strings.TrimSpace(st.Query), ";")
		for k, v := range st.Vars {
			vars[k] = v
		}
	}
	res, err := s.query(ctx, txQuery(queries), vars)
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "executing batch")
	}
	s.SetItemCount(len(res))
	return types.NewResponse[any](res), nil
}
