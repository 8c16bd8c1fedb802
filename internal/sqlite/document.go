package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// DocConnection opens document sessions: each collection is a table of
// JSON bodies keyed by _id.
type DocConnection struct {
	backend
}

// NewDocConnection returns a disconnected connection.
func NewDocConnection(cfg types.Config, opts ...Option) *DocConnection {
	c := &DocConnection{}
	c.init(cfg, "document", nil, opts)
	return c
}

// Connect opens the configured database and returns a *DocSession.
func (c *DocConnection) Connect(ctx context.Context) (types.Session, error) {
	db, name, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	s := &DocSession{}
	s.init(&c.backend, c, db, name)
	return s, nil
}

// CopyDatabase writes a copy of src named dst.
func (c *DocConnection) CopyDatabase(ctx context.Context, src, dst string, params ...types.Params) (*types.Result, error) {
	if err := c.RequireConnected(); err != nil {
		return nil, err
	}
	if err := c.copyDatabase(ctx, src, dst); err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, fmt.Sprintf("copying %s to %s", src, dst))
	}
	c.log.Info("database copied", "src", src, "dst", dst)
	return types.NewResponse[any](dst), nil
}

// DocSession implements docdb.Session. Selector conditions are SQL
// expressions over the body column, e.g. json_extract(body, '$.age') > 18.
type DocSession struct {
	session
}

var (
	_ docdb.Connection = (*DocConnection)(nil)
	_ docdb.Session    = (*DocSession)(nil)
)

func (s *DocSession) ensureCollection(ctx context.Context, tx *sql.Tx, collection string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(createCollection, quoteIdent(collection)))
	return err
}

func (s *DocSession) hasCollection(ctx context.Context, collection string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, collection).Scan(&n)
	return n > 0, err
}

func decodeDocument(body string) (*docdb.Document, error) {
	return docdb.FromJSON([]byte(body))
}

// Get returns the document with the given id.
func (s *DocSession) Get(ctx context.Context, collection, id string) (*types.Response[*docdb.Document], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	ok, err := s.hasCollection(ctx, collection)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "reading "+collection)
	}
	if !ok {
		return nil, types.Errorf(types.ErrSessionFinding, "collection %s not found", collection)
	}

	var body string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT body FROM %s WHERE doc_id = ?", quoteIdent(collection)), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.Errorf(types.ErrSessionFinding, "document %s not found in %s", id, collection)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "reading "+collection)
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "reading "+collection)
	}
	s.SetItemCount(1)
	return types.NewResponse(doc), nil
}

func (s *DocSession) insert(ctx context.Context, tx *sql.Tx, collection string, doc *docdb.Document) error {
	body, err := doc.ToJSON()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (doc_id, body) VALUES (?, ?)", quoteIdent(collection)), doc.ID(), string(body))
	return err
}

// Insert stores doc, creating the collection on first use, and returns its
// id in a one-element slice.
func (s *DocSession) Insert(ctx context.Context, collection string, doc *docdb.Document, params ...types.Params) (*types.Result, error) {
	return s.InsertMany(ctx, collection, []*docdb.Document{doc}, params...)
}

// InsertMany stores docs in one transaction and returns their ids.
func (s *DocSession) InsertMany(ctx context.Context, collection string, docs []*docdb.Document, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	ids := make([]string, len(docs))
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureCollection(ctx, tx, collection); err != nil {
			return err
		}
		for i, d := range docs {
			if err := s.insert(ctx, tx, collection, d); err != nil {
				return fmt.Errorf("document %s: %w", d.ID(), err)
			}
			ids[i] = d.ID()
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting into "+collection)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// Update replaces the stored document with the same _id.
func (s *DocSession) Update(ctx context.Context, collection string, doc *docdb.Document, params ...types.Params) (*types.Result, error) {
	return s.UpdateMany(ctx, collection, []*docdb.Document{doc}, params...)
}

// UpdateMany replaces every document in one transaction and returns their
// ids. A missing _id fails the whole call.
func (s *DocSession) UpdateMany(ctx context.Context, collection string, docs []*docdb.Document, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	q := fmt.Sprintf("UPDATE %s SET body = ? WHERE doc_id = ?", quoteIdent(collection))
	ids := make([]string, len(docs))
	err := s.tx(ctx, func(tx *sql.Tx) error {
		for i, d := range docs {
			body, err := d.ToJSON()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, q, string(body), d.ID())
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("document %s not found", d.ID())
			}
			ids[i] = d.ID()
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating "+collection)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// Delete removes the document with the given id.
func (s *DocSession) Delete(ctx context.Context, collection, id string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE doc_id = ?", quoteIdent(collection)), id)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting from "+collection)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, types.Errorf(types.ErrSessionDeleting, "document %s not found in %s", id, collection)
	}
	s.SetItemCount(1)
	return types.NewResponse[any]([]string{id}), nil
}

// findQuery translates a document selector into SQL over the body column.
func findQuery(sel *docdb.BaseSelector) (string, []any, error) {
	if err := sel.RequireSelector(); err != nil {
		return "", nil, err
	}
	var (
		where []string
		args  []any
	)
	for _, k := range slices.Sorted(maps.Keys(sel.Filter)) {
		v := sel.Filter[k]
		switch v.(type) {
		case map[string]any, []any:
			b, err := json.Marshal(v)
			if err != nil {
				return "", nil, types.Wrap(types.ErrSelectorAttribute, err, "filter "+k)
			}
			where = append(where, "json(json_extract(body, "+jsonPath(k)+")) = json(?)")
			args = append(args, string(b))
		default:
			where = append(where, "json_extract(body, "+jsonPath(k)+") = ?")
			args = append(args, v)
		}
	}
	if sel.Condition != "" {
		where = append(where, "("+sel.Condition+")")
	}

	q := "SELECT body FROM " + quoteIdent(sel.Selector)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if field, desc := splitOrder(sel.Order); field != "" {
		q += " ORDER BY json_extract(body, " + jsonPath(field) + ")"
		if desc {
			q += " DESC"
		}
	}
	if sel.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(sel.Limit)
	}
	return q, args, nil
}

// Find runs a *docdb.BaseSelector. Fields, when set, project the returned
// documents.
func (s *DocSession) Find(ctx context.Context, selector types.Selector) (*types.Response[docdb.Documents], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	sel, ok := selector.(*docdb.BaseSelector)
	if !ok {
		return nil, types.Errorf(types.ErrSessionFinding, "unsupported selector %T", selector)
	}
	q, args, err := findQuery(sel)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	exists, err := s.hasCollection(ctx, sel.Selector)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding in "+sel.Selector)
	}
	docs := docdb.Documents{}
	if !exists {
		s.SetItemCount(0)
		return types.NewResponse(docs), nil
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding in "+sel.Selector)
	}
	defer rows.Close()
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, types.Wrap(types.ErrSessionFinding, err, "finding in "+sel.Selector)
		}
		d, err := decodeDocument(body)
		if err != nil {
			return nil, types.Wrap(types.ErrSessionFinding, err, "finding in "+sel.Selector)
		}
		docs = append(docs, docdb.Project(d, sel.Fields))
	}
	if err := rows.Err(); err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "finding in "+sel.Selector)
	}
	s.log.Debug("find", "collection", sel.Selector, "documents", len(docs))
	s.SetItemCount(len(docs))
	return types.NewResponse(docs), nil
}

// Compact rebuilds the database file.
func (s *DocSession) Compact(ctx context.Context, collection string, params ...types.Params) (*types.Result, error) {
	return s.vacuum(ctx)
}

// AddIndex indexes the body fields named in index.Data. A value of -1 sorts
// the field descending; a "unique" param makes the index unique.
func (s *DocSession) AddIndex(ctx context.Context, collection string, index docdb.Index, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	fields := index.Fields()
	if len(fields) == 0 {
		return nil, types.Errorf(types.ErrSession, "index %s has no fields", index.Name)
	}
	exprs := make([]string, len(fields))
	for i, f := range fields {
		exprs[i] = "json_extract(body, " + jsonPath(f) + ")"
		if v, ok := index.Data[f].(int); ok && v < 0 {
			exprs[i] += " DESC"
		}
	}
	unique := ""
	if types.MergeParams(params...).Bool("unique") {
		unique = "UNIQUE "
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureCollection(ctx, tx, collection); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
			unique, quoteIdent(index.Name), quoteIdent(collection), strings.Join(exprs, ", ")))
		return err
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "creating index "+index.Name)
	}
	return types.NewResponse[any](index.Name), nil
}

// Collections lists the collections of the database.
func (s *DocSession) Collections(ctx context.Context) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	names, err := schemaObjects(ctx, s.db, "table")
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "listing collections")
	}
	s.SetItemCount(len(names))
	return types.NewResponse[any](names), nil
}
