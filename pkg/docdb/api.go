package docdb

import (
	"context"
	"encoding/json"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Documents is the payload of document lookups.
type Documents = []*Document

// Connection is the document database-level role.
type Connection interface {
	types.Connection

	// CopyDatabase duplicates every collection of src into dst.
	CopyDatabase(ctx context.Context, src, dst string, params ...types.Params) (*types.Result, error)
}

// Session is the document data-level role. Documents are addressed by
// collection and _id, and writes return the ids they touched.
type Session interface {
	types.Session

	// Get returns one document. A missing id is ErrSessionFinding.
	Get(ctx context.Context, collection, id string) (*types.Response[*Document], error)

	// Insert stores doc. An existing _id is ErrSessionInserting.
	Insert(ctx context.Context, collection string, doc *Document, params ...types.Params) (*types.Result, error)
	InsertMany(ctx context.Context, collection string, docs []*Document, params ...types.Params) (*types.Result, error)

	// Update replaces the document with the same _id. A missing id is
	// ErrSessionUpdating.
	Update(ctx context.Context, collection string, doc *Document, params ...types.Params) (*types.Result, error)
	UpdateMany(ctx context.Context, collection string, docs []*Document, params ...types.Params) (*types.Result, error)

	// Delete removes one document. Failures are ErrSessionDeleting.
	Delete(ctx context.Context, collection, id string, params ...types.Params) (*types.Result, error)

	// Find runs a selector. Failures are ErrSessionFinding.
	Find(ctx context.Context, selector types.Selector) (*types.Response[Documents], error)

	// Compact reclaims storage held by collection.
	Compact(ctx context.Context, collection string, params ...types.Params) (*types.Result, error)

	AddIndex(ctx context.Context, collection string, index Index, params ...types.Params) (*types.Result, error)
}

// Selector is the document selector role.
type Selector interface {
	types.Selector
}

// Batch is the document batch role.
type Batch interface {
	types.Batch
}

// BaseSelector selects documents from the collection named by Selector.
// Filter holds field equality matches; Condition carries an extra filter in
// the driver's own dialect.
type BaseSelector struct {
	types.BaseSelector
	Filter map[string]any
}

// query is the JSON form produced by Build.
type query struct {
	Collection string         `json:"collection"`
	Partition  string         `json:"partition,omitempty"`
	Fields     []string       `json:"fields,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
	Condition  string         `json:"condition,omitempty"`
	Sort       string         `json:"sort,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

// Build returns the selector as a JSON filter document.
func (s *BaseSelector) Build() (string, error) {
	if err := s.RequireSelector(); err != nil {
		return "", err
	}
	out, err := json.Marshal(query{
		Collection: s.Selector,
		Partition:  s.Partition,
		Fields:     s.Fields,
		Filter:     s.Filter,
		Condition:  s.Condition,
		Sort:       s.Order,
		Limit:      s.Limit,
	})
	if err != nil {
		return "", types.Wrap(types.ErrSelector, err, "encoding selector")
	}
	return string(out), nil
}

// Project returns a copy of doc restricted to fields. The _id is always
// kept. An empty field list returns doc unchanged.
func Project(doc *Document, fields []string) *Document {
	if len(fields) == 0 {
		return doc
	}
	body := make(map[string]any, len(fields)+1)
	for _, f := range fields {
		if v, ok := doc.body[f]; ok {
			body[f] = v
		}
	}
	return NewDocument(body, doc.ID())
}

// Matches reports whether doc holds every field of filter with an equal
// value. Values are compared by their JSON encoding so that numbers decoded
// from storage match Go literals.
func Matches(doc *Document, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := doc.body[k]
		if !ok {
			return false
		}
		a, errA := json.Marshal(got)
		b, errB := json.Marshal(want)
		if errA != nil || errB != nil || string(a) != string(b) {
			return false
		}
	}
	return true
}
