package docdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/nosqlapi/pkg/odm"
)

// IDField is the mandatory document identity key.
const IDField = "_id"

// ErrMandatoryID is returned when removing IDField from a document.
var ErrMandatoryID = errors.New("document _id is mandatory")

// Document is a JSON-serialisable mapping that always holds IDField.
type Document struct {
	body map[string]any
}

// NewDocument returns a document whose body is value merged with fields, in
// order. The _id is oid when non-empty, else the _id already present in
// value or fields, else a fresh UUID.
func NewDocument(value map[string]any, oid string, fields ...map[string]any) *Document {
	body := make(map[string]any, len(value)+1)
	maps.Copy(body, value)
	for _, f := range fields {
		maps.Copy(body, f)
	}
	switch {
	case oid != "":
		body[IDField] = oid
	case body[IDField] == nil:
		body[IDField] = uuid.NewString()
	}
	return &Document{body: body}
}

// ID returns the document identity as text.
func (d *Document) ID() string {
	if s, ok := d.body[IDField].(string); ok {
		return s
	}
	return fmt.Sprint(d.body[IDField])
}

// Get returns the value of key.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.body[key]
	return v, ok
}

// Set stores value under key.
func (d *Document) Set(key string, value any) { d.body[key] = value }

// Delete removes key. IDField cannot be removed.
func (d *Document) Delete(key string) error {
	if key == IDField {
		return ErrMandatoryID
	}
	delete(d.body, key)
	return nil
}

// Keys returns the field names in sorted order.
func (d *Document) Keys() []string { return slices.Sorted(maps.Keys(d.body)) }

// Len returns the number of fields including IDField.
func (d *Document) Len() int { return len(d.body) }

// Body returns a shallow copy of the fields.
func (d *Document) Body() map[string]any { return maps.Clone(d.body) }

// ToJSON serialises the document.
func (d *Document) ToJSON() ([]byte, error) { return json.Marshal(d.body) }

func (d *Document) MarshalJSON() ([]byte, error) { return json.Marshal(d.body) }

// UnmarshalJSON replaces the body. A body without _id gets a fresh one.
func (d *Document) UnmarshalJSON(data []byte) error {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	*d = *NewDocument(body, "")
	return nil
}

// FromJSON parses a serialised document.
func FromJSON(data []byte) (*Document, error) {
	d := &Document{}
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return d, nil
}

// Render returns the document as an ODM mapping literal.
func (d *Document) Render() string { return odm.Map(d.body).Render() }

func (d *Document) String() string { return "Document(" + d.ID() + ")" }

// Collection is a named ordered sequence of documents.
type Collection struct {
	odm.Keyspace[*Document]
}

// NewCollection returns a collection holding docs in order.
func NewCollection(name string, docs ...*Document) *Collection {
	return &Collection{Keyspace: *odm.NewKeyspace(name, docs...)}
}

// Find returns the document with the given id.
func (c *Collection) Find(id string) (*Document, bool) {
	i := c.IndexFunc(func(d *Document) bool { return d.ID() == id })
	if i < 0 {
		return nil, false
	}
	d, _ := c.At(i)
	return d, true
}

// Database is a named ordered sequence of collections.
type Database struct {
	odm.Keyspace[*Collection]
}

// NewDatabase returns a database holding collections in order.
func NewDatabase(name string, collections ...*Collection) *Database {
	return &Database{Keyspace: *odm.NewKeyspace(name, collections...)}
}

// Collection returns the collection called name.
func (db *Database) Collection(name string) (*Collection, bool) {
	i := db.IndexFunc(func(c *Collection) bool { return c.Name == name })
	if i < 0 {
		return nil, false
	}
	c, _ := db.At(i)
	return c, true
}

// Index is a named document index. Data maps field names to engine-specific
// settings such as sort direction or uniqueness.
type Index struct {
	Name string
	Data map[string]any
}

// Fields returns the indexed field names in sorted order.
func (i Index) Fields() []string { return slices.Sorted(maps.Keys(i.Data)) }
