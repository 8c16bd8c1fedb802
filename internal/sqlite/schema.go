package sqlite

import (
	"reflect"
	"strings"
)

const pragmaForeignKeys = `PRAGMA foreign_keys = ON;`

// Graph storage: nodes carry a JSON label array and a JSON property object;
// edges reference their endpoints.
const (
	createNodes = `CREATE TABLE IF NOT EXISTS nodes (
    node_id TEXT PRIMARY KEY,
    labels TEXT NOT NULL DEFAULT '[]',
    properties TEXT NOT NULL DEFAULT '{}'
);`

	createEdges = `CREATE TABLE IF NOT EXISTS edges (
    edge_id TEXT PRIMARY KEY,
    edge_type TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    properties TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (from_id) REFERENCES nodes(node_id),
    FOREIGN KEY (to_id) REFERENCES nodes(node_id)
);`

	createEdgesFromIndex = `CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);`
	createEdgesToIndex   = `CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);`
)

var graphSchema = []string{createNodes, createEdges, createEdgesFromIndex, createEdgesToIndex}

// Document collections are tables of (doc_id, body) created on first use.
const createCollection = `CREATE TABLE IF NOT EXISTS %s (
    doc_id TEXT PRIMARY KEY,
    body TEXT NOT NULL
);`

// quoteIdent quotes a table, column or index name.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quoteIdent(n)
	}
	return strings.Join(q, ", ")
}

// jsonPath returns the json_extract path literal of a top-level field.
func jsonPath(field string) string {
	return `'$.` + strings.ReplaceAll(field, `'`, `''`) + `'`
}

// columnAffinity maps a declared Go type to a SQLite column type. Untyped
// columns get no declared type and accept any value.
func columnAffinity(t reflect.Type) string {
	if t == nil {
		return ""
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	case reflect.String:
		return "TEXT"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "BLOB"
		}
	}
	return ""
}

// splitOrder splits "field DESC" into the field and its direction.
func splitOrder(order string) (field string, desc bool) {
	parts := strings.Fields(order)
	if len(parts) == 0 {
		return "", false
	}
	return parts[0], len(parts) > 1 && strings.EqualFold(parts[1], "DESC")
}
