package surreal

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// ident quotes a table, field or index name.
func ident(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func fieldPath(field string) string {
	parts := strings.Split(field, ".")
	for i, p := range parts {
		parts[i] = ident(p)
	}
	return strings.Join(parts, ".")
}

// content returns the record body of doc: its fields without _id.
func content(doc *docdb.Document) map[string]any {
	body := doc.Body()
	delete(body, docdb.IDField)
	return body
}

// document converts a returned record back into a document.
func document(rec map[string]any) *docdb.Document {
	body := make(map[string]any, len(rec))
	for k, v := range rec {
		if k != "id" {
			body[k] = v
		}
	}
	return docdb.NewDocument(body, recordKey(rec["id"]))
}

// txQuery wraps statements in a transaction.
func txQuery(stmts []string) string {
	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	for _, s := range stmts {
		b.WriteString(s)
		b.WriteString(";\n")
	}
	b.WriteString("COMMIT TRANSACTION;")
	return b.String()
}

// writeMany builds one statement per document: verb is CREATE or UPDATE.
// RETURN NONE keeps the result small; existence is checked by the caller.
func writeMany(verb, collection string, docs []*docdb.Document) (string, map[string]any) {
	vars := map[string]any{"tb": collection}
	stmts := make([]string, len(docs))
	for i, d := range docs {
		id, body := "id"+strconv.Itoa(i), "body"+strconv.Itoa(i)
		vars[id] = d.ID()
		vars[body] = content(d)
		stmts[i] = fmt.Sprintf("%s type::thing($tb, $%s) CONTENT $%s", verb, id, body)
	}
	if len(stmts) == 1 {
		return stmts[0], vars
	}
	return txQuery(stmts), vars
}

// selectQuery renders a document selector as SurrealQL. Filter values are
// bound as variables; Condition is inserted as written.
func selectQuery(sel *docdb.BaseSelector) (string, map[string]any, error) {
	if err := sel.RequireSelector(); err != nil {
		return "", nil, err
	}
	vars := map[string]any{"tb": sel.Selector}

	proj := "*"
	if len(sel.Fields) > 0 {
		fields := []string{"id"}
		for _, f := range sel.Fields {
			if f != docdb.IDField && f != "id" {
				fields = append(fields, fieldPath(f))
			}
		}
		proj = strings.Join(fields, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM type::table($tb)", proj)

	var where []string
	for i, k := range sortedKeys(sel.Filter) {
		name := "f" + strconv.Itoa(i)
		vars[name] = sel.Filter[k]
		path := fieldPath(k)
		if k == docdb.IDField {
			path = "record::id(id)"
		}
		where = append(where, path+" = $"+name)
	}
	if sel.Condition != "" {
		where = append(where, "("+sel.Condition+")")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if sel.Order != "" {
		parts := strings.Fields(sel.Order)
		b.WriteString(" ORDER BY " + fieldPath(parts[0]))
		if len(parts) > 1 {
			dir := strings.ToUpper(parts[1])
			if dir != "ASC" && dir != "DESC" {
				return "", nil, types.Errorf(types.ErrSelectorAttribute, "bad order direction %q", parts[1])
			}
			b.WriteString(" " + dir)
		}
	}
	if sel.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(sel.Limit))
	}
	return b.String(), vars, nil
}

// indexQuery defines index on the fields named in index.Data.
func indexQuery(collection string, index docdb.Index, unique bool) string {
	fields := index.Fields()
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = fieldPath(f)
	}
	q := fmt.Sprintf("DEFINE INDEX %s ON TABLE %s FIELDS %s", ident(index.Name), ident(collection), strings.Join(paths, ", "))
	if unique {
		q += " UNIQUE"
	}
	return q
}
