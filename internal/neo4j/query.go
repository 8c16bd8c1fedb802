package neo4j

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
)

// quote escapes a label, type, property, index or database name.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func labels[L ~string](ls []L) string {
	var b strings.Builder
	for _, l := range ls {
		b.WriteString(":" + quote(string(l)))
	}
	return b.String()
}

// pattern renders n as a MATCH node with variable v. Its ID and properties
// become WHERE predicates bound in params under v-prefixed names.
func pattern(v string, n *graphdb.Node, params map[string]any) (string, []string) {
	var where []string
	if n.ID != "" {
		params[v+"_id"] = n.ID
		where = append(where, fmt.Sprintf("elementId(%s) = $%s_id", v, v))
	}
	for i, k := range slices.Sorted(maps.Keys(n.Properties)) {
		name := v + "_p" + strconv.Itoa(i)
		params[name] = n.Properties[k]
		where = append(where, fmt.Sprintf("%s.%s = $%s", v, quote(k), name))
	}
	return "(" + v + labels(n.Labels) + ")", where
}

// matchQuery renders MATCH ... WHERE for the given variables and patterns.
func matchQuery(params map[string]any, vars []string, nodes ...*graphdb.Node) string {
	var (
		parts []string
		where []string
	)
	for i, n := range nodes {
		p, w := pattern(vars[i], n, params)
		parts = append(parts, p)
		where = append(where, w...)
	}
	q := "MATCH " + strings.Join(parts, ", ")
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q
}

// createQuery stores one node and returns its element ID.
func createQuery(n *graphdb.Node) statement {
	props := map[string]any{}
	maps.Copy(props, n.Properties)
	return statement{
		cypher: "CREATE (n" + labels(n.Labels) + ") SET n = $props RETURN elementId(n) AS id",
		params: map[string]any{"props": props},
	}
}

// node converts a returned Neo4j node.
func node(v any) (*graphdb.Node, bool) {
	n, ok := v.(driver.Node)
	if !ok {
		return nil, false
	}
	ls := make([]graphdb.Label, len(n.Labels))
	for i, l := range n.Labels {
		ls[i] = graphdb.Label(l)
	}
	props := graphdb.Property{}
	maps.Copy(props, n.Props)
	return &graphdb.Node{ID: n.ElementId, Labels: ls, Properties: props}, true
}

// nodes converts records. A record holding a node becomes that node; any
// other record becomes a node whose properties are its columns, with the
// pattern variable prefix removed.
func nodes(recs []*driver.Record, v string) graphdb.Nodes {
	out := graphdb.Nodes{}
	for _, r := range recs {
		if len(r.Values) == 1 {
			if n, ok := node(r.Values[0]); ok {
				n.Var = v
				out = append(out, n)
				continue
			}
		}
		props := graphdb.Property{}
		for i, k := range r.Keys {
			props[strings.TrimPrefix(k, v+".")] = r.Values[i]
		}
		out = append(out, &graphdb.Node{Var: v, Properties: props})
	}
	return out
}

// column returns the key column of every record as strings.
func column(recs []*driver.Record, key string) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		if v, ok := r.Get(key); ok {
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

// indexQuery creates a range index over the properties of index.Node.
func indexQuery(index graphdb.Index) string {
	props := make([]string, len(index.Properties))
	for i, p := range index.Properties {
		props[i] = "n." + quote(p)
	}
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (%s)",
		quote(index.Name), quote(string(index.Node)), strings.Join(props, ", "))
}
