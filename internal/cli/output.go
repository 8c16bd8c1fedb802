package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/nosqlapi"
	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// payload returns the data of the response found in the results of
// Manager.Do.
func payload(results []any) (any, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("operation returned nothing")
	}
	if r, ok := results[0].(interface{ Any() *types.Response[any] }); ok {
		return r.Any().Data(), nil
	}
	return results[0], nil
}

// print writes data as indented JSON or as aligned text rows.
func (o *options) print(w io.Writer, data any) error {
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows(data) {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cell(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// rows lists documents, nodes and names one per line and leaves every
// other payload to the cursor adapter.
func rows(data any) []types.Row {
	switch d := data.(type) {
	case docdb.Documents:
		out := make([]types.Row, len(d))
		for i, doc := range d {
			out[i] = types.Row{doc.ID(), doc}
		}
		return out
	case *docdb.Document:
		return []types.Row{{d.ID(), d}}
	case graphdb.Nodes:
		out := make([]types.Row, len(d))
		for i, n := range d {
			labels := make([]string, len(n.Labels))
			for j, l := range n.Labels {
				labels[j] = string(l)
			}
			out[i] = types.Row{n.ID, strings.Join(labels, ":"), n.Properties}
		}
		return out
	case []string:
		out := make([]types.Row, len(d))
		for i, s := range d {
			out[i] = types.Row{s}
		}
		return out
	}
	return nosqlapi.Rows(data)
}

func cell(v any) string {
	switch c := v.(type) {
	case nil:
		return "NULL"
	case string:
		return c
	case []byte:
		return string(c)
	case json.Marshaler, map[string]any, graphdb.Property, []any, []string:
		if b, err := json.Marshal(c); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
