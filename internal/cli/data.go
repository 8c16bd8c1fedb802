package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nosqlapi/pkg/columndb"
	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

func newGetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <args>...",
		Short: "Look up data by key",
		Long: `Get calls the session Get of the configured driver:

  key-value:  get <key>
  document:   get <collection> <id>
  column:     get <table> [column]...
  graph:      get <label> [node-id]`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withManager(cmd.Context(), func(m *manager) error {
				var call []any
				if _, ok := m.Session().(graphdb.Session); ok {
					if len(args) > 2 {
						return fmt.Errorf("graph get takes a label and an optional node id")
					}
					n := graphdb.NewNode(graphdb.DefaultVar, nil, graphdb.Label(args[0]))
					if len(args) == 2 {
						n.ID = args[1]
					}
					call = []any{n}
				} else {
					for _, a := range args {
						call = append(call, a)
					}
				}
				res, err := m.Do(cmd.Context(), "get", call...)
				if err != nil {
					return err
				}
				data, err := payload(res)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), data)
			})
		},
	}
}

type findFlags struct {
	filter    map[string]string
	condition string
	order     string
	limit     int
	fields    []string
}

// values decodes each filter value as JSON, keeping it as text when it is
// not valid JSON.
func (f findFlags) values() map[string]any {
	out := make(map[string]any, len(f.filter))
	for k, v := range f.filter {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out
}

// selector builds the selector type the session expects.
func (f findFlags) selector(sess types.Session, target string) (types.Selector, error) {
	base := types.BaseSelector{
		Selector:  target,
		Fields:    f.fields,
		Condition: f.condition,
		Order:     f.order,
		Limit:     f.limit,
	}
	switch sess.(type) {
	case docdb.Session:
		return &docdb.BaseSelector{BaseSelector: base, Filter: f.values()}, nil
	case graphdb.Session:
		return &graphdb.BaseSelector{BaseSelector: base, Properties: graphdb.Property(f.values())}, nil
	}
	if len(f.filter) > 0 {
		return nil, types.Errorf(types.ErrSelectorAttribute, "--filter needs a document or graph driver; use --where")
	}
	switch sess.(type) {
	case kvdb.Session:
		return &kvdb.BaseSelector{BaseSelector: base}, nil
	case columndb.Session:
		return &columndb.BaseSelector{BaseSelector: base}, nil
	}
	return nil, fmt.Errorf("session %T has no selector", sess)
}

func newFindCmd(o *options) *cobra.Command {
	var f findFlags
	cmd := &cobra.Command{
		Use:   "find <target>",
		Short: "Run a selector against a key pattern, table, collection or label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withManager(cmd.Context(), func(m *manager) error {
				sel, err := f.selector(m.Session(), args[0])
				if err != nil {
					return err
				}
				res, err := m.Do(cmd.Context(), "find", sel)
				if err != nil {
					return err
				}
				data, err := payload(res)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), data)
			})
		},
	}
	cmd.Flags().StringToStringVar(&f.filter, "filter", nil, "field=value equality filter, value parsed as JSON when possible")
	cmd.Flags().StringVar(&f.condition, "where", "", "condition in the driver's dialect")
	cmd.Flags().StringVar(&f.order, "order", "", "order expression, e.g. \"age DESC\"")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of results")
	cmd.Flags().StringSliceVar(&f.fields, "fields", nil, "projected fields")
	return cmd
}
