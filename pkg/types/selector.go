package types

import (
	"fmt"
	"strings"
)

// Selector is a structured query reducible to a driver-specific string.
type Selector interface {
	// Build renders the query. Missing mandatory parts are
	// ErrSelectorAttribute.
	Build() (string, error)

	// Truthy reports whether the selector target is set.
	Truthy() bool
}

// BaseSelector holds the parts every selector shares. All fields are optional
// and freely assignable; paradigm selectors embed it and add their own.
type BaseSelector struct {
	Selector  string   // Target: key pattern, table, collection or label.
	Fields    []string // Projected fields, in order.
	Partition string   // Partition or keyspace qualifier.
	Condition string   // Filter expression in the driver's dialect.
	Order     string   // Ordering expression, e.g. "name DESC".
	Limit     int      // Maximum number of results; 0 means unlimited.
}

// Truthy reports whether Selector is set.
func (s *BaseSelector) Truthy() bool { return s.Selector != "" }

// RequireSelector returns ErrSelectorAttribute when the target is unset.
func (s *BaseSelector) RequireSelector() error {
	if s.Selector == "" {
		return Errorf(ErrSelectorAttribute, "selector is not set")
	}
	return nil
}

// Target returns Selector qualified by Partition, e.g. "ks.users".
func (s *BaseSelector) Target() string {
	if s.Partition == "" {
		return s.Selector
	}
	return s.Partition + "." + s.Selector
}

// Projection returns the comma-separated field list, or "*" if empty.
func (s *BaseSelector) Projection() string {
	if len(s.Fields) == 0 {
		return "*"
	}
	return strings.Join(s.Fields, ", ")
}

func (s *BaseSelector) String() string {
	return fmt.Sprintf("<%s Selector object> selector=%q fields=%v condition=%q",
		Vendor(), s.Selector, s.Fields, s.Condition)
}
