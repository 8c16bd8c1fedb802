// Package surreal implements the nosqlapi document paradigm on SurrealDB.
// A collection is a SurrealDB table; a document's _id is the id part of
// its record id.
package surreal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

var errStatement = errors.New("statement failed")

// client is the part of *surrealdb.DB the driver uses. query returns the
// result of every statement in order.
type client interface {
	query(ctx context.Context, q string, vars map[string]any) ([]any, error)
	use(ctx context.Context, namespace, database string) error
	ping(ctx context.Context) error
	close(ctx context.Context) error
}

// dbClient adapts *surrealdb.DB.
type dbClient struct {
	db *surrealdb.DB
}

func dial(ctx context.Context, endpoint, user, password string) (*dbClient, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if user != "" {
		if _, err := db.SignIn(ctx, &surrealdb.Auth{Username: user, Password: password}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("signin failed: %w", err)
		}
	}
	return &dbClient{db: db}, nil
}

func (c *dbClient) query(ctx context.Context, q string, vars map[string]any) ([]any, error) {
	results, err := surrealdb.Query[any](ctx, c.db, q, vars)
	if err != nil {
		return nil, err
	}
	if results == nil {
		return nil, nil
	}
	out := make([]any, 0, len(*results))
	for _, r := range *results {
		if r.Status != "OK" {
			if r.Error != nil {
				return nil, fmt.Errorf("%w: %s", errStatement, r.Error.Message)
			}
			return nil, fmt.Errorf("%w: status %s", errStatement, r.Status)
		}
		out = append(out, r.Result)
	}
	return out, nil
}

func (c *dbClient) use(ctx context.Context, namespace, database string) error {
	return c.db.Use(ctx, namespace, database)
}

func (c *dbClient) ping(ctx context.Context) error {
	_, err := c.db.Version(ctx)
	return err
}

func (c *dbClient) close(ctx context.Context) error {
	return c.db.Close(ctx)
}

// recordKey returns the id part of a record id value.
func recordKey(id any) string {
	switch v := id.(type) {
	case models.RecordID:
		return fmt.Sprint(v.ID)
	case *models.RecordID:
		if v != nil {
			return fmt.Sprint(v.ID)
		}
	case string:
		if _, key, ok := strings.Cut(v, ":"); ok {
			return strings.Trim(key, "⟨⟩`")
		}
		return v
	}
	return fmt.Sprint(id)
}

// records returns the rows of a statement result.
func records(result any) []map[string]any {
	switch v := result.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, r := range v {
			if m, ok := r.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{v}
	}
	return nil
}

// infoKeys returns the sorted names under field of an INFO FOR result.
func infoKeys(result any, field string) []string {
	m, ok := result.(map[string]any)
	if !ok {
		return []string{}
	}
	sub, _ := m[field].(map[string]any)
	return sortedKeys(sub)
}
