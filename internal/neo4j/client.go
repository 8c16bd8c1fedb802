// Package neo4j implements the nosqlapi graph paradigm on Neo4j over Bolt.
// Node IDs are Neo4j element IDs. Database and user administration runs
// against the system database.
package neo4j

import (
	"context"
	"time"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// systemDatabase hosts administration commands.
const systemDatabase = "system"

// statement is one Cypher query with its parameters. check, when set, runs
// inside the write transaction on the statement's records; an error rolls
// the transaction back.
type statement struct {
	cypher string
	params map[string]any
	check  func([]*driver.Record) error
}

// runner is the part of the Bolt driver the connection uses.
type runner interface {
	read(ctx context.Context, database string, st statement) ([]*driver.Record, error)
	write(ctx context.Context, database string, sts ...statement) ([][]*driver.Record, error)
	verify(ctx context.Context) error
	close(ctx context.Context) error
}

// boltRunner adapts driver.DriverWithContext.
type boltRunner struct {
	drv driver.DriverWithContext
}

func dial(ctx context.Context, uri, user, password string, poolSize int, acquire time.Duration) (*boltRunner, error) {
	auth := driver.NoAuth()
	if user != "" {
		auth = driver.BasicAuth(user, password, "")
	}
	drv, err := driver.NewDriverWithContext(uri, auth, func(c *driver.Config) {
		if poolSize > 0 {
			c.MaxConnectionPoolSize = poolSize
		}
		if acquire > 0 {
			c.ConnectionAcquisitionTimeout = acquire
		}
	})
	if err != nil {
		return nil, err
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(ctx)
		return nil, err
	}
	return &boltRunner{drv: drv}, nil
}

func (r *boltRunner) read(ctx context.Context, database string, st statement) ([]*driver.Record, error) {
	session := r.drv.NewSession(ctx, driver.SessionConfig{DatabaseName: database, AccessMode: driver.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx driver.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, st.cypher, st.params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*driver.Record), nil
}

func (r *boltRunner) write(ctx context.Context, database string, sts ...statement) ([][]*driver.Record, error) {
	session := r.drv.NewSession(ctx, driver.SessionConfig{DatabaseName: database})
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, func(tx driver.ManagedTransaction) (any, error) {
		out := make([][]*driver.Record, len(sts))
		for i, st := range sts {
			result, err := tx.Run(ctx, st.cypher, st.params)
			if err != nil {
				return nil, err
			}
			recs, err := result.Collect(ctx)
			if err != nil {
				return nil, err
			}
			if st.check != nil {
				if err := st.check(recs); err != nil {
					return nil, err
				}
			}
			out[i] = recs
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([][]*driver.Record), nil
}

func (r *boltRunner) verify(ctx context.Context) error { return r.drv.VerifyConnectivity(ctx) }

func (r *boltRunner) close(ctx context.Context) error { return r.drv.Close(ctx) }
