package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// session holds what every paradigm session shares: the database handle,
// timeouts and the operations SQLite has no paradigm-specific form for.
type session struct {
	types.BaseSession
	db           *sql.DB
	log          *slog.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (s *session) init(b *backend, conn types.Connection, db *sql.DB, name string) {
	s.Bind(conn, name)
	s.db = db
	s.log = b.log.With("database", name)
	s.readTimeout = b.Config.ReadTimeout
	s.writeTimeout = b.Config.WriteTimeout
	s.SetDescription(types.Description{
		"driver":   "sqlite",
		"paradigm": b.paradigm,
		"path":     b.path(name),
	})
}

// readCtx bounds a read by ReadTimeout when set.
func (s *session) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.readTimeout > 0 {
		return context.WithTimeout(ctx, s.readTimeout)
	}
	return context.WithCancel(ctx)
}

// writeCtx bounds a write by WriteTimeout when set.
func (s *session) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.writeTimeout > 0 {
		return context.WithTimeout(ctx, s.writeTimeout)
	}
	return context.WithCancel(ctx)
}

// tx runs fn in a transaction, rolling back on error.
func (s *session) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close ends the session. The connection stays open.
func (s *session) Close(ctx context.Context) error {
	if s.Closed() {
		return types.Errorf(types.ErrSessionClosing, "session already closed")
	}
	s.MarkClosed()
	return nil
}

// ACL returns an empty list: SQLite files have no users or roles.
func (s *session) ACL(ctx context.Context) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	return types.NewResponse[any]([]string{}), nil
}

// Indexes lists the user indexes of the database.
func (s *session) Indexes(ctx context.Context) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	names, err := schemaObjects(ctx, s.db, "index")
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "listing indexes")
	}
	s.SetItemCount(len(names))
	return types.NewResponse[any](names), nil
}

// DeleteIndex drops the named index.
func (s *session) DeleteIndex(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, "DROP INDEX "+quoteIdent(name)); err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "dropping index "+name)
	}
	return types.NewResponse[any](name), nil
}

func (s *session) noACL() error {
	if err := s.Check(); err != nil {
		return err
	}
	return types.Errorf(types.ErrSessionACL, "sqlite has no access control")
}

func (s *session) Grant(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	return nil, s.noACL()
}

func (s *session) Revoke(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	return nil, s.noACL()
}

func (s *session) NewUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	return nil, s.noACL()
}

func (s *session) SetUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	return nil, s.noACL()
}

func (s *session) DeleteUser(ctx context.Context, user string, params ...types.Params) (*types.Result, error) {
	return nil, s.noACL()
}

// vacuum rebuilds the database file.
func (s *session) vacuum(ctx context.Context) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return nil, types.Wrap(types.ErrSession, err, "compacting")
	}
	return types.NewResponse[any](true), nil
}

type baser interface{ base() *session }

func (s *session) base() *session { return s }

// Statement is one SQL statement with its arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Batch runs statements in a single transaction.
type Batch struct {
	types.BaseBatch[Statement]
	log *slog.Logger
}

// NewBatch returns a batch bound to s, which must be a session of this
// driver.
func NewBatch(s types.Session, stmts ...Statement) (*Batch, error) {
	h, ok := s.(baser)
	if !ok {
		return nil, types.Errorf(types.ErrSession, "%T is not a sqlite session", s)
	}
	return &Batch{BaseBatch: types.NewBaseBatch(s, stmts...), log: h.base().log}, nil
}

// Execute runs every statement in order inside one transaction and returns
// the rows affected by each statement.
func (b *Batch) Execute(ctx context.Context) (*types.Result, error) {
	h := b.Session().(baser).base()
	if err := h.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := h.writeCtx(ctx)
	defer cancel()

	affected := make([]int64, 0, b.Len())
	err := h.tx(ctx, func(tx *sql.Tx) error {
		for _, st := range b.Commands() {
			res, err := tx.ExecContext(ctx, st.SQL, st.Args...)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			affected = append(affected, n)
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "executing batch")
	}
	b.log.Debug("batch executed", "statements", b.Len(), "affected", affected)
	h.SetItemCount(len(affected))
	return types.NewResponse[any](affected), nil
}
