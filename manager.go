package nosqlapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Manager owns one Connection and the Session it opened, and exposes both
// through a single value. S is the session type callers work with, usually
// a paradigm session such as kvdb.Session.
//
// Database-level operations go to the connection, session operations to the
// session. Paradigm data operations are reached through Session() or, by
// canonical name, through Do.
type Manager[S types.Session] struct {
	conn    types.Connection
	session S
	closed  bool
	log     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	log *slog.Logger
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(o *managerOptions) { o.log = l }
}

// NewManager connects conn and keeps the returned session. The session must
// implement S, or the session is closed again and ErrSession is returned.
//
// The Manager owns the session and the connection from then on. Callers
// must call Close when done, usually with defer, or use WithManager, which
// closes it on every exit path.
func NewManager[S types.Session](ctx context.Context, conn types.Connection, opts ...ManagerOption) (*Manager[S], error) {
	o := managerOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	m := &Manager[S]{log: o.log}
	if err := m.open(ctx, conn); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager[S]) open(ctx context.Context, conn types.Connection) error {
	if conn == nil {
		return types.Errorf(types.ErrConnect, "manager needs a connection")
	}
	sess, err := conn.Connect(ctx)
	if err != nil {
		return types.Wrap(types.ErrConnect, err, "connecting")
	}
	s, ok := sess.(S)
	if !ok {
		cerr := sess.Close(ctx)
		return errors.Join(types.Errorf(types.ErrSession, "session %T does not implement the requested session type", sess), cerr)
	}
	m.conn = conn
	m.session = s
	m.closed = false
	m.log.Debug("manager connected", "connection", conn, "database", s.Database())
	return nil
}

// WithManager opens a Manager, runs fn and closes the Manager on every exit
// path, joining any close error with fn's error.
func WithManager[S types.Session](ctx context.Context, conn types.Connection, fn func(*Manager[S]) error, opts ...ManagerOption) (err error) {
	m, err := NewManager[S](ctx, conn, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, m.Close(ctx))
	}()
	return fn(m)
}

func (m *Manager[S]) check() error {
	if m.closed {
		return types.Errorf(types.ErrConnect, "manager is closed")
	}
	return nil
}

// Session returns the current session.
func (m *Manager[S]) Session() S { return m.session }

// Connection returns the current connection.
func (m *Manager[S]) Connection() types.Connection { return m.conn }

// Change connects newConn and makes it current. The previous session and
// connection are closed once the new session is open; when newConn fails to
// connect the manager keeps its current pair.
func (m *Manager[S]) Change(ctx context.Context, newConn types.Connection) error {
	oldConn, oldSession, wasClosed := m.conn, m.session, m.closed
	if err := m.open(ctx, newConn); err != nil {
		return err
	}
	if wasClosed {
		return nil
	}
	if err := closePair(ctx, oldConn, oldSession); err != nil {
		m.log.Warn("closing previous connection", "error", err)
	}
	return nil
}

// Close closes the session and then the connection and drops both.
// Closing twice is a no-op.
func (m *Manager[S]) Close(ctx context.Context) error {
	if m.closed {
		return nil
	}
	err := closePair(ctx, m.conn, m.session)
	var zero S
	m.conn, m.session, m.closed = nil, zero, true
	m.log.Debug("manager closed", "error", err)
	return err
}

func closePair(ctx context.Context, conn types.Connection, sess types.Session) error {
	var errs []error
	if sess != nil {
		errs = append(errs, sess.Close(ctx))
	}
	if conn != nil {
		errs = append(errs, conn.Close(ctx))
	}
	return errors.Join(errs...)
}

// Truthy reports whether the manager holds a connected connection.
func (m *Manager[S]) Truthy() bool { return !m.closed && m.conn != nil && m.conn.Connected() }

// Database-level operations.

func (m *Manager[S]) CreateDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.conn.CreateDatabase(ctx, name, params...)
}

func (m *Manager[S]) HasDatabase(ctx context.Context, name string) (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}
	return m.conn.HasDatabase(ctx, name)
}

func (m *Manager[S]) DeleteDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.conn.DeleteDatabase(ctx, name, params...)
}

func (m *Manager[S]) Databases(ctx context.Context) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.conn.Databases(ctx)
}

func (m *Manager[S]) ShowDatabase(ctx context.Context, name string) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.conn.ShowDatabase(ctx, name)
}

// Session state, read through to the current session.

func (m *Manager[S]) Database() string {
	if m.closed {
		return ""
	}
	return m.session.Database()
}

func (m *Manager[S]) ItemCount() int {
	if m.closed {
		return 0
	}
	return m.session.ItemCount()
}

func (m *Manager[S]) Description() types.Description {
	if m.closed {
		return nil
	}
	return m.session.Description()
}

func (m *Manager[S]) ACL(ctx context.Context) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.ACL(ctx)
}

func (m *Manager[S]) Indexes(ctx context.Context) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.Indexes(ctx)
}

// Session-level operations.

func (m *Manager[S]) Grant(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.Grant(ctx, database, user, role, params...)
}

func (m *Manager[S]) Revoke(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.Revoke(ctx, database, user, role, params...)
}

func (m *Manager[S]) NewUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.NewUser(ctx, user, password, params...)
}

func (m *Manager[S]) SetUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.SetUser(ctx, user, password, params...)
}

func (m *Manager[S]) DeleteUser(ctx context.Context, user string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.DeleteUser(ctx, user, params...)
}

func (m *Manager[S]) DeleteIndex(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.DeleteIndex(ctx, name, params...)
}

func (m *Manager[S]) Call(ctx context.Context, batch any) (*types.Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.session.Call(ctx, batch)
}

// Do invokes an operation by name, trying the session first and the
// connection second. Names resolve as in Methods.Method, so both canonical
// names ("insert_many") and registered aliases work. ctx is passed when the
// method takes one.
func (m *Manager[S]) Do(ctx context.Context, name string, args ...any) ([]any, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if sm := Bind(m.session); sm.Has(name) {
		return sm.CallContext(ctx, name, args...)
	}
	return Bind(m.conn).CallContext(ctx, name, args...)
}
