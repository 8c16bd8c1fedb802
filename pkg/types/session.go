package types

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Description is opaque metadata a driver publishes about its session, such
// as server version or column layout of the last result.
type Description map[string]any

// Session is the data-level role opened by Connection.Connect. Paradigm
// packages extend it with typed data operations (Get, Insert, Find, ...).
type Session interface {
	// Connection returns the connection that opened the session. The
	// session uses it but does not own it.
	Connection() Connection

	// Database returns the name of the database the session works on.
	Database() string

	// ItemCount returns the number of items affected or returned by the
	// latest data operation. It equals the Len of that operation's
	// response: writes return the keys, ids or rowids they touched. It is
	// unspecified after a failure.
	ItemCount() int

	// Description returns driver metadata about the session.
	Description() Description

	// ACL returns the access control list of the current database.
	ACL(ctx context.Context) (*Result, error)

	// Indexes lists the indexes of the current database.
	Indexes(ctx context.Context) (*Result, error)

	// Close releases the session. Failures are ErrSessionClosing.
	Close(ctx context.Context) error

	// Grant gives role on database to user. Failures are ErrSessionACL.
	Grant(ctx context.Context, database, user, role string, params ...Params) (*Result, error)

	// Revoke removes role on database from user. Failures are ErrSessionACL.
	Revoke(ctx context.Context, database, user, role string, params ...Params) (*Result, error)

	// NewUser creates a user.
	NewUser(ctx context.Context, user, password string, params ...Params) (*Result, error)

	// SetUser changes the password of a user.
	SetUser(ctx context.Context, user, password string, params ...Params) (*Result, error)

	// DeleteUser removes a user.
	DeleteUser(ctx context.Context, user string, params ...Params) (*Result, error)

	// DeleteIndex drops the named index.
	DeleteIndex(ctx context.Context, name string, params ...Params) (*Result, error)

	// Call submits a batch through the session. See Call.
	Call(ctx context.Context, batch any) (*Result, error)
}

// Executor is implemented by anything Session.Call can submit.
type Executor interface {
	Execute(ctx context.Context) (*Result, error)
}

// Call is the static batch dispatcher shared by every session: it returns
// ErrSession unless batch implements Executor, and otherwise returns
// exactly what batch.Execute returns.
func Call(ctx context.Context, batch any) (*Result, error) {
	ex, ok := batch.(Executor)
	if !ok {
		return nil, Errorf(ErrSession, "%T does not implement Execute", batch)
	}
	return ex.Execute(ctx)
}

// BaseSession carries the state every driver session shares. Drivers embed
// it, update ItemCount after each data operation and call MarkClosed from
// Close.
type BaseSession struct {
	mu          sync.RWMutex
	conn        Connection
	database    string
	itemCount   int
	description Description
	closed      bool
}

// Bind attaches the session state to conn and database. Drivers call it
// once, right after constructing the session.
func (s *BaseSession) Bind(conn Connection, database string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.database = database
	s.description = Description{}
}

// Connection returns the connection that opened the session.
func (s *BaseSession) Connection() Connection { return s.conn }

// Database returns the current database name.
func (s *BaseSession) Database() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.database
}

// SetDatabase switches the current database name.
func (s *BaseSession) SetDatabase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.database = name
}

// ItemCount returns the size of the latest data operation.
func (s *BaseSession) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemCount
}

// SetItemCount records the size of the latest data operation.
func (s *BaseSession) SetItemCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemCount = n
}

// Description returns a copy of the session metadata.
func (s *BaseSession) Description() Description {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.description)
}

// SetDescription replaces the session metadata.
func (s *BaseSession) SetDescription(d Description) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = d
}

// MarkClosed flags the session as released.
func (s *BaseSession) MarkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether MarkClosed was called.
func (s *BaseSession) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Check returns ErrSession if the session was closed and ErrConnect if its
// connection is no longer connected.
func (s *BaseSession) Check() error {
	if s.Closed() {
		return Errorf(ErrSession, "session is closed")
	}
	if s.conn != nil && !s.conn.Connected() {
		return Errorf(ErrConnect, "connection is not connected")
	}
	return nil
}

// Call submits batch through the package-level dispatcher.
func (s *BaseSession) Call(ctx context.Context, batch any) (*Result, error) {
	return Call(ctx, batch)
}

func (s *BaseSession) String() string {
	return fmt.Sprintf("<%s Session object> database=%q item_count=%d",
		Vendor(), s.Database(), s.ItemCount())
}
