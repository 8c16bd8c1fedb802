package types

import (
	"errors"
	"fmt"
)

// Kind is a node in the error taxonomy. Every kind except the root has a
// parent, and errors.Is reports a match against any ancestor, so a caller
// checking ErrSession also catches ErrSessionInserting.
type Kind struct {
	name   string
	parent *Kind
}

func newKind(name string, parent *Kind) *Kind {
	return &Kind{name: name, parent: parent}
}

// Name returns the public name of the kind, e.g. "SessionInsertingError".
func (k *Kind) Name() string { return k.name }

// Parent returns the enclosing kind, or nil for the root.
func (k *Kind) Parent() *Kind { return k.parent }

// Error implements error so kinds can be used as sentinels.
func (k *Kind) Error() string { return k.name }

// Is reports whether target is k or one of its ancestors.
func (k *Kind) Is(target error) bool {
	t, ok := target.(*Kind)
	if !ok {
		return false
	}
	for p := k; p != nil; p = p.parent {
		if p == t {
			return true
		}
	}
	return false
}

// Error taxonomy. The names are part of the public contract; drivers return
// errors of these kinds rather than ad-hoc error types.
var (
	ErrNoSQL = newKind("Error", nil)

	ErrUnknown = newKind("UnknownError", ErrNoSQL)

	ErrConnect = newKind("ConnectError", ErrNoSQL)
	ErrClose   = newKind("CloseError", ErrConnect)

	ErrDatabase         = newKind("DatabaseError", ErrNoSQL)
	ErrDatabaseCreation = newKind("DatabaseCreationError", ErrDatabase)
	ErrDatabaseDeletion = newKind("DatabaseDeletionError", ErrDatabase)

	ErrSession          = newKind("SessionError", ErrNoSQL)
	ErrSessionInserting = newKind("SessionInsertingError", ErrSession)
	ErrSessionUpdating  = newKind("SessionUpdatingError", ErrSession)
	ErrSessionDeleting  = newKind("SessionDeletingError", ErrSession)
	ErrSessionClosing   = newKind("SessionClosingError", ErrSession)
	ErrSessionFinding   = newKind("SessionFindingError", ErrSession)
	ErrSessionACL       = newKind("SessionACLError", ErrSession)

	ErrSelector          = newKind("SelectorError", ErrNoSQL)
	ErrSelectorAttribute = newKind("SelectorAttributeError", ErrSelector)
)

// Kinds lists every kind of the taxonomy, root first.
var Kinds = []*Kind{
	ErrNoSQL,
	ErrUnknown,
	ErrConnect, ErrClose,
	ErrDatabase, ErrDatabaseCreation, ErrDatabaseDeletion,
	ErrSession, ErrSessionInserting, ErrSessionUpdating, ErrSessionDeleting,
	ErrSessionClosing, ErrSessionFinding, ErrSessionACL,
	ErrSelector, ErrSelectorAttribute,
}

// Error is a failure of a given kind with a human-readable message and an
// optional underlying cause.
type Error struct {
	Kind    *Kind  // Taxonomy node; never nil.
	Message string // Human-readable detail.
	Err     error  // Underlying cause, may be nil.
}

// Errorf returns an *Error of the given kind with a formatted message.
func Errorf(kind *Kind, format string, args ...any) *Error {
	if kind == nil {
		kind = ErrUnknown
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind whose cause is err. It returns nil
// when err is nil. An err that already carries a kind at or below kind is
// returned unchanged so drivers can wrap freely.
func Wrap(kind *Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	if kind == nil {
		kind = ErrUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind.Is(kind) {
		return err
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind.name, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind.name, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind.name, e.Message)
	default:
		return e.Kind.name
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the most specific taxonomy kind found in err's chain, or nil
// if err does not belong to the taxonomy.
func KindOf(err error) *Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k *Kind
	if errors.As(err, &k) {
		return k
	}
	return nil
}
