package types

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindHierarchy(t *testing.T) {
	tests := []struct {
		kind     *Kind
		ancestor *Kind
	}{
		{ErrUnknown, ErrNoSQL},
		{ErrClose, ErrConnect},
		{ErrClose, ErrNoSQL},
		{ErrDatabaseCreation, ErrDatabase},
		{ErrDatabaseDeletion, ErrDatabase},
		{ErrSessionInserting, ErrSession},
		{ErrSessionUpdating, ErrSession},
		{ErrSessionDeleting, ErrSession},
		{ErrSessionClosing, ErrSession},
		{ErrSessionFinding, ErrSession},
		{ErrSessionACL, ErrSession},
		{ErrSessionACL, ErrNoSQL},
		{ErrSelectorAttribute, ErrSelector},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Name()+"<"+tt.ancestor.Name(), func(t *testing.T) {
			err := Errorf(tt.kind, "boom")
			assert.ErrorIs(t, err, tt.ancestor)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestKindSiblingsDoNotMatch(t *testing.T) {
	err := Errorf(ErrSessionInserting, "duplicate key")

	assert.NotErrorIs(t, err, ErrSessionUpdating)
	assert.NotErrorIs(t, err, ErrConnect)
	assert.NotErrorIs(t, Errorf(ErrConnect, "x"), ErrClose, "parent must not match child")
}

func TestEveryKindDescendsFromRoot(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Is(ErrNoSQL), "%s", k.Name())
	}
	assert.Nil(t, ErrNoSQL.Parent())
	assert.Equal(t, "Error", ErrNoSQL.Error())
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "ConnectError: refused", Errorf(ErrConnect, "refused").Error())
	assert.Equal(t, "CloseError", (&Error{Kind: ErrClose}).Error())
	assert.Equal(t, "SessionError: call: EOF", Wrap(ErrSession, io.EOF, "call").Error())
	assert.Equal(t, "SessionError: EOF", Wrap(ErrSession, io.EOF, "").Error())
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(ErrSession, nil, "x"))
	})

	t.Run("cause is reachable", func(t *testing.T) {
		err := Wrap(ErrSessionFinding, io.ErrUnexpectedEOF, "scan")
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.ErrorIs(t, err, ErrSession)
	})

	t.Run("more specific kind is kept", func(t *testing.T) {
		inner := Errorf(ErrSessionInserting, "dup")
		err := Wrap(ErrSession, inner, "outer")
		assert.Same(t, inner, err)
	})

	t.Run("through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("driver: %w", Errorf(ErrClose, "socket"))
		assert.ErrorIs(t, err, ErrConnect)
		assert.Equal(t, ErrClose, KindOf(err))
	})
}

func TestKindOf(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.Equal(t, ErrSelector, KindOf(ErrSelector))
	assert.Equal(t, ErrSessionACL, KindOf(Errorf(ErrSessionACL, "denied")))

	var e *Error
	require.ErrorAs(t, Errorf(ErrDatabase, "x"), &e)
	assert.Equal(t, "x", e.Message)
}

func TestErrorfNilKind(t *testing.T) {
	assert.ErrorIs(t, Errorf(nil, "x"), ErrUnknown)
}
