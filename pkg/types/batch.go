package types

import (
	"errors"
	"fmt"
)

// Batch is a grouped sequence of driver-native commands submitted through a
// Session as a single unit. Atomicity depends on the engine.
type Batch interface {
	Executor

	// Session returns the session the batch submits through. The batch
	// uses the session but does not own it.
	Session() Session

	// Len returns the number of commands.
	Len() int
}

// ErrBatchIndex is returned for out-of-range command positions.
var ErrBatchIndex = errors.New("batch index out of range")

// BaseBatch holds the commands and session of a batch. Drivers embed it and
// implement Execute.
type BaseBatch[C any] struct {
	commands []C
	session  Session
}

// NewBaseBatch returns a batch of commands bound to session.
func NewBaseBatch[C any](session Session, commands ...C) BaseBatch[C] {
	return BaseBatch[C]{commands: append([]C(nil), commands...), session: session}
}

// Session returns the bound session.
func (b *BaseBatch[C]) Session() Session { return b.session }

// Len returns the number of commands.
func (b *BaseBatch[C]) Len() int { return len(b.commands) }

// Commands returns a copy of the command list.
func (b *BaseBatch[C]) Commands() []C { return append([]C(nil), b.commands...) }

// Append adds commands at the end.
func (b *BaseBatch[C]) Append(cmds ...C) { b.commands = append(b.commands, cmds...) }

// At returns the command at position i.
func (b *BaseBatch[C]) At(i int) (C, error) {
	var zero C
	if i < 0 || i >= len(b.commands) {
		return zero, fmt.Errorf("%w: %d", ErrBatchIndex, i)
	}
	return b.commands[i], nil
}

// Set replaces the command at position i.
func (b *BaseBatch[C]) Set(i int, cmd C) error {
	if i < 0 || i >= len(b.commands) {
		return fmt.Errorf("%w: %d", ErrBatchIndex, i)
	}
	b.commands[i] = cmd
	return nil
}

// Delete removes the command at position i.
func (b *BaseBatch[C]) Delete(i int) error {
	if i < 0 || i >= len(b.commands) {
		return fmt.Errorf("%w: %d", ErrBatchIndex, i)
	}
	b.commands = append(b.commands[:i], b.commands[i+1:]...)
	return nil
}

// Truthy reports whether the batch has commands.
func (b *BaseBatch[C]) Truthy() bool { return len(b.commands) > 0 }

func (b *BaseBatch[C]) String() string {
	return fmt.Sprintf("<%s Batch object> commands=%d", Vendor(), len(b.commands))
}
