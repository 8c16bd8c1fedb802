package odm

import (
	"errors"
	"fmt"
)

// Value is implemented by every wrapper of the model. Render returns the
// canonical textual form drivers splice into queries; it is deliberately
// separate from String so debug output never leaks into queries.
type Value interface {
	Render() string
}

// Validation errors returned by the constructors of this package.
var (
	ErrNotASCII      = errors.New("value contains non-printable ASCII characters")
	ErrSmallIntRange = errors.New("smallint value out of range [-32767, 32767]")
	ErrInvalidInet   = errors.New("invalid IP address")
	ErrInvalidDec    = errors.New("invalid decimal literal")
	ErrIndexRange    = errors.New("index out of range")
)

// Null is the distinct null sentinel. Its zero value is ready to use.
type Null struct{}

// NullValue is the shared Null instance.
var NullValue = Null{}

func (Null) Render() string { return "null" }

// Truthy is always false.
func (Null) Truthy() bool { return false }

// Ascii is a string restricted to printable ASCII: the characters 0x20-0x7E
// plus tab, newline, carriage return, vertical tab and form feed.
type Ascii string

// NewAscii validates s and returns it as Ascii.
func NewAscii(s string) (Ascii, error) {
	for i := 0; i < len(s); i++ {
		if !isPrintableASCII(s[i]) {
			return "", fmt.Errorf("%w: byte %#x at offset %d", ErrNotASCII, s[i], i)
		}
	}
	return Ascii(s), nil
}

func isPrintableASCII(b byte) bool {
	switch b {
	case '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return b >= 0x20 && b <= 0x7e
}

func (a Ascii) Render() string { return string(a) }

// Text is an arbitrary string rendered as itself.
type Text string

// Varchar is an alias of Text.
type Varchar = Text

func (t Text) Render() string { return string(t) }

// Blob is a byte sequence rendered as its raw bytes.
type Blob []byte

func (b Blob) Render() string { return string(b) }

// Boolean renders as "True" or "False"; its truthiness follows the value.
type Boolean bool

func (b Boolean) Render() string {
	if b {
		return "True"
	}
	return "False"
}

// Truthy returns the wrapped value.
func (b Boolean) Truthy() bool { return bool(b) }
