package odm

import (
	"fmt"
	"net/netip"

	"github.com/google/uuid"
)

// Inet is a textual IPv4 or IPv6 address.
type Inet string

// NewInet validates s as an IP address and returns it unchanged.
func NewInet(s string) (Inet, error) {
	if _, err := netip.ParseAddr(s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidInet, s)
	}
	return Inet(s), nil
}

// Version returns 4 or 6, or 0 if the address does not parse.
func (i Inet) Version() int {
	addr, err := netip.ParseAddr(string(i))
	switch {
	case err != nil:
		return 0
	case addr.Is4() || addr.Is4In6():
		return 4
	default:
		return 6
	}
}

func (i Inet) Render() string { return string(i) }

// Uuid is a time-based (version 1) UUID generated at construction.
type Uuid struct {
	uuid.UUID
}

// NewUuid generates a fresh time-based UUID.
func NewUuid() (Uuid, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return Uuid{}, fmt.Errorf("generate uuid: %w", err)
	}
	return Uuid{id}, nil
}

// ParseUuid parses the canonical textual form.
func ParseUuid(s string) (Uuid, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Uuid{}, err
	}
	return Uuid{id}, nil
}

func (u Uuid) Render() string { return u.String() }
