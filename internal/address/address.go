package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Size is the byte length of an address.
const Size = 32

// ErrInvalidAddress is returned when a textual address does not decode to Size bytes.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a ledger account. Party addresses are Ed25519 public
// keys; record and vault addresses are derived from a wager identifier.
// The zero value means "unset".
type Address [Size]byte

// Parse decodes a base58 address.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw := base58.Decode(s)
	if len(raw) != Size {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// ParseOptional decodes s, treating an empty string as the unset address.
func ParseOptional(s string) (Address, error) {
	if strings.TrimSpace(s) == "" {
		return Address{}, nil
	}
	return Parse(s)
}

// FromBytes copies raw into an Address.
func FromBytes(raw []byte) (Address, error) {
	if len(raw) != Size {
		return Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the base58 form, or "" for the unset address.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return base58.Encode(a[:])
}

// AccountCode is the ledger account code backing this address.
func (a Address) AccountCode() string {
	return "acct:" + base58.Encode(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseOptional(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
