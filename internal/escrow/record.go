package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/congo-pay/wager_escrow/internal/address"
)

// MaxAmount is the per-side stake ceiling in minor units, enforced at creation.
const MaxAmount uint64 = 10_000_000_000

// RecordSize is the encoded length of a Record.
const RecordSize = 8 + 3*address.Size + 8 + 8 + 1 + 1 + 1

// State is the lifecycle position of a wager.
type State uint8

const (
	StateAwaitingJoiner State = iota
	StateActive
	StateSettled
	StateRefunded
)

// ParseState validates a persisted tag.
func ParseState(tag uint8) (State, error) {
	switch s := State(tag); s {
	case StateAwaitingJoiner, StateActive, StateSettled, StateRefunded:
		return s, nil
	default:
		return 0, fmt.Errorf("%w: state tag %d", ErrCorruptRecord, tag)
	}
}

func (s State) String() string {
	switch s {
	case StateAwaitingJoiner:
		return "awaiting_joiner"
	case StateActive:
		return "active"
	case StateSettled:
		return "settled"
	case StateRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateSettled, StateRefunded:
		return true
	default:
		return false
	}
}

// Record is the persistent state of one wager.
type Record struct {
	WagerID   uint64
	Creator   address.Address
	Joiner    address.Address
	Arbiter   address.Address
	Amount    uint64
	Deadline  int64
	State     State
	Bump      uint8
	VaultBump uint8
}

// RecordAddress is where the record lives.
func (r *Record) RecordAddress() address.Address {
	a, _ := address.Derive(address.SeedEscrow, r.WagerID)
	return a
}

// VaultAddress is the custody account of the wager.
func (r *Record) VaultAddress() address.Address {
	a, _ := address.Derive(address.SeedVault, r.WagerID)
	return a
}

// MarshalBinary encodes the record in its fixed field order.
func (r *Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], r.WagerID)
	off += 8
	off += copy(buf[off:], r.Creator[:])
	off += copy(buf[off:], r.Joiner[:])
	off += copy(buf[off:], r.Arbiter[:])
	binary.LittleEndian.PutUint64(buf[off:], r.Amount)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(r.Deadline))
	off += 8
	buf[off] = uint8(r.State)
	buf[off+1] = r.Bump
	buf[off+2] = r.VaultBump
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptRecord, len(data))
	}
	off := 0
	r.WagerID = binary.LittleEndian.Uint64(data[off:])
	off += 8
	off += copy(r.Creator[:], data[off:off+address.Size])
	off += copy(r.Joiner[:], data[off:off+address.Size])
	off += copy(r.Arbiter[:], data[off:off+address.Size])
	r.Amount = binary.LittleEndian.Uint64(data[off:])
	off += 8
	r.Deadline = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	state, err := ParseState(data[off])
	if err != nil {
		return err
	}
	r.State = state
	r.Bump = data[off+1]
	r.VaultBump = data[off+2]
	return nil
}
