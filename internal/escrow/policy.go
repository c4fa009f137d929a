package escrow

import (
	"fmt"

	"github.com/congo-pay/wager_escrow/internal/address"
)

// Operation names one of the four state transitions.
type Operation string

const (
	OpCreate Operation = "create"
	OpJoin   Operation = "join"
	OpSettle Operation = "settle"
	OpRefund Operation = "refund"
)

// Role is who may submit an operation.
type Role uint8

const (
	RoleCreator Role = iota
	RoleJoiner
	RoleArbiter
	RoleAnyone
)

func (r Role) String() string {
	switch r {
	case RoleCreator:
		return "creator"
	case RoleJoiner:
		return "joiner"
	case RoleArbiter:
		return "arbiter"
	case RoleAnyone:
		return "anyone"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Policy attaches a caller role to each operation.
type Policy struct {
	Create Role
	Join   Role
	Settle Role
	Refund Role
}

// DefaultPolicy leaves refund open to any signer so stakes cannot be stranded
// by an absent arbiter or counterparty.
var DefaultPolicy = Policy{
	Create: RoleCreator,
	Join:   RoleJoiner,
	Settle: RoleArbiter,
	Refund: RoleAnyone,
}

// RoleFor returns the role required by op.
func (p Policy) RoleFor(op Operation) Role {
	switch op {
	case OpCreate:
		return p.Create
	case OpJoin:
		return p.Join
	case OpSettle:
		return p.Settle
	default:
		return p.Refund
	}
}

// authorize checks caller against the role the policy requires for op.
// Creator and joiner roles are self-selecting: the caller becomes that party,
// so only the signer's presence is checked here. Self-join is rejected by Join
// after its state checks.
func (p Policy) authorize(op Operation, caller address.Address, rec *Record) error {
	if caller.IsZero() {
		return ErrMissingSigner
	}
	switch role := p.RoleFor(op); role {
	case RoleCreator, RoleJoiner, RoleAnyone:
		return nil
	case RoleArbiter:
		if rec == nil || caller != rec.Arbiter {
			return ErrUnauthorizedArbiter
		}
		return nil
	default:
		return fmt.Errorf("unknown role %s for %s", role, op)
	}
}
