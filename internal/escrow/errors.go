package escrow

import "errors"

// Kind groups escrow errors by what the caller has to change before resubmitting.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindInput covers malformed arguments.
	KindInput
	// KindState covers operations that are not valid in the wager's current state.
	KindState
	// KindIdentity covers caller or account mismatches.
	KindIdentity
	// KindResource covers arithmetic and balance failures.
	KindResource
	// KindNotFound is returned when no record exists for the wager id.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindState:
		return "state"
	case KindIdentity:
		return "identity"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a named, non-retryable escrow failure.
type Error struct {
	Code string
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Code: code, Kind: kind, msg: msg}
}

var (
	ErrAmountZero     = newError(KindInput, "amount_zero", "amount must be > 0")
	ErrAmountTooLarge = newError(KindInput, "amount_too_large", "amount too large")
	ErrDeadlineInPast = newError(KindInput, "deadline_in_past", "deadline is in the past")
	ErrInvalidWinner  = newError(KindInput, "invalid_winner", "invalid winner")
	ErrInvalidArbiter = newError(KindInput, "invalid_arbiter", "arbiter address required")

	ErrNotJoinable           = newError(KindState, "not_joinable", "escrow not joinable")
	ErrNotActive             = newError(KindState, "not_active", "escrow not active")
	ErrAlreadySettled        = newError(KindState, "already_settled", "already settled")
	ErrAlreadyRefunded       = newError(KindState, "already_refunded", "already refunded")
	ErrRefundNotAvailableYet = newError(KindState, "refund_not_available_yet", "refund not available yet")
	ErrJoinerAlreadySet      = newError(KindState, "joiner_already_set", "joiner already set")
	ErrJoinerMissing         = newError(KindState, "joiner_missing", "joiner missing")
	ErrWagerExists           = newError(KindState, "wager_exists", "escrow already exists for wager")

	ErrWagerNotFound = newError(KindNotFound, "wager_not_found", "escrow not found")

	ErrWagerIDMismatch        = newError(KindIdentity, "wager_id_mismatch", "wager id mismatch")
	ErrCreatorAccountMismatch = newError(KindIdentity, "creator_account_mismatch", "creator account mismatch")
	ErrJoinerAccountMismatch  = newError(KindIdentity, "joiner_account_mismatch", "joiner account mismatch")
	ErrUnauthorizedArbiter    = newError(KindIdentity, "unauthorized_arbiter", "unauthorized arbiter")
	ErrCreatorCannotJoin      = newError(KindIdentity, "creator_cannot_join", "creator cannot join")
	ErrMissingSigner          = newError(KindIdentity, "missing_signer", "operation requires a signer")
	ErrDerivationMismatch     = newError(KindIdentity, "derivation_mismatch", "record or vault address does not derive from wager id")

	ErrMathOverflow             = newError(KindResource, "math_overflow", "math overflow")
	ErrInsufficientVaultBalance = newError(KindResource, "insufficient_vault_balance", "insufficient vault balance")
	ErrInsufficientFunds        = newError(KindResource, "insufficient_funds", "insufficient funds to cover stake")
	ErrCorruptRecord            = newError(KindResource, "corrupt_record", "escrow record is corrupt")
)

// KindOf returns the kind of the escrow error wrapped in err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the escrow error wrapped in err, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
