package funding

import (
	"context"

	"github.com/google/uuid"
)

// Decision statuses returned by an Acquirer.
const (
	DecisionApproved = "approved"
	DecisionDeclined = "declined"
)

// Acquirer represents a connector to an external card processor.
type Acquirer interface {
	AuthorizeCardIn(ctx context.Context, input CardInAuthorization) (AuthorizationDecision, error)
	AuthorizeCardOut(ctx context.Context, input CardOutAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision is the processor's answer for one card movement.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// Approved reports whether funds may be moved.
func (d AuthorizationDecision) Approved() bool {
	return d.Status == DecisionApproved
}

// CardInAuthorization is a pull from a card into a party account.
type CardInAuthorization struct {
	CardNumber string
	Expiry     string
	CVV        string
	Amount     int64
}

// CardOutAuthorization is a push of winnings to a card.
type CardOutAuthorization struct {
	CardNumber string
	Amount     int64
}

// StaticAcquirer approves every movement up to Limit. A zero Limit approves
// everything.
type StaticAcquirer struct {
	Limit int64
}

// AuthorizeCardIn approves or declines a top-up with a synthetic reference.
func (a StaticAcquirer) AuthorizeCardIn(_ context.Context, in CardInAuthorization) (AuthorizationDecision, error) {
	return a.decide(in.Amount), nil
}

// AuthorizeCardOut approves or declines a withdrawal with a synthetic reference.
func (a StaticAcquirer) AuthorizeCardOut(_ context.Context, in CardOutAuthorization) (AuthorizationDecision, error) {
	return a.decide(in.Amount), nil
}

func (a StaticAcquirer) decide(amount int64) AuthorizationDecision {
	status := DecisionApproved
	if a.Limit > 0 && amount > a.Limit {
		status = DecisionDeclined
	}
	return AuthorizationDecision{Reference: uuid.NewString(), Status: status}
}
