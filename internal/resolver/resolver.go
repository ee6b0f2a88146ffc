// Package resolver applies administrative dispute decisions to the ledger.
package resolver

import (
	"context"
	"errors"

	"masterpay/internal/ledger"
	"masterpay/internal/models"
)

// Decision is a human ruling on a disputed escrow payment.
type Decision string

const (
	DecisionReleaseToMaster Decision = "release_to_master"
	DecisionRefundToClient  Decision = "refund_to_client"
)

var ErrInvalidDecision = errors.New("decision must be release_to_master or refund_to_client")

type Resolver struct {
	Ledger *ledger.Ledger
}

func New(l *ledger.Ledger) *Resolver {
	return &Resolver{Ledger: l}
}

// Resolve applies the decision with its free-text justification. Only records
// currently in the disputed state are accepted; anything else surfaces
// ledger.ErrNotDisputed.
func (r *Resolver) Resolve(ctx context.Context, paymentID string, decision Decision, justification string) (*models.EscrowPayment, error) {
	var outcome ledger.Outcome
	switch decision {
	case DecisionReleaseToMaster:
		outcome = ledger.OutcomeReleaseToMaster
	case DecisionRefundToClient:
		outcome = ledger.OutcomeRefundToClient
	default:
		return nil, ErrInvalidDecision
	}
	notes := justification
	if notes != "" {
		switch decision {
		case DecisionReleaseToMaster:
			notes = "Dispute resolved in master's favor: " + justification
		case DecisionRefundToClient:
			notes = "Dispute resolved in client's favor: " + justification
		}
	}
	return r.Ledger.Resolve(ctx, paymentID, outcome, notes)
}
