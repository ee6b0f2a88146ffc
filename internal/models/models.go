package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	StatusAwaitingClient    EscrowStatus = "awaiting_client"
	StatusAwaitingMaster    EscrowStatus = "awaiting_master"
	StatusConfirmedByMaster EscrowStatus = "confirmed_by_master"
	StatusReleasedToMaster  EscrowStatus = "released_to_master"
	StatusRefundedToClient  EscrowStatus = "refunded_to_client"
	StatusDisputed          EscrowStatus = "disputed"
	StatusCancelled         EscrowStatus = "cancelled"
)

// Terminal reports whether no further transition is defined from s.
func (s EscrowStatus) Terminal() bool {
	switch s {
	case StatusReleasedToMaster, StatusRefundedToClient, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the defined lifecycle states.
func (s EscrowStatus) Valid() bool {
	switch s {
	case StatusAwaitingClient, StatusAwaitingMaster, StatusConfirmedByMaster,
		StatusReleasedToMaster, StatusRefundedToClient, StatusDisputed, StatusCancelled:
		return true
	default:
		return false
	}
}

type Currency string

const (
	CurrencyUAH Currency = "UAH"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Decimals returns the number of fractional digits carried by amounts in c.
func (c Currency) Decimals() int32 {
	return 2
}

func (c Currency) Valid() bool {
	switch c {
	case CurrencyUAH, CurrencyUSD, CurrencyEUR:
		return true
	default:
		return false
	}
}

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCrypto       PaymentMethod = "crypto"
	MethodMono         PaymentMethod = "mono"
	MethodPrivat24     PaymentMethod = "privat24"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodCrypto, MethodMono, MethodPrivat24:
		return true
	default:
		return false
	}
}

// EscrowPayment is one escrow record per order/payment pair. Identity,
// counterparties, amount and fee split are immutable after Open; the ledger is
// the only writer of Status and the confirmation fields. Terminal records are
// never deleted.
type EscrowPayment struct {
	ID      string
	OrderID string

	ClientID string
	MasterID string

	Amount   decimal.Decimal
	Currency Currency

	PlatformFeePercent  decimal.Decimal
	PlatformFeeAmount   decimal.Decimal
	MasterReceiveAmount decimal.Decimal

	Status EscrowStatus

	ClientConfirmed   bool
	ClientConfirmedAt *time.Time
	MasterConfirmed   bool
	MasterConfirmedAt *time.Time

	PaymentMethod PaymentMethod
	// CaptureRef is the gateway reference recorded when funds are captured.
	CaptureRef string

	CreatedAt time.Time
	ExpiresAt time.Time

	ReleasedAt *time.Time
	RefundedAt *time.Time

	// GatewaySettled tracks whether the terminal payout/refund side effect has
	// reached the gateway. Terminal records with GatewaySettled=false are
	// retried by the reconciliation pass.
	GatewaySettled   bool
	GatewaySettledAt *time.Time

	Description   string
	DisputeReason string
	Notes         string

	// Version guards read-modify-write cycles in the store.
	Version int64

	UpdatedAt time.Time
}

// Captured reports whether funds were collected from the client. It decides
// which expiry edge fires: captured records refund, uncaptured ones cancel.
func (p *EscrowPayment) Captured() bool {
	return p != nil && p.CaptureRef != ""
}

// Clone returns a deep copy so callers can mutate freely without affecting the
// stored record.
func (p *EscrowPayment) Clone() *EscrowPayment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ClientConfirmedAt = cloneTime(p.ClientConfirmedAt)
	clone.MasterConfirmedAt = cloneTime(p.MasterConfirmedAt)
	clone.ReleasedAt = cloneTime(p.ReleasedAt)
	clone.RefundedAt = cloneTime(p.RefundedAt)
	clone.GatewaySettledAt = cloneTime(p.GatewaySettledAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
