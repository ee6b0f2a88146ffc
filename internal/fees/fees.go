package fees

import (
	"errors"

	"github.com/shopspring/decimal"

	"masterpay/internal/models"
)

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidPercent = errors.New("fee percent must be between 0 and 100")
)

// Split is the platform fee / master payout breakdown of an order amount.
type Split struct {
	PlatformFee   decimal.Decimal
	MasterReceive decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Calculate splits amount into the platform fee and the master payout.
//
// The fee is rounded DOWN to the currency's fractional digits, so any rounding
// remainder stays on the master's side. The invariant
// PlatformFee + MasterReceive == amount holds exactly.
func Calculate(amount, feePercent decimal.Decimal, currency models.Currency) (Split, error) {
	if amount.IsNegative() {
		return Split{}, ErrNegativeAmount
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(hundred) {
		return Split{}, ErrInvalidPercent
	}
	fee := amount.Mul(feePercent).Div(hundred).RoundFloor(currency.Decimals())
	return Split{
		PlatformFee:   fee,
		MasterReceive: amount.Sub(fee),
	}, nil
}
