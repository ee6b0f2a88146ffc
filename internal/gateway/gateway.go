package gateway

import (
	"context"

	"masterpay/internal/models"
)

// Gateway is the payment collaborator boundary. Capture collects the order
// amount from the client into escrow, Release pays the master, Refund returns
// the funds to the client. The engine treats any error as "state does not
// advance" for Capture, and as "retry later" for Release/Refund.
type Gateway interface {
	Capture(ctx context.Context, p *models.EscrowPayment) (ref string, err error)
	Release(ctx context.Context, p *models.EscrowPayment) error
	Refund(ctx context.Context, p *models.EscrowPayment) error
}

// Router dispatches gateway calls by payment method: crypto payments go to the
// deposit-address gateway, everything else to the default processor.
type Router struct {
	Default Gateway
	Crypto  Gateway
}

func (r Router) pick(p *models.EscrowPayment) Gateway {
	if p.PaymentMethod == models.MethodCrypto && r.Crypto != nil {
		return r.Crypto
	}
	return r.Default
}

func (r Router) Capture(ctx context.Context, p *models.EscrowPayment) (string, error) {
	return r.pick(p).Capture(ctx, p)
}

func (r Router) Release(ctx context.Context, p *models.EscrowPayment) error {
	return r.pick(p).Release(ctx, p)
}

func (r Router) Refund(ctx context.Context, p *models.EscrowPayment) error {
	return r.pick(p).Refund(ctx, p)
}
