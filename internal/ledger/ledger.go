package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"masterpay/internal/clock"
	"masterpay/internal/fees"
	"masterpay/internal/gateway"
	"masterpay/internal/models"
	"masterpay/internal/store"
)

// Ledger owns every escrow payment record and is the only component allowed
// to change its status. Each transition runs under a per-record lock: read the
// current record, validate the event against the transition table, write the
// new record. A failed transition leaves the record exactly as it was.
type Ledger struct {
	store   store.Store
	gateway gateway.Gateway
	clock   clock.Clock
	emitter Emitter

	feePercent decimal.Decimal
	ttl        time.Duration

	// dispatch runs terminal side effects (gateway release/refund) off the
	// caller's critical path. Tests replace it with a synchronous runner.
	dispatch func(func())

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Config struct {
	Store      store.Store
	Gateway    gateway.Gateway
	Clock      clock.Clock
	Emitter    Emitter
	FeePercent decimal.Decimal
	TTL        time.Duration
	Dispatch   func(func())
}

const (
	defaultFeePercent = 5
	defaultTTL        = 30 * 24 * time.Hour
)

func New(cfg Config) *Ledger {
	l := &Ledger{
		store:      cfg.Store,
		gateway:    cfg.Gateway,
		clock:      cfg.Clock,
		emitter:    cfg.Emitter,
		feePercent: cfg.FeePercent,
		ttl:        cfg.TTL,
		dispatch:   cfg.Dispatch,
		locks:      make(map[string]*sync.Mutex),
	}
	if l.clock == nil {
		l.clock = clock.NewSystem()
	}
	if l.emitter == nil {
		l.emitter = NoopEmitter{}
	}
	if l.feePercent.IsZero() {
		l.feePercent = decimal.NewFromInt(defaultFeePercent)
	}
	if l.ttl <= 0 {
		l.ttl = defaultTTL
	}
	if l.dispatch == nil {
		l.dispatch = func(fn func()) { go fn() }
	}
	return l
}

func (l *Ledger) lock(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// OpenParams is everything the order-placement collaborator supplies when a
// client commits to pay.
type OpenParams struct {
	OrderID       string
	ClientID      string
	MasterID      string
	Amount        decimal.Decimal
	Currency      models.Currency
	PaymentMethod models.PaymentMethod
	Description   string
}

// Open creates a new escrow payment in awaiting_client, computing the fee
// split once at creation.
func (l *Ledger) Open(ctx context.Context, params OpenParams) (*models.EscrowPayment, error) {
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if params.OrderID == "" || params.ClientID == "" || params.MasterID == "" || params.ClientID == params.MasterID {
		return nil, ErrInvalidParties
	}
	currency := params.Currency
	if currency == "" {
		currency = models.CurrencyUAH
	}
	if !currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	method := params.PaymentMethod
	if method == "" {
		method = models.MethodCard
	}
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	split, err := fees.Calculate(params.Amount, l.feePercent, currency)
	if err != nil {
		return nil, err
	}

	description := params.Description
	if description == "" {
		description = "Escrow payment for order " + params.OrderID
	}

	now := l.clock.Now()
	p := &models.EscrowPayment{
		ID:                  uuid.NewString(),
		OrderID:             params.OrderID,
		ClientID:            params.ClientID,
		MasterID:            params.MasterID,
		Amount:              params.Amount,
		Currency:            currency,
		PlatformFeePercent:  l.feePercent,
		PlatformFeeAmount:   split.PlatformFee,
		MasterReceiveAmount: split.MasterReceive,
		Status:              models.StatusAwaitingClient,
		PaymentMethod:       method,
		CreatedAt:           now,
		ExpiresAt:           now.Add(l.ttl),
		Description:         description,
		Version:             1,
		UpdatedAt:           now,
	}
	if err := l.save(ctx, p); err != nil {
		return nil, err
	}
	l.emit(EventTypeCreated, p)
	return p.Clone(), nil
}

// ClientPays captures the order amount from the client and moves the record to
// awaiting_master. Capture is synchronous: if the gateway call fails the state
// does not advance.
func (l *Ledger) ClientPays(ctx context.Context, paymentID, clientID string) (*models.EscrowPayment, error) {
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.Status != models.StatusAwaitingClient {
			return ErrInvalidTransition
		}
		if clientID != p.ClientID {
			return ErrUnauthorized
		}
		ref, err := l.gateway.Capture(ctx, p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGatewayFailure, err)
		}
		p.CaptureRef = ref
		p.Status = models.StatusAwaitingMaster
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(EventTypeFunded, p)
	return p, nil
}

// MasterConfirms records the master's confirmation that the work is done.
func (l *Ledger) MasterConfirms(ctx context.Context, paymentID, masterID string) (*models.EscrowPayment, error) {
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.Status != models.StatusAwaitingMaster {
			return ErrInvalidTransition
		}
		if masterID != p.MasterID {
			return ErrUnauthorized
		}
		now := l.clock.Now()
		p.MasterConfirmed = true
		p.MasterConfirmedAt = &now
		p.Status = models.StatusConfirmedByMaster
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(EventTypeWorkConfirmed, p)
	return p, nil
}

// ClientApproves releases the held funds to the master. The state change
// commits first; the gateway payout is dispatched asynchronously and retried
// by reconciliation if it fails.
func (l *Ledger) ClientApproves(ctx context.Context, paymentID, clientID string) (*models.EscrowPayment, error) {
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.Status != models.StatusConfirmedByMaster {
			return ErrInvalidTransition
		}
		if clientID != p.ClientID {
			return ErrUnauthorized
		}
		now := l.clock.Now()
		p.ClientConfirmed = true
		p.ClientConfirmedAt = &now
		p.Status = models.StatusReleasedToMaster
		p.ReleasedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(EventTypeReleased, p)
	l.dispatchSettle(p.ID)
	return p, nil
}

// Dispute moves a funded record to disputed. Either party may raise it; the
// reason is mandatory.
func (l *Ledger) Dispute(ctx context.Context, paymentID, callerID, reason string) (*models.EscrowPayment, error) {
	if reason == "" {
		return nil, ErrEmptyReason
	}
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.Status != models.StatusAwaitingMaster && p.Status != models.StatusConfirmedByMaster {
			return ErrInvalidTransition
		}
		switch callerID {
		case p.ClientID:
			p.Notes = "Dispute opened by client"
		case p.MasterID:
			p.Notes = "Dispute opened by master"
		default:
			return ErrUnauthorized
		}
		p.Status = models.StatusDisputed
		p.DisputeReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(EventTypeDisputed, p)
	return p, nil
}

// Cancel voids an escrow before any funds were captured.
func (l *Ledger) Cancel(ctx context.Context, paymentID, clientID, reason string) (*models.EscrowPayment, error) {
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.Status != models.StatusAwaitingClient {
			return ErrInvalidTransition
		}
		if clientID != p.ClientID {
			return ErrUnauthorized
		}
		p.Status = models.StatusCancelled
		if reason != "" {
			p.Notes = "Cancelled: " + reason
		} else {
			p.Notes = "Cancelled by client"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(EventTypeCancelled, p)
	return p, nil
}

// Outcome is an administrative dispute decision.
type Outcome string

const (
	OutcomeReleaseToMaster Outcome = "release_to_master"
	OutcomeRefundToClient  Outcome = "refund_to_client"
)

// Resolve applies an administrative decision to a disputed record. Any other
// state is rejected with ErrNotDisputed.
func (l *Ledger) Resolve(ctx context.Context, paymentID string, outcome Outcome, notes string) (*models.EscrowPayment, error) {
	if outcome != OutcomeReleaseToMaster && outcome != OutcomeRefundToClient {
		return nil, fmt.Errorf("invalid resolution outcome: %s", outcome)
	}
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.Status != models.StatusDisputed {
			return ErrNotDisputed
		}
		now := l.clock.Now()
		switch outcome {
		case OutcomeReleaseToMaster:
			p.Status = models.StatusReleasedToMaster
			p.ReleasedAt = &now
		case OutcomeRefundToClient:
			p.Status = models.StatusRefundedToClient
			p.RefundedAt = &now
		}
		if notes != "" {
			p.Notes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.emit(EventTypeResolved, p)
	l.dispatchSettle(p.ID)
	return p, nil
}

// Tick applies the expiry transition to a record whose deadline has passed.
// Captured records refund to the client, uncaptured ones cancel. Calling Tick
// on a terminal or disputed record is a no-op so the scheduler can safely race
// with manual resolution.
func (l *Ledger) Tick(ctx context.Context, paymentID string, now time.Time) (*models.EscrowPayment, error) {
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.Status.Terminal() || p.Status == models.StatusDisputed {
			return errSkipTransition
		}
		if now.Before(p.ExpiresAt) {
			return ErrDeadlineNotReached
		}
		if p.Captured() {
			p.Status = models.StatusRefundedToClient
			p.RefundedAt = &now
			p.Notes = "Automatic refund after expiry"
		} else {
			p.Status = models.StatusCancelled
			p.Notes = "Cancelled after expiry, no funds captured"
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errSkipTransition) {
			return l.Get(ctx, paymentID)
		}
		return nil, err
	}
	l.emit(EventTypeExpired, p)
	if p.Status == models.StatusRefundedToClient {
		l.dispatchSettle(p.ID)
	}
	return p, nil
}

// errSkipTransition aborts a transition without surfacing an error to the
// caller. It must never escape the ledger.
var errSkipTransition = errors.New("skip transition")

// Settle performs the gateway side effect for a terminal record and marks it
// settled. It is idempotent and safe to retry; the reconciliation pass calls
// it until the gateway accepts.
func (l *Ledger) Settle(ctx context.Context, paymentID string) error {
	var gatewayErr error
	p, err := l.transition(ctx, paymentID, func(p *models.EscrowPayment) error {
		if p.GatewaySettled {
			return errSkipTransition
		}
		switch p.Status {
		case models.StatusReleasedToMaster:
			gatewayErr = l.gateway.Release(ctx, p)
		case models.StatusRefundedToClient:
			if p.Captured() {
				gatewayErr = l.gateway.Refund(ctx, p)
			}
		default:
			return errSkipTransition
		}
		if gatewayErr != nil {
			return fmt.Errorf("%w: %v", ErrGatewayFailure, gatewayErr)
		}
		now := l.clock.Now()
		p.GatewaySettled = true
		p.GatewaySettledAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, errSkipTransition) {
			return nil
		}
		return err
	}
	l.emit(EventTypeSettled, p)
	return nil
}

func (l *Ledger) dispatchSettle(paymentID string) {
	l.dispatch(func() {
		if err := l.Settle(context.Background(), paymentID); err != nil {
			log.Printf("settle %s failed, reconciliation will retry: %v", paymentID, err)
		}
	})
}

// Get returns the current record.
func (l *Ledger) Get(ctx context.Context, paymentID string) (*models.EscrowPayment, error) {
	return l.store.Get(ctx, paymentID)
}

// ListByOrder returns all escrow payments attached to an order.
func (l *Ledger) ListByOrder(ctx context.Context, orderID string) ([]*models.EscrowPayment, error) {
	return l.store.GetByOrder(ctx, orderID)
}

// ListByUser returns all escrow payments where the user acts in the given role.
func (l *Ledger) ListByUser(ctx context.Context, userID string, role store.Role) ([]*models.EscrowPayment, error) {
	return l.store.ListByUser(ctx, userID, role)
}

// transition runs the read-validate-write cycle for one record under its
// lock. fn mutates a clone; nothing is persisted unless fn returns nil.
func (l *Ledger) transition(ctx context.Context, paymentID string, fn func(*models.EscrowPayment) error) (*models.EscrowPayment, error) {
	mu := l.lock(paymentID)
	mu.Lock()
	defer mu.Unlock()

	cur, err := l.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = l.clock.Now()
	if err := l.save(ctx, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (l *Ledger) save(ctx context.Context, p *models.EscrowPayment) error {
	if err := l.store.Save(ctx, p); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return ErrConcurrentModification
		}
		return err
	}
	return nil
}
