package ledger

import (
	"time"

	"masterpay/internal/models"
)

const (
	EventTypeCreated       = "escrow.created"
	EventTypeFunded        = "escrow.funded"
	EventTypeWorkConfirmed = "escrow.work_confirmed"
	EventTypeReleased      = "escrow.released"
	EventTypeRefunded      = "escrow.refunded"
	EventTypeDisputed      = "escrow.disputed"
	EventTypeResolved      = "escrow.resolved"
	EventTypeCancelled     = "escrow.cancelled"
	EventTypeExpired       = "escrow.expired"
	EventTypeSettled       = "escrow.settled"
)

// Event is the canonical payload emitted after every committed transition. The
// payment snapshot is a clone, safe to hand to subscribers.
type Event struct {
	Type    string
	At      time.Time
	Payment *models.EscrowPayment
}

// Emitter receives ledger events. Emit must not block: slow consumers are the
// emitter's problem, not the ledger's.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

func (l *Ledger) emit(eventType string, p *models.EscrowPayment) {
	if l == nil || l.emitter == nil || p == nil {
		return
	}
	l.emitter.Emit(Event{
		Type:    eventType,
		At:      l.clock.Now(),
		Payment: p.Clone(),
	})
}
