package store

import (
	"context"
	"errors"
	"time"

	"masterpay/internal/models"
)

var (
	ErrNotFound = errors.New("escrow payment not found")
	// ErrVersionConflict means Save lost a read-modify-write race: the stored
	// record moved past the version the caller read.
	ErrVersionConflict = errors.New("escrow payment version conflict")
)

type Role string

const (
	RoleClient Role = "client"
	RoleMaster Role = "master"
)

// Store is the persistence contract for escrow payments. Save is atomic for
// the record it writes; a reader never observes a half-written record. The
// in-memory and Postgres implementations satisfy the identical contract.
type Store interface {
	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*models.EscrowPayment, error)
	// GetByOrder returns every record attached to the order, newest first.
	GetByOrder(ctx context.Context, orderID string) ([]*models.EscrowPayment, error)
	// ListByUser returns records where the user is the client or the master.
	ListByUser(ctx context.Context, userID string, role Role) ([]*models.EscrowPayment, error)
	// ListExpirable returns non-terminal, non-disputed records whose
	// expiry deadline is at or before now.
	ListExpirable(ctx context.Context, now time.Time) ([]*models.EscrowPayment, error)
	// ListUnsettled returns released/refunded records whose gateway side
	// effect has not been confirmed yet.
	ListUnsettled(ctx context.Context) ([]*models.EscrowPayment, error)
	// Save persists p. The caller sets p.Version to the stored version plus
	// one (1 for a new record); a mismatch returns ErrVersionConflict and
	// leaves the stored record untouched.
	Save(ctx context.Context, p *models.EscrowPayment) error
}
