package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"masterpay/internal/models"
)

// Memory is the in-memory Store used by tests and local development. All
// records are deep-copied on the way in and out so callers never share state
// with the store.
type Memory struct {
	mu       sync.RWMutex
	payments map[string]*models.EscrowPayment
}

func NewMemory() *Memory {
	return &Memory{payments: make(map[string]*models.EscrowPayment)}
}

func (m *Memory) Get(ctx context.Context, id string) (*models.EscrowPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) GetByOrder(ctx context.Context, orderID string) ([]*models.EscrowPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.EscrowPayment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListByUser(ctx context.Context, userID string, role Role) ([]*models.EscrowPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.EscrowPayment
	for _, p := range m.payments {
		switch role {
		case RoleClient:
			if p.ClientID == userID {
				out = append(out, p.Clone())
			}
		case RoleMaster:
			if p.MasterID == userID {
				out = append(out, p.Clone())
			}
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListExpirable(ctx context.Context, now time.Time) ([]*models.EscrowPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.EscrowPayment
	for _, p := range m.payments {
		if p.Status.Terminal() || p.Status == models.StatusDisputed {
			continue
		}
		if !p.ExpiresAt.After(now) {
			out = append(out, p.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListUnsettled(ctx context.Context) ([]*models.EscrowPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.EscrowPayment
	for _, p := range m.payments {
		if p.GatewaySettled {
			continue
		}
		if p.Status == models.StatusReleasedToMaster || p.Status == models.StatusRefundedToClient {
			out = append(out, p.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Save(ctx context.Context, p *models.EscrowPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.payments[p.ID]
	if !ok {
		if p.Version != 1 {
			return ErrVersionConflict
		}
	} else if p.Version != existing.Version+1 {
		return ErrVersionConflict
	}
	m.payments[p.ID] = p.Clone()
	return nil
}

func sortNewestFirst(ps []*models.EscrowPayment) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}
