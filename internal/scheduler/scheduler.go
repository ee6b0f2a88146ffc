// Package scheduler drives time-based escrow transitions: it expires overdue
// records and retries gateway side effects that have not settled yet.
package scheduler

import (
	"context"
	"log"
	"time"

	"masterpay/internal/clock"
	"masterpay/internal/ledger"
	"masterpay/internal/store"
)

type Scheduler struct {
	Store    store.Store
	Ledger   *ledger.Ledger
	Clock    clock.Clock
	Interval time.Duration
}

func New(st store.Store, l *ledger.Ledger, clk clock.Clock, interval time.Duration) *Scheduler {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{Store: st, Ledger: l, Clock: clk, Interval: interval}
}

// Run polls until ctx is cancelled. The in-flight tick is allowed to finish;
// Run returns only after it has.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if n, err := s.ExpireOnce(ctx); err != nil {
		log.Printf("expiry scan failed: %v", err)
	} else if n > 0 {
		log.Printf("expired %d escrow payments", n)
	}
	if n, err := s.ReconcileOnce(ctx); err != nil {
		log.Printf("reconcile scan failed: %v", err)
	} else if n > 0 {
		log.Printf("settled %d escrow payments", n)
	}
}

// ExpireOnce scans for overdue non-terminal records and applies the expiry
// transition to each. A failure on one record is logged and does not block
// the rest. Records that raced a manual resolution are a no-op.
func (s *Scheduler) ExpireOnce(ctx context.Context) (int, error) {
	now := s.Clock.Now()
	payments, err := s.Store.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, p := range payments {
		updated, err := s.Ledger.Tick(ctx, p.ID, now)
		if err != nil {
			log.Printf("expire %s failed: %v", p.ID, err)
			continue
		}
		if updated.Status != p.Status {
			expired++
		}
	}
	return expired, nil
}

// ReconcileOnce retries the gateway payout/refund for terminal records whose
// side effect has not been confirmed. Terminal states must eventually match
// external reality, so this keeps retrying until the gateway accepts.
func (s *Scheduler) ReconcileOnce(ctx context.Context) (int, error) {
	payments, err := s.Store.ListUnsettled(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, p := range payments {
		if err := s.Ledger.Settle(ctx, p.ID); err != nil {
			log.Printf("reconcile %s failed: %v", p.ID, err)
			continue
		}
		settled++
	}
	return settled, nil
}
