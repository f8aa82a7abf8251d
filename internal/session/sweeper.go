package session

import (
	"context"
	"log"
	"time"

	"classroom/internal/clock"
)

// Sweeper drives the lifecycle monitor for every stored session on a single
// host-owned timer. One sweep per poll interval is enough: the thresholds are
// minutes and hours.
type Sweeper struct {
	store Store
	cfg   Config
	clk   clock.Clock

	// OnPrompt runs after a session crosses the renewal threshold.
	OnPrompt func(rec Record)
	// OnExpire runs after a session is expired and removed from the store.
	OnExpire func(rec Record)
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store Store, cfg Config, clk clock.Clock) *Sweeper {
	return &Sweeper{store: store, cfg: cfg.withDefaults(), clk: clk}
}

// Run sweeps immediately, then on every poll interval until ctx is done. The
// immediate sweep catches sessions that lapsed while the process was down.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one tick for every stored session and persists the outcomes.
func (s *Sweeper) Sweep(ctx context.Context) {
	recs, err := s.store.List(ctx)
	if err != nil {
		log.Printf("session sweep: list failed: %v", err)
		return
	}
	now := s.clk.Now()
	for _, rec := range recs {
		m := Resume(s.cfg, rec)
		switch m.Tick(now) {
		case EffectExpire:
			if err := s.store.Delete(ctx, rec.ID); err != nil {
				log.Printf("session sweep: delete %s failed: %v", rec.ID, err)
				continue
			}
			if s.OnExpire != nil {
				s.OnExpire(rec)
			}
		case EffectShowPrompt:
			updated, ok := m.Record()
			if !ok {
				continue
			}
			if err := s.store.Save(ctx, updated); err != nil {
				log.Printf("session sweep: save %s failed: %v", rec.ID, err)
				continue
			}
			if s.OnPrompt != nil {
				s.OnPrompt(updated)
			}
		}
	}
}
