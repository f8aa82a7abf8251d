package session

import (
	"context"
	"fmt"

	"classroom/internal/clock"
)

// Manager binds the lifecycle monitor to a store. Every entry point loads the
// record, resumes a monitor over it, runs an eager tick so a lapsed session is
// caught before the operation proceeds, and persists the outcome.
type Manager struct {
	store Store
	cfg   Config
	clk   clock.Clock

	// OnExpire runs whenever an eager tick expires a session, with the same
	// contract as Sweeper.OnExpire.
	OnExpire func(rec Record)
}

// NewManager creates a manager over the given store.
func NewManager(store Store, cfg Config, clk clock.Clock) *Manager {
	return &Manager{store: store, cfg: cfg.withDefaults(), clk: clk}
}

// Config returns the lifecycle thresholds in effect.
func (g *Manager) Config() Config { return g.cfg }

// Start begins a new session for user and persists its record. The caller
// supplies the id (see NewID) so it can be baked into the auth token first.
func (g *Manager) Start(ctx context.Context, id string, user User, token string) (Record, error) {
	m := NewMonitor(g.cfg)
	rec := m.Login(id, user, token, g.clk.Now())
	if err := g.store.Save(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("session: save: %w", err)
	}
	return rec, nil
}

// resume loads the record and runs one eager tick. Returns the live monitor,
// or ErrSessionExpired when the record is gone or the tick just expired it.
func (g *Manager) resume(ctx context.Context, id string) (*Monitor, error) {
	rec, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrSessionExpired
	}
	m := Resume(g.cfg, *rec)
	switch m.Tick(g.clk.Now()) {
	case EffectExpire:
		if err := g.store.Delete(ctx, id); err != nil {
			return nil, err
		}
		if g.OnExpire != nil {
			g.OnExpire(*rec)
		}
		return nil, ErrSessionExpired
	case EffectShowPrompt:
		if updated, ok := m.Record(); ok {
			if err := g.store.Save(ctx, updated); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Touch records an activity event on the session.
func (g *Manager) Touch(ctx context.Context, id string) error {
	m, err := g.resume(ctx, id)
	if err != nil {
		return err
	}
	m.RecordActivity(g.clk.Now())
	rec, _ := m.Record()
	return g.store.Save(ctx, rec)
}

// Renew restarts the session clocks in response to the user confirming the
// renewal prompt. Returns the refreshed record.
func (g *Manager) Renew(ctx context.Context, id string) (Record, error) {
	m, err := g.resume(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if err := m.Renew(g.clk.Now()); err != nil {
		rec, _ := m.Record()
		return rec, err
	}
	rec, _ := m.Record()
	if err := g.store.Save(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Logout ends the session. Missing records are fine: the user is already out.
func (g *Manager) Logout(ctx context.Context, id string) error {
	return g.store.Delete(ctx, id)
}

// Describe reports the record and lifecycle state for the UI signal boundary.
func (g *Manager) Describe(ctx context.Context, id string) (Record, State, error) {
	m, err := g.resume(ctx, id)
	if err != nil {
		return Record{}, Unauthenticated, err
	}
	rec, _ := m.Record()
	return rec, m.State(), nil
}
