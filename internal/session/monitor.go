package session

import (
	"errors"
	"sync"
	"time"
)

// Default lifecycle thresholds.
const (
	DefaultInactivityTimeout = 30 * time.Minute
	DefaultRenewalThreshold  = 3 * time.Hour
	DefaultPollInterval      = 60 * time.Second
)

var (
	// ErrSessionExpired is returned by Renew once the session has already
	// expired or was never started. Callers treat it as benign: the UI and
	// the timer can race, and the user ends up at the login screen either way.
	ErrSessionExpired = errors.New("session: already expired")

	// ErrRenewNotPending is returned by Renew while the session is active and
	// no renewal prompt is showing. Also benign.
	ErrRenewNotPending = errors.New("session: renewal not pending")
)

// State is the lifecycle state of a session.
type State int

const (
	Unauthenticated State = iota
	Active
	RenewalPending
	Expired
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case RenewalPending:
		return "renewal_pending"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Effect is the side effect a Tick or Logout asks the host to run. Each
// boundary crossing produces its effect exactly once.
type Effect int

const (
	EffectNone Effect = iota
	// EffectShowPrompt: the renewal threshold was crossed; surface the
	// "continue session?" prompt.
	EffectShowPrompt
	// EffectExpire: the session is over; clear credentials and send the user
	// to the login surface.
	EffectExpire
)

// Config holds the lifecycle thresholds.
type Config struct {
	InactivityTimeout time.Duration
	RenewalThreshold  time.Duration
	PollInterval      time.Duration
}

func (c Config) withDefaults() Config {
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	if c.RenewalThreshold <= 0 {
		c.RenewalThreshold = DefaultRenewalThreshold
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Monitor owns one session record and answers "is this session still valid,
// and does the user need to be asked to continue?". It performs no I/O; the
// host persists snapshots and runs the effects it reports.
type Monitor struct {
	mu  sync.Mutex
	cfg Config
	rec *Record
}

// NewMonitor creates a monitor with no session.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{cfg: cfg.withDefaults()}
}

// Resume creates a monitor over a rehydrated record, e.g. one loaded from the
// store after a restart. Run Tick once right after to catch up on anything
// that lapsed while the record was cold.
func Resume(cfg Config, rec Record) *Monitor {
	m := NewMonitor(cfg)
	if rec.Authenticated {
		r := rec
		m.rec = &r
	}
	return m
}

// Login starts a new session at now and returns the initial record snapshot.
func (m *Monitor) Login(id string, user User, token string, now time.Time) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &Record{
		ID:               id,
		User:             user,
		AuthToken:        token,
		Authenticated:    true,
		LastActivityAt:   now,
		SessionStartedAt: now,
	}
	return *m.rec
}

// RecordActivity resets the inactivity clock. It never changes state: while
// the renewal prompt is showing, activity keeps the session from idling out
// but only an explicit Renew or Logout dismisses the prompt.
func (m *Monitor) RecordActivity(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil || !m.rec.Authenticated {
		return
	}
	m.rec.LastActivityAt = now
}

// Tick re-evaluates the session against now. Inactivity expiry wins over the
// renewal prompt. Safe to call eagerly and repeatedly: a crossing that has
// already fired reports EffectNone on subsequent calls.
func (m *Monitor) Tick(now time.Time) Effect {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil || !m.rec.Authenticated {
		return EffectNone
	}
	if now.Sub(m.rec.LastActivityAt) >= m.cfg.InactivityTimeout {
		m.rec = nil
		return EffectExpire
	}
	if !m.rec.RenewalPromptVisible && now.Sub(m.rec.SessionStartedAt) >= m.cfg.RenewalThreshold {
		m.rec.RenewalPromptVisible = true
		return EffectShowPrompt
	}
	return EffectNone
}

// Renew restarts the session clocks from now and hides the prompt. Valid only
// while the prompt is showing; other states report a sentinel and change
// nothing.
func (m *Monitor) Renew(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil || !m.rec.Authenticated {
		return ErrSessionExpired
	}
	if !m.rec.RenewalPromptVisible {
		return ErrRenewNotPending
	}
	m.rec.SessionStartedAt = now
	m.rec.LastActivityAt = now
	m.rec.RenewalPromptVisible = false
	return nil
}

// Logout ends the session explicitly, taking the same path as expiry.
func (m *Monitor) Logout() Effect {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil || !m.rec.Authenticated {
		return EffectNone
	}
	m.rec = nil
	return EffectExpire
}

// State reports the current lifecycle state. Expired is transient (the record
// is cleared in the same step that reports EffectExpire), so observers only
// ever see unauthenticated, active, or renewal_pending.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.rec == nil || !m.rec.Authenticated:
		return Unauthenticated
	case m.rec.RenewalPromptVisible:
		return RenewalPending
	default:
		return Active
	}
}

// Record returns a snapshot of the current record, if any.
func (m *Monitor) Record() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return Record{}, false
	}
	return *m.rec, true
}
