package session

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newActiveMonitor() *Monitor {
	m := NewMonitor(Config{})
	m.Login("sess-1", User{ID: "u1", Role: RoleStudent}, "tok", t0)
	return m
}

// keepAlive records activity every 10 minutes up to deadline so the renewal
// threshold can be reached without tripping the inactivity timeout.
func keepAlive(m *Monitor, until time.Time) {
	for at := t0; at.Before(until); at = at.Add(10 * time.Minute) {
		m.RecordActivity(at)
	}
}

func TestInactivityExpiry(t *testing.T) {
	m := newActiveMonitor()

	if eff := m.Tick(t0.Add(29*time.Minute + 59*time.Second)); eff != EffectNone {
		t.Fatalf("tick before timeout: got effect %v, want none", eff)
	}
	if eff := m.Tick(t0.Add(30 * time.Minute)); eff != EffectExpire {
		t.Fatalf("tick at timeout: got effect %v, want expire", eff)
	}
	if st := m.State(); st != Unauthenticated {
		t.Fatalf("state after expiry: got %v, want unauthenticated", st)
	}
	// Crossing already fired; further ticks are no-ops.
	if eff := m.Tick(t0.Add(31 * time.Minute)); eff != EffectNone {
		t.Fatalf("tick after expiry: got effect %v, want none", eff)
	}
}

func TestInactivityExpiryWhilePromptVisible(t *testing.T) {
	m := newActiveMonitor()
	keepAlive(m, t0.Add(3*time.Hour))

	if eff := m.Tick(t0.Add(3 * time.Hour)); eff != EffectShowPrompt {
		t.Fatalf("tick at renewal threshold: got effect %v, want show prompt", eff)
	}
	// No activity while the prompt sits there: inactivity still wins.
	lastActive := t0.Add(2*time.Hour + 50*time.Minute)
	if eff := m.Tick(lastActive.Add(30 * time.Minute)); eff != EffectExpire {
		t.Fatalf("idle with prompt open: got effect %v, want expire", eff)
	}
	if st := m.State(); st != Unauthenticated {
		t.Fatalf("state after expiry: got %v, want unauthenticated", st)
	}
}

func TestRenewalPromptFiresExactlyOnce(t *testing.T) {
	m := newActiveMonitor()
	keepAlive(m, t0.Add(4*time.Hour))

	if eff := m.Tick(t0.Add(3 * time.Hour)); eff != EffectShowPrompt {
		t.Fatalf("first tick past threshold: got effect %v, want show prompt", eff)
	}
	// A paused timer catching up delivers several ticks past the boundary.
	for i := 1; i <= 3; i++ {
		if eff := m.Tick(t0.Add(3*time.Hour + time.Duration(i)*time.Minute)); eff != EffectNone {
			t.Fatalf("catch-up tick %d: got effect %v, want none", i, eff)
		}
	}
	if st := m.State(); st != RenewalPending {
		t.Fatalf("state: got %v, want renewal_pending", st)
	}
}

func TestActivityDoesNotDismissPrompt(t *testing.T) {
	m := newActiveMonitor()
	keepAlive(m, t0.Add(3*time.Hour))
	m.Tick(t0.Add(3 * time.Hour))

	m.RecordActivity(t0.Add(3*time.Hour + 5*time.Minute))
	if st := m.State(); st != RenewalPending {
		t.Fatalf("state after activity: got %v, want renewal_pending", st)
	}
	// But the activity did reset the idle clock.
	if eff := m.Tick(t0.Add(3*time.Hour + 20*time.Minute)); eff != EffectNone {
		t.Fatalf("tick within fresh idle window: got effect %v, want none", eff)
	}
}

func TestRenewResetsClocks(t *testing.T) {
	m := newActiveMonitor()
	keepAlive(m, t0.Add(3*time.Hour))
	m.Tick(t0.Add(3 * time.Hour))

	renewAt := t0.Add(3*time.Hour + 2*time.Minute)
	if err := m.Renew(renewAt); err != nil {
		t.Fatalf("renew: %v", err)
	}
	if st := m.State(); st != Active {
		t.Fatalf("state after renew: got %v, want active", st)
	}
	rec, ok := m.Record()
	if !ok {
		t.Fatal("record missing after renew")
	}
	if !rec.SessionStartedAt.Equal(renewAt) || !rec.LastActivityAt.Equal(renewAt) {
		t.Fatalf("clocks not reset: started=%v activity=%v, want both %v",
			rec.SessionStartedAt, rec.LastActivityAt, renewAt)
	}
	// Immediately after renewal neither threshold can re-fire.
	if eff := m.Tick(renewAt.Add(time.Second)); eff != EffectNone {
		t.Fatalf("tick right after renew: got effect %v, want none", eff)
	}
}

func TestRenewOutsidePrompt(t *testing.T) {
	m := newActiveMonitor()
	if err := m.Renew(t0.Add(time.Minute)); !errors.Is(err, ErrRenewNotPending) {
		t.Fatalf("renew while active: got %v, want ErrRenewNotPending", err)
	}

	m.Tick(t0.Add(30 * time.Minute)) // expire
	if err := m.Renew(t0.Add(31 * time.Minute)); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("renew after expiry: got %v, want ErrSessionExpired", err)
	}
}

func TestExpiryPrecedesPromptOnSameTick(t *testing.T) {
	m := NewMonitor(Config{InactivityTimeout: 30 * time.Minute, RenewalThreshold: 30 * time.Minute})
	m.Login("sess-1", User{ID: "u1", Role: RoleStudent}, "tok", t0)

	// Both boundaries cross at once; expiry wins and the prompt never shows.
	if eff := m.Tick(t0.Add(30 * time.Minute)); eff != EffectExpire {
		t.Fatalf("tick at shared boundary: got effect %v, want expire", eff)
	}
}

func TestLogoutFiresOnce(t *testing.T) {
	m := newActiveMonitor()
	if eff := m.Logout(); eff != EffectExpire {
		t.Fatalf("logout: got effect %v, want expire", eff)
	}
	if eff := m.Logout(); eff != EffectNone {
		t.Fatalf("second logout: got effect %v, want none", eff)
	}
}

func TestResumeCatchesLapsedSession(t *testing.T) {
	rec := Record{
		ID:               "sess-1",
		User:             User{ID: "u1", Role: RoleTeacher},
		AuthToken:        "tok",
		Authenticated:    true,
		LastActivityAt:   t0,
		SessionStartedAt: t0,
	}
	// Rehydrated an hour later: the first tick reports the missed expiry.
	m := Resume(Config{}, rec)
	if eff := m.Tick(t0.Add(time.Hour)); eff != EffectExpire {
		t.Fatalf("tick after rehydration: got effect %v, want expire", eff)
	}
}
