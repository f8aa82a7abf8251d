package attendance

import (
	"errors"
	"testing"
	"time"
)

var classStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func sixtyMinuteClass() ScheduledClass {
	return ScheduledClass{
		ID:              "cls-1",
		CourseID:        "crs-1",
		ScheduledAt:     classStart,
		DurationMinutes: 60,
	}
}

func TestClassifyBoundaries(t *testing.T) {
	var cfg WindowConfig
	class := sixtyMinuteClass()

	tests := []struct {
		name       string
		offset     time.Duration
		phase      Phase
		canCheckIn bool
		status     Status // empty means check-in must fail
	}{
		{"16m early", -16 * time.Minute, PhaseBeforeWindow, false, ""},
		{"15m early boundary", -15 * time.Minute, PhaseCheckInOpen, true, StatusPresent},
		{"at start", 0, PhaseCheckInOpen, true, StatusPresent},
		{"1m late", time.Minute, PhaseCheckInOpen, true, StatusLate},
		{"grace boundary", 30 * time.Minute, PhaseCheckInOpen, true, StatusLate},
		{"just past grace", 31 * time.Minute, PhaseInProgress, false, ""},
		{"at class end", 60 * time.Minute, PhaseInProgress, false, ""},
		{"past class end", 61 * time.Minute, PhaseEnded, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := classStart.Add(tt.offset)

			phase, err := cfg.Classify(class, now)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if phase != tt.phase {
				t.Fatalf("phase = %s, want %s", phase, tt.phase)
			}

			ok, err := cfg.CanCheckIn(class, now)
			if err != nil {
				t.Fatalf("canCheckIn: %v", err)
			}
			if ok != tt.canCheckIn {
				t.Fatalf("canCheckIn = %v, want %v", ok, tt.canCheckIn)
			}

			status, err := cfg.EvaluateCheckIn(class, now)
			if tt.status == "" {
				if !errors.Is(err, ErrWindowClosed) {
					t.Fatalf("evaluate: got (%q, %v), want ErrWindowClosed", status, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if status != tt.status {
				t.Fatalf("status = %s, want %s", status, tt.status)
			}
		})
	}
}

func TestShortClassWindowOutlastsClass(t *testing.T) {
	var cfg WindowConfig
	class := sixtyMinuteClass()
	class.DurationMinutes = 10

	// 20 minutes in the class is over but the grace window is still open.
	now := classStart.Add(20 * time.Minute)
	phase, err := cfg.Classify(class, now)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if phase != PhaseCheckInOpen {
		t.Fatalf("phase = %s, want %s", phase, PhaseCheckInOpen)
	}
	status, err := cfg.EvaluateCheckIn(class, now)
	if err != nil || status != StatusLate {
		t.Fatalf("evaluate = (%q, %v), want late", status, err)
	}

	// Past the grace the class is simply over.
	if phase, _ := cfg.Classify(class, classStart.Add(31*time.Minute)); phase != PhaseEnded {
		t.Fatalf("phase past grace = %s, want %s", phase, PhaseEnded)
	}
}

func TestInvalidSchedule(t *testing.T) {
	var cfg WindowConfig

	for _, class := range []ScheduledClass{
		{ID: "no-duration", ScheduledAt: classStart},
		{ID: "negative", ScheduledAt: classStart, DurationMinutes: -30},
		{ID: "no-start", DurationMinutes: 60},
	} {
		if _, err := cfg.Classify(class, classStart); !errors.Is(err, ErrInvalidSchedule) {
			t.Errorf("%s: got %v, want ErrInvalidSchedule", class.ID, err)
		}
		if _, err := cfg.EvaluateCheckIn(class, classStart); !errors.Is(err, ErrInvalidSchedule) {
			t.Errorf("%s: got %v, want ErrInvalidSchedule", class.ID, err)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	var cfg WindowConfig
	class := sixtyMinuteClass()
	now := classStart.Add(5 * time.Minute)

	first, err := cfg.Classify(class, now)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	second, err := cfg.Classify(class, now)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if first != second {
		t.Fatalf("classify not deterministic: %s then %s", first, second)
	}
	if class != sixtyMinuteClass() {
		t.Fatal("classify mutated the class")
	}
}

func TestCustomWindowConfig(t *testing.T) {
	cfg := WindowConfig{EarlyWindow: 5 * time.Minute, LateGrace: 10 * time.Minute}
	class := sixtyMinuteClass()

	w, err := cfg.WindowFor(class)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if !w.OpensAt.Equal(classStart.Add(-5 * time.Minute)) {
		t.Fatalf("opensAt = %v", w.OpensAt)
	}
	if !w.ClosesAt.Equal(classStart.Add(10 * time.Minute)) {
		t.Fatalf("closesAt = %v", w.ClosesAt)
	}
	if !w.EndsAt.Equal(classStart.Add(time.Hour)) {
		t.Fatalf("endsAt = %v", w.EndsAt)
	}
}
