package attendance

import (
	"errors"
	"time"
)

// Default check-in window bounds around the scheduled start.
const (
	DefaultEarlyWindow = 15 * time.Minute
	DefaultLateGrace   = 30 * time.Minute
)

var (
	// ErrWindowClosed means a self check-in was attempted outside the
	// check-in window. Never downgraded to a silent default status.
	ErrWindowClosed = errors.New("attendance: check-in window closed")

	// ErrInvalidSchedule means the class has no usable schedule (bad upstream
	// data).
	ErrInvalidSchedule = errors.New("attendance: invalid schedule")
)

// Status is the attendance classification of a student for a class.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused:
		return true
	}
	return false
}

// Who recorded an attendance entry.
const (
	MarkedBySelf  = "self"
	MarkedByStaff = "staff"
)

// Phase classifies "now" relative to a class's schedule.
type Phase string

const (
	PhaseBeforeWindow Phase = "before_window"
	PhaseCheckInOpen  Phase = "check_in_open"
	PhaseInProgress   Phase = "in_progress_no_checkin"
	PhaseEnded        Phase = "ended"
)

// ScheduledClass is a class occurrence as supplied by the course catalog.
type ScheduledClass struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	Title           string    `json:"title"`
	TeacherID       string    `json:"teacher_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// EndsAt is the class's planned end time.
func (c ScheduledClass) EndsAt() time.Time {
	return c.ScheduledAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// Window is the derived check-in window for one class. ClosesAt is a fixed
// grace after the scheduled start, independent of the class duration: a short
// class can have a window outlasting it and a long one loses check-in well
// before it ends. That asymmetry is intended product behavior.
type Window struct {
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// WindowConfig holds the check-in window bounds.
type WindowConfig struct {
	EarlyWindow time.Duration
	LateGrace   time.Duration
}

func (cfg WindowConfig) withDefaults() WindowConfig {
	if cfg.EarlyWindow <= 0 {
		cfg.EarlyWindow = DefaultEarlyWindow
	}
	if cfg.LateGrace <= 0 {
		cfg.LateGrace = DefaultLateGrace
	}
	return cfg
}

// WindowFor computes the check-in window boundaries for a class.
func (cfg WindowConfig) WindowFor(class ScheduledClass) (Window, error) {
	if class.ScheduledAt.IsZero() || class.DurationMinutes <= 0 {
		return Window{}, ErrInvalidSchedule
	}
	cfg = cfg.withDefaults()
	return Window{
		OpensAt:  class.ScheduledAt.Add(-cfg.EarlyWindow),
		ClosesAt: class.ScheduledAt.Add(cfg.LateGrace),
		EndsAt:   class.EndsAt(),
	}, nil
}

// Classify reports the phase of now relative to the class schedule. The
// check-in window is inclusive on both ends and takes precedence when the
// grace period extends past a short class's end.
func (cfg WindowConfig) Classify(class ScheduledClass, now time.Time) (Phase, error) {
	w, err := cfg.WindowFor(class)
	if err != nil {
		return "", err
	}
	switch {
	case now.Before(w.OpensAt):
		return PhaseBeforeWindow, nil
	case !now.After(w.ClosesAt):
		return PhaseCheckInOpen, nil
	case !now.After(w.EndsAt):
		return PhaseInProgress, nil
	default:
		return PhaseEnded, nil
	}
}

// CanCheckIn reports whether a self check-in is currently accepted.
func (cfg WindowConfig) CanCheckIn(class ScheduledClass, now time.Time) (bool, error) {
	phase, err := cfg.Classify(class, now)
	if err != nil {
		return false, err
	}
	return phase == PhaseCheckInOpen, nil
}

// EvaluateCheckIn classifies a self check-in performed at now: present up to
// the scheduled start, late through the grace period, ErrWindowClosed
// otherwise.
func (cfg WindowConfig) EvaluateCheckIn(class ScheduledClass, now time.Time) (Status, error) {
	phase, err := cfg.Classify(class, now)
	if err != nil {
		return "", err
	}
	if phase != PhaseCheckInOpen {
		return "", ErrWindowClosed
	}
	if !now.After(class.ScheduledAt) {
		return StatusPresent, nil
	}
	return StatusLate, nil
}
