package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classroom/internal/clock"
)

// ErrClassNotFound means no schedule is known locally or upstream.
var ErrClassNotFound = errors.New("attendance: class not found")

// Store is the persistence surface the service needs.
type Store interface {
	GetClass(ctx context.Context, id string) (*ScheduledClass, error)
	SaveClass(ctx context.Context, class ScheduledClass) error
	FindRecord(ctx context.Context, classID, studentID string) (*Record, error)
	UpsertRecord(ctx context.Context, rec Record) (Record, error)
	ListRecords(ctx context.Context, classID, studentID string, limit, offset int) ([]Record, error)
}

// Catalog fetches schedules from the upstream course service when a class is
// not in the local table.
type Catalog interface {
	FetchClass(ctx context.Context, id string) (*ScheduledClass, error)
}

// WindowStatus is what the UI needs to render the check-in control for a
// class at a given moment.
type WindowStatus struct {
	Class      ScheduledClass `json:"class"`
	Window     Window         `json:"window"`
	Phase      Phase          `json:"phase"`
	CanCheckIn bool           `json:"can_check_in"`
	Now        time.Time      `json:"now"`
}

// Service coordinates window evaluation and attendance writes.
type Service struct {
	store   Store
	catalog Catalog // may be nil
	win     WindowConfig
	clk     clock.Clock
}

// NewService creates a service. catalog is optional; without it unknown
// classes are simply not found.
func NewService(store Store, catalog Catalog, win WindowConfig, clk clock.Clock) *Service {
	return &Service{store: store, catalog: catalog, win: win, clk: clk}
}

func (s *Service) lookupClass(ctx context.Context, id string) (ScheduledClass, error) {
	class, err := s.store.GetClass(ctx, id)
	if err != nil {
		return ScheduledClass{}, err
	}
	if class != nil {
		return *class, nil
	}
	if s.catalog == nil {
		return ScheduledClass{}, ErrClassNotFound
	}
	fetched, err := s.catalog.FetchClass(ctx, id)
	if err != nil {
		return ScheduledClass{}, fmt.Errorf("attendance: catalog fetch: %w", err)
	}
	if fetched == nil {
		return ScheduledClass{}, ErrClassNotFound
	}
	if err := s.store.SaveClass(ctx, *fetched); err != nil {
		return ScheduledClass{}, err
	}
	return *fetched, nil
}

// ClassWindow reports the class's current phase and whether check-in is open.
func (s *Service) ClassWindow(ctx context.Context, classID string) (WindowStatus, error) {
	class, err := s.lookupClass(ctx, classID)
	if err != nil {
		return WindowStatus{}, err
	}
	now := s.clk.Now()
	w, err := s.win.WindowFor(class)
	if err != nil {
		return WindowStatus{}, err
	}
	phase, err := s.win.Classify(class, now)
	if err != nil {
		return WindowStatus{}, err
	}
	return WindowStatus{
		Class:      class,
		Window:     w,
		Phase:      phase,
		CanCheckIn: phase == PhaseCheckInOpen,
		Now:        now,
	}, nil
}

// SelfCheckIn records a student's own check-in, classified present or late by
// the window evaluator. Repeated check-ins return the existing record.
func (s *Service) SelfCheckIn(ctx context.Context, classID, studentID string) (Record, error) {
	if classID == "" || studentID == "" {
		return Record{}, errors.New("class and student required")
	}
	class, err := s.lookupClass(ctx, classID)
	if err != nil {
		return Record{}, err
	}
	if existing, err := s.store.FindRecord(ctx, classID, studentID); err != nil {
		return Record{}, err
	} else if existing != nil {
		return *existing, nil
	}

	now := s.clk.Now()
	status, err := s.win.EvaluateCheckIn(class, now)
	if err != nil {
		return Record{}, err
	}
	return s.store.UpsertRecord(ctx, Record{
		ClassID:   classID,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  MarkedBySelf,
		When:      now,
		State:     StatePending,
	})
}

// Mark records an attendance status on behalf of staff. No window restriction
// applies, and it overrides an earlier self check-in.
func (s *Service) Mark(ctx context.Context, classID, studentID string, status Status, markerID string) (Record, error) {
	if classID == "" || studentID == "" {
		return Record{}, errors.New("class and student required")
	}
	if !status.Valid() {
		return Record{}, fmt.Errorf("attendance: unknown status %q", status)
	}
	if _, err := s.lookupClass(ctx, classID); err != nil {
		return Record{}, err
	}
	rec := Record{
		ClassID:   classID,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  MarkedByStaff,
		When:      s.clk.Now(),
		State:     StatePending,
	}
	if markerID != "" {
		rec.MarkerID = &markerID
	}
	return s.store.UpsertRecord(ctx, rec)
}

// Roll lists the attendance records for a class.
func (s *Service) Roll(ctx context.Context, classID string) ([]Record, error) {
	return s.store.ListRecords(ctx, classID, "", 0, 0)
}
