package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"classroom/internal/clock"
)

type fakeStore struct {
	classes map[string]ScheduledClass
	records map[string]Record
	saves   int
}

func newFakeStore(classes ...ScheduledClass) *fakeStore {
	s := &fakeStore{classes: map[string]ScheduledClass{}, records: map[string]Record{}}
	for _, c := range classes {
		s.classes[c.ID] = c
	}
	return s
}

func recKey(classID, studentID string) string { return classID + "|" + studentID }

func (s *fakeStore) GetClass(_ context.Context, id string) (*ScheduledClass, error) {
	c, ok := s.classes[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *fakeStore) SaveClass(_ context.Context, class ScheduledClass) error {
	s.classes[class.ID] = class
	return nil
}

func (s *fakeStore) FindRecord(_ context.Context, classID, studentID string) (*Record, error) {
	rec, ok := s.records[recKey(classID, studentID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeStore) UpsertRecord(_ context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = recKey(rec.ClassID, rec.StudentID)
	}
	rec.CreatedAt = rec.When
	s.records[recKey(rec.ClassID, rec.StudentID)] = rec
	s.saves++
	return rec, nil
}

func (s *fakeStore) ListRecords(_ context.Context, classID, studentID string, _, _ int) ([]Record, error) {
	var out []Record
	for _, rec := range s.records {
		if classID != "" && rec.ClassID != classID {
			continue
		}
		if studentID != "" && rec.StudentID != studentID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type fakeCatalog struct {
	classes map[string]ScheduledClass
	calls   int
}

func (c *fakeCatalog) FetchClass(_ context.Context, id string) (*ScheduledClass, error) {
	c.calls++
	cls, ok := c.classes[id]
	if !ok {
		return nil, nil
	}
	return &cls, nil
}

func newTestService(now time.Time, classes ...ScheduledClass) (*Service, *fakeStore, *clock.Manual) {
	store := newFakeStore(classes...)
	clk := clock.NewManual(now)
	return NewService(store, nil, WindowConfig{}, clk), store, clk
}

func TestSelfCheckInClassifiesStatus(t *testing.T) {
	ctx := context.Background()
	class := sixtyMinuteClass()

	t.Run("on time", func(t *testing.T) {
		svc, _, _ := newTestService(classStart.Add(-5*time.Minute), class)
		rec, err := svc.SelfCheckIn(ctx, class.ID, "stu-1")
		if err != nil {
			t.Fatalf("check-in: %v", err)
		}
		if rec.Status != StatusPresent || rec.MarkedBy != MarkedBySelf || rec.State != StatePending {
			t.Fatalf("record = %+v, want pending self present", rec)
		}
	})

	t.Run("late", func(t *testing.T) {
		svc, _, _ := newTestService(classStart.Add(10*time.Minute), class)
		rec, err := svc.SelfCheckIn(ctx, class.ID, "stu-1")
		if err != nil {
			t.Fatalf("check-in: %v", err)
		}
		if rec.Status != StatusLate {
			t.Fatalf("status = %s, want late", rec.Status)
		}
	})
}

func TestSelfCheckInOutsideWindow(t *testing.T) {
	ctx := context.Background()
	class := sixtyMinuteClass()
	svc, store, _ := newTestService(classStart.Add(45*time.Minute), class)

	if _, err := svc.SelfCheckIn(ctx, class.ID, "stu-1"); !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("check-in past grace: got %v, want ErrWindowClosed", err)
	}
	if store.saves != 0 {
		t.Fatal("a record was stored despite the closed window")
	}
}

func TestSelfCheckInIsIdempotent(t *testing.T) {
	ctx := context.Background()
	class := sixtyMinuteClass()
	svc, store, clk := newTestService(classStart, class)

	first, err := svc.SelfCheckIn(ctx, class.ID, "stu-1")
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	clk.Advance(5 * time.Minute)
	second, err := svc.SelfCheckIn(ctx, class.ID, "stu-1")
	if err != nil {
		t.Fatalf("second check-in: %v", err)
	}
	if second.Status != first.Status || !second.When.Equal(first.When) {
		t.Fatalf("second check-in replaced the record: %+v vs %+v", second, first)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
}

func TestSelfCheckInUnknownClass(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(classStart)
	if _, err := svc.SelfCheckIn(ctx, "nope", "stu-1"); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("got %v, want ErrClassNotFound", err)
	}
}

func TestCatalogFallbackCachesClass(t *testing.T) {
	ctx := context.Background()
	class := sixtyMinuteClass()
	store := newFakeStore()
	catalog := &fakeCatalog{classes: map[string]ScheduledClass{class.ID: class}}
	svc := NewService(store, catalog, WindowConfig{}, clock.NewManual(classStart))

	ws, err := svc.ClassWindow(ctx, class.ID)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if ws.Phase != PhaseCheckInOpen || !ws.CanCheckIn {
		t.Fatalf("window status = %+v, want open", ws)
	}
	if _, ok := store.classes[class.ID]; !ok {
		t.Fatal("fetched class not cached locally")
	}
	if _, err := svc.ClassWindow(ctx, class.ID); err != nil {
		t.Fatalf("second window: %v", err)
	}
	if catalog.calls != 1 {
		t.Fatalf("catalog calls = %d, want 1", catalog.calls)
	}
}

func TestMarkOverridesSelfCheckIn(t *testing.T) {
	ctx := context.Background()
	class := sixtyMinuteClass()
	svc, store, clk := newTestService(classStart, class)

	if _, err := svc.SelfCheckIn(ctx, class.ID, "stu-1"); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	// The teacher corrects the record an hour later, well outside the window.
	clk.Advance(time.Hour)
	rec, err := svc.Mark(ctx, class.ID, "stu-1", StatusExcused, "tch-1")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if rec.Status != StatusExcused || rec.MarkedBy != MarkedByStaff {
		t.Fatalf("record = %+v, want staff excused", rec)
	}
	if rec.MarkerID == nil || *rec.MarkerID != "tch-1" {
		t.Fatalf("markerID = %v, want tch-1", rec.MarkerID)
	}
	stored := store.records[recKey(class.ID, "stu-1")]
	if stored.Status != StatusExcused {
		t.Fatalf("stored status = %s, want excused", stored.Status)
	}
}

func TestMarkRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	class := sixtyMinuteClass()
	svc, _, _ := newTestService(classStart, class)

	if _, err := svc.Mark(ctx, class.ID, "stu-1", Status("asleep"), "tch-1"); err == nil {
		t.Fatal("unknown status accepted")
	}
}
