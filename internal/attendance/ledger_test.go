package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/identity"
	"github.com/faceattend/faceattend/internal/store/mock"
)

var alice = &identity.Identity{
	Username:   "alice",
	Name:       "Alice",
	Phone:      5550001111,
	Department: "CSE",
	Age:        21,
	College:    "State",
}

func TestMarkInCreatesRecord(t *testing.T) {
	store := mock.NewAttendanceStore()
	ledger := attendance.NewLedger(store)
	ctx := context.Background()

	rec, outcome, err := ledger.MarkIn(ctx, alice, "2024-01-01")
	if err != nil {
		t.Fatalf("MarkIn failed: %v", err)
	}
	if outcome != attendance.MarkedIn {
		t.Errorf("expected MarkedIn, got %v", outcome)
	}
	if rec.InTime.IsZero() {
		t.Error("in time must be set")
	}
	if rec.OutTime != nil {
		t.Error("out time must be unset on check-in")
	}
	if rec.Username != "alice" || rec.Phone != alice.Phone || rec.Date != "2024-01-01" {
		t.Errorf("record fields wrong: %+v", rec)
	}
}

func TestMarkInIdempotent(t *testing.T) {
	store := mock.NewAttendanceStore()
	ledger := attendance.NewLedger(store)
	ctx := context.Background()

	first, _, err := ledger.MarkIn(ctx, alice, "2024-01-01")
	if err != nil {
		t.Fatalf("first MarkIn failed: %v", err)
	}
	second, outcome, err := ledger.MarkIn(ctx, alice, "2024-01-01")
	if err != nil {
		t.Fatalf("second MarkIn must not error: %v", err)
	}
	if outcome != attendance.AlreadyIn {
		t.Errorf("expected AlreadyIn, got %v", outcome)
	}
	if second.ID != first.ID {
		t.Error("second call must return the existing record")
	}
	if store.Count() != 1 {
		t.Errorf("expected exactly one stored record, got %d", store.Count())
	}
}

func TestMarkInNewDayNewRecord(t *testing.T) {
	store := mock.NewAttendanceStore()
	ledger := attendance.NewLedger(store)
	ctx := context.Background()

	if _, _, err := ledger.MarkIn(ctx, alice, "2024-01-01"); err != nil {
		t.Fatal(err)
	}
	rec, outcome, err := ledger.MarkIn(ctx, alice, "2024-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != attendance.MarkedIn {
		t.Errorf("new day must create a fresh record, got %v", outcome)
	}
	if rec.Date != "2024-01-02" {
		t.Errorf("unexpected date %q", rec.Date)
	}
	if store.Count() != 2 {
		t.Errorf("expected two records, got %d", store.Count())
	}
}

func TestMarkOutBeforeMarkIn(t *testing.T) {
	ledger := attendance.NewLedger(mock.NewAttendanceStore())

	_, _, err := ledger.MarkOut(context.Background(), alice, "2024-01-01")
	if !errors.Is(err, attendance.ErrNotCheckedIn) {
		t.Errorf("expected ErrNotCheckedIn, got %v", err)
	}
}

func TestMarkOutFullDay(t *testing.T) {
	store := mock.NewAttendanceStore()
	ledger := attendance.NewLedger(store)
	ctx := context.Background()

	in, _, err := ledger.MarkIn(ctx, alice, "2024-01-01")
	if err != nil {
		t.Fatal(err)
	}

	out, outcome, err := ledger.MarkOut(ctx, alice, "2024-01-01")
	if err != nil {
		t.Fatalf("MarkOut failed: %v", err)
	}
	if outcome != attendance.MarkedOut {
		t.Errorf("expected MarkedOut, got %v", outcome)
	}
	if out.OutTime == nil {
		t.Fatal("out time must be set")
	}
	if out.OutTime.Before(in.InTime) {
		t.Error("out time must not precede in time")
	}

	// A second mark-out reports already-out and keeps the original time.
	firstOut := *out.OutTime
	time.Sleep(time.Millisecond)
	again, outcome, err := ledger.MarkOut(ctx, alice, "2024-01-01")
	if err != nil {
		t.Fatalf("repeat MarkOut must not error: %v", err)
	}
	if outcome != attendance.AlreadyOut {
		t.Errorf("expected AlreadyOut, got %v", outcome)
	}
	if !again.OutTime.Equal(firstOut) {
		t.Error("out time must be set only once")
	}
}

func TestMarkInConcurrent(t *testing.T) {
	store := mock.NewAttendanceStore()
	ledger := attendance.NewLedger(store)
	ctx := context.Background()

	const n = 16
	outcomes := make([]attendance.Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, outcome, err := ledger.MarkIn(ctx, alice, "2024-01-01")
			if err != nil {
				t.Errorf("concurrent MarkIn failed: %v", err)
				return
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == attendance.MarkedIn {
			created++
		}
	}
	if created != 1 {
		t.Errorf("expected exactly one MarkedIn outcome, got %d", created)
	}
	if store.Count() != 1 {
		t.Errorf("expected exactly one stored record, got %d", store.Count())
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome attendance.Outcome
		want    string
	}{
		{attendance.MarkedIn, "marked_in"},
		{attendance.AlreadyIn, "already_in"},
		{attendance.MarkedOut, "marked_out"},
		{attendance.AlreadyOut, "already_out"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("Outcome.String() = %q, want %q", got, tt.want)
		}
	}
}

// vanishingStore serves a record for the initial lookup, refuses the out-time
// write, and then reports the record gone, as if another client deleted the
// row mid-checkout.
type vanishingStore struct {
	rec   *attendance.Record
	finds int
}

func (s *vanishingStore) FindByPhoneAndDate(ctx context.Context, phone int64, date string) (*attendance.Record, error) {
	s.finds++
	if s.finds == 1 {
		return s.rec, nil
	}
	return nil, nil
}

func (s *vanishingStore) Create(ctx context.Context, rec *attendance.Record) (bool, error) {
	return false, nil
}

func (s *vanishingStore) SetOutTime(ctx context.Context, id string, out time.Time) (bool, error) {
	return false, nil
}

func (s *vanishingStore) ListByDate(ctx context.Context, date string) ([]attendance.Record, error) {
	return nil, nil
}

func (s *vanishingStore) ListByDateAndDepartment(ctx context.Context, date, department string) ([]attendance.Record, error) {
	return nil, nil
}

func TestMarkOutRecordDeletedDuringConflict(t *testing.T) {
	store := &vanishingStore{
		rec: &attendance.Record{
			ID:     "rec-1",
			Phone:  alice.Phone,
			Date:   "2024-01-01",
			InTime: time.Now(),
		},
	}
	ledger := attendance.NewLedger(store)

	rec, _, err := ledger.MarkOut(context.Background(), alice, "2024-01-01")
	if err == nil {
		t.Fatal("expected an error when the record disappears mid-checkout")
	}
	if rec != nil {
		t.Errorf("no record must be returned on failure, got %+v", rec)
	}
}
