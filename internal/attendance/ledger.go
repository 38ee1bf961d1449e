package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faceattend/faceattend/internal/identity"
)

// ErrNotCheckedIn is returned by MarkOut when no record exists for the
// identity on that day.
var ErrNotCheckedIn = errors.New("no attendance record for today, mark in first")

// Outcome describes what a ledger transition actually did. The already-*
// outcomes are not failures: the caller renders them as a neutral "already
// marked" notice.
type Outcome int

const (
	MarkedIn Outcome = iota
	AlreadyIn
	MarkedOut
	AlreadyOut
)

func (o Outcome) String() string {
	switch o {
	case MarkedIn:
		return "marked_in"
	case AlreadyIn:
		return "already_in"
	case MarkedOut:
		return "marked_out"
	case AlreadyOut:
		return "already_out"
	default:
		return "unknown"
	}
}

// Ledger runs the per (identity, date) state machine: no record -> checked
// in -> checked out, one record per day, out time set at most once.
//
// Transitions are linearized twice over: a keyed mutex serializes the
// check-then-act sequence inside this process, and the store's conditional
// insert/update closes the race against other processes sharing the
// database.
type Ledger struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is replaceable for tests.
	now func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

// keyLock returns the mutex for one (phone, date) pair, creating it on first
// use. Locks are never removed; the map grows by one entry per identity per
// day, which is negligible for the fleets this serves.
func (l *Ledger) keyLock(phone int64, date string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := fmt.Sprintf("%d:%s", phone, date)
	lk, ok := l.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[key] = lk
	}
	return lk
}

// MarkIn records a check-in for the identity on the given day. If a record
// already exists it is returned unchanged with the AlreadyIn outcome; a
// duplicate check-in is idempotent success, never an error and never a
// second row.
func (l *Ledger) MarkIn(ctx context.Context, ident *identity.Identity, date string) (*Record, Outcome, error) {
	lk := l.keyLock(ident.Phone, date)
	lk.Lock()
	defer lk.Unlock()

	existing, err := l.store.FindByPhoneAndDate(ctx, ident.Phone, date)
	if err != nil {
		return nil, 0, fmt.Errorf("looking up attendance: %w", err)
	}
	if existing != nil {
		return existing, AlreadyIn, nil
	}

	rec := &Record{
		ID:         uuid.NewString(),
		Username:   ident.Username,
		Name:       ident.Name,
		Phone:      ident.Phone,
		Department: ident.Department,
		Age:        ident.Age,
		College:    ident.College,
		Date:       date,
		InTime:     l.now(),
	}
	created, err := l.store.Create(ctx, rec)
	if err != nil {
		return nil, 0, fmt.Errorf("creating attendance record: %w", err)
	}
	if !created {
		// Lost the cross-process race; surface the winner's row.
		existing, err := l.store.FindByPhoneAndDate(ctx, ident.Phone, date)
		if err != nil {
			return nil, 0, fmt.Errorf("refetching attendance after conflict: %w", err)
		}
		if existing == nil {
			return nil, 0, errors.New("attendance insert conflicted but no record found")
		}
		return existing, AlreadyIn, nil
	}
	return rec, MarkedIn, nil
}

// MarkOut closes the day's record. It fails with ErrNotCheckedIn when no
// record exists, and reports AlreadyOut without mutation when the out time
// was set earlier. The out time is always >= the in time because both come
// from the same clock and the record must exist first.
func (l *Ledger) MarkOut(ctx context.Context, ident *identity.Identity, date string) (*Record, Outcome, error) {
	lk := l.keyLock(ident.Phone, date)
	lk.Lock()
	defer lk.Unlock()

	rec, err := l.store.FindByPhoneAndDate(ctx, ident.Phone, date)
	if err != nil {
		return nil, 0, fmt.Errorf("looking up attendance: %w", err)
	}
	if rec == nil {
		return nil, 0, ErrNotCheckedIn
	}
	if rec.CheckedOut() {
		return rec, AlreadyOut, nil
	}

	out := l.now()
	updated, err := l.store.SetOutTime(ctx, rec.ID, out)
	if err != nil {
		return nil, 0, fmt.Errorf("recording out time: %w", err)
	}
	if !updated {
		// Another process set it first; refetch so the caller sees the
		// recorded time, not ours.
		rec, err = l.store.FindByPhoneAndDate(ctx, ident.Phone, date)
		if err != nil {
			return nil, 0, fmt.Errorf("refetching attendance after conflict: %w", err)
		}
		if rec == nil {
			return nil, 0, errors.New("out time conflicted but no record found")
		}
		return rec, AlreadyOut, nil
	}
	rec.OutTime = &out
	return rec, MarkedOut, nil
}

// Today returns the ledger's calendar-day key for the current time.
func (l *Ledger) Today() string {
	return DateOf(l.now())
}
