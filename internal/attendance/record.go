// Package attendance implements the per-identity, per-day check-in/check-out
// ledger.
package attendance

import (
	"context"
	"time"
)

// Record is one identity's presence on one calendar day. The phone number is
// the join key back to the enrolled identity; name, department, age and
// college are denormalized onto the row so daily reports need no join.
type Record struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Name       string     `json:"name"`
	Phone      int64      `json:"phone"`
	Department string     `json:"department"`
	Age        int        `json:"age"`
	College    string     `json:"college"`
	Date       string     `json:"date"` // calendar day, YYYY-MM-DD
	InTime     time.Time  `json:"in_time"`
	OutTime    *time.Time `json:"out_time,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CheckedOut reports whether the record has reached its terminal state for
// the day.
func (r *Record) CheckedOut() bool {
	return r.OutTime != nil
}

// DateOf formats a timestamp as the ledger's calendar-day key.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// Store is the durable attendance storage. Create must be conditional: it
// inserts only when no record exists for (phone, date) and reports whether
// the insert happened, so two racing check-ins cannot produce two rows even
// across processes.
type Store interface {
	// FindByPhoneAndDate returns nil if no record exists.
	FindByPhoneAndDate(ctx context.Context, phone int64, date string) (*Record, error)
	// Create inserts the record if none exists for its (phone, date).
	// Returns false without error when a record was already present.
	Create(ctx context.Context, rec *Record) (bool, error)
	// SetOutTime sets the out time if it is still unset. Returns false
	// without error when the out time was already recorded.
	SetOutTime(ctx context.Context, id string, out time.Time) (bool, error)
	ListByDate(ctx context.Context, date string) ([]Record, error)
	ListByDateAndDepartment(ctx context.Context, date, department string) ([]Record, error)
}
