// Package mock provides in-memory implementations of the store interfaces
// for testing.
package mock

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/faceattend/faceattend/internal/admin"
	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/identity"
)

// IdentityStore is a mock implementation of identity.Store.
type IdentityStore struct {
	mu         sync.RWMutex
	identities map[string]identity.Identity

	// Error injection
	FindError    error
	SaveError    error
	FindAllError error
}

// NewIdentityStore creates an empty mock identity store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{identities: make(map[string]identity.Identity)}
}

// FindByUsername returns the identity or nil.
func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	if s.FindError != nil {
		return nil, s.FindError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[username]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

// Save stores the identity keyed by username.
func (s *IdentityStore) Save(ctx context.Context, ident *identity.Identity) error {
	if s.SaveError != nil {
		return s.SaveError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[ident.Username] = *ident
	return nil
}

// FindAll returns all identities ordered by username.
func (s *IdentityStore) FindAll(ctx context.Context) ([]identity.Identity, error) {
	if s.FindAllError != nil {
		return nil, s.FindAllError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identity.Identity, 0, len(s.identities))
	for _, ident := range s.identities {
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Len returns the number of stored identities.
func (s *IdentityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

// AttendanceStore is a mock implementation of attendance.Store.
type AttendanceStore struct {
	mu      sync.Mutex
	records map[string]*attendance.Record // keyed by phone:date

	// Error injection
	FindError   error
	CreateError error
	UpdateError error
	ListError   error
}

// NewAttendanceStore creates an empty mock attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[string]*attendance.Record)}
}

func attendanceKey(phone int64, date string) string {
	return date + ":" + strconv.FormatInt(phone, 10)
}

// FindByPhoneAndDate returns a copy of the record or nil.
func (s *AttendanceStore) FindByPhoneAndDate(ctx context.Context, phone int64, date string) (*attendance.Record, error) {
	if s.FindError != nil {
		return nil, s.FindError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[attendanceKey(phone, date)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Create inserts the record unless one exists for (phone, date).
func (s *AttendanceStore) Create(ctx context.Context, rec *attendance.Record) (bool, error) {
	if s.CreateError != nil {
		return false, s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey(rec.Phone, rec.Date)
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	cp := *rec
	cp.CreatedAt = time.Now()
	s.records[key] = &cp
	return true, nil
}

// SetOutTime sets the out time once.
func (s *AttendanceStore) SetOutTime(ctx context.Context, id string, out time.Time) (bool, error) {
	if s.UpdateError != nil {
		return false, s.UpdateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID == id {
			if rec.OutTime != nil {
				return false, nil
			}
			t := out
			rec.OutTime = &t
			return true, nil
		}
	}
	return false, nil
}

// ListByDate returns all records for a day.
func (s *AttendanceStore) ListByDate(ctx context.Context, date string) ([]attendance.Record, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []attendance.Record
	for _, rec := range s.records {
		if rec.Date == date {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

// ListByDateAndDepartment filters ListByDate by normalized department.
func (s *AttendanceStore) ListByDateAndDepartment(ctx context.Context, date, department string) ([]attendance.Record, error) {
	recs, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	want := identity.NormalizeKey(department)
	var out []attendance.Record
	for _, rec := range recs {
		if identity.NormalizeKey(rec.Department) == want {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *AttendanceStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// AdminStore is a mock implementation of admin.Store.
type AdminStore struct {
	mu     sync.RWMutex
	admins map[string]admin.Admin

	// Error injection
	FindError error
	SaveError error
}

// NewAdminStore creates an empty mock admin store.
func NewAdminStore() *AdminStore {
	return &AdminStore{admins: make(map[string]admin.Admin)}
}

// FindByUsername returns the admin or nil.
func (s *AdminStore) FindByUsername(ctx context.Context, username string) (*admin.Admin, error) {
	if s.FindError != nil {
		return nil, s.FindError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[username]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Save stores the admin keyed by username.
func (s *AdminStore) Save(ctx context.Context, a *admin.Admin) error {
	if s.SaveError != nil {
		return s.SaveError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[a.Username] = *a
	return nil
}
