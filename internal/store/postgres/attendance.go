package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/identity"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage. The
// UNIQUE (phone, date) constraint is what makes the conditional insert safe
// across processes.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = "id, username, name, phone, department, age, college, to_char(date, 'YYYY-MM-DD'), in_time, out_time, created_at"

// FindByPhoneAndDate retrieves the record for one identity on one day.
// Returns nil when no record exists.
func (r *AttendanceRepository) FindByPhoneAndDate(ctx context.Context, phone int64, date string) (*attendance.Record, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE phone = $1 AND date = $2"

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, phone, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query attendance record: %w", err)
	}
	return rec, nil
}

// Create inserts the record if none exists for its (phone, date). Reports
// whether the insert happened; a racing check-in that loses the conflict
// gets false without error.
func (r *AttendanceRepository) Create(ctx context.Context, rec *attendance.Record) (bool, error) {
	query := `
		INSERT INTO attendance (id, username, name, phone, department, age, college, date, in_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (phone, date) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Username,
		rec.Name,
		rec.Phone,
		rec.Department,
		rec.Age,
		rec.College,
		rec.Date,
		rec.InTime,
		rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert attendance record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance record: %w", err)
	}
	return affected == 1, nil
}

// SetOutTime records the checkout time if it is still unset. Reports whether
// the update happened.
func (r *AttendanceRepository) SetOutTime(ctx context.Context, id string, out time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx,
		"UPDATE attendance SET out_time = $2 WHERE id = $1 AND out_time IS NULL", id, out)
	if err != nil {
		return false, fmt.Errorf("update out time: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update out time: %w", err)
	}
	return affected == 1, nil
}

// ListByDate retrieves all records for one calendar day.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date string) ([]attendance.Record, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE date = $1 ORDER BY in_time"

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query attendance by date: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByDateAndDepartment retrieves one day's records filtered by department.
// Both sides of the comparison are unaccented, lowercased, and trimmed so
// "Génie" and "genie" report the same rows.
func (r *AttendanceRepository) ListByDateAndDepartment(ctx context.Context, date, department string) ([]attendance.Record, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE date = $1 AND LOWER(unaccent(TRIM(department))) = $2 ORDER BY in_time"

	rows, err := r.pool.Query(ctx, query, date, identity.NormalizeKey(department))
	if err != nil {
		return nil, fmt.Errorf("query attendance by department: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecord(scanner interface{ Scan(...any) error }) (*attendance.Record, error) {
	var rec attendance.Record
	var outTime sql.NullTime

	err := scanner.Scan(
		&rec.ID,
		&rec.Username,
		&rec.Name,
		&rec.Phone,
		&rec.Department,
		&rec.Age,
		&rec.College,
		&rec.Date,
		&rec.InTime,
		&outTime,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if outTime.Valid {
		t := outTime.Time
		rec.OutTime = &t
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]attendance.Record, error) {
	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// Verify interface compliance.
var _ attendance.Store = (*AttendanceRepository)(nil)
