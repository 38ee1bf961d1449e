package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/faceattend/faceattend/internal/admin"
)

// AdminRepository provides PostgreSQL-backed admin account storage.
type AdminRepository struct {
	pool *Pool
}

// NewAdminRepository creates a new PostgreSQL admin repository.
func NewAdminRepository(pool *Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// FindByUsername retrieves an admin account. Returns nil when none exists.
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*admin.Admin, error) {
	query := "SELECT username, name, phone, college, password_hash, created_at FROM admins WHERE username = $1"

	var a admin.Admin
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&a.Username,
		&a.Name,
		&a.Phone,
		&a.College,
		&a.PasswordHash,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query admin: %w", err)
	}
	return &a, nil
}

// Save persists a new admin account.
func (r *AdminRepository) Save(ctx context.Context, a *admin.Admin) error {
	query := `
		INSERT INTO admins (username, name, phone, college, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, a.Username, a.Name, a.Phone, a.College, a.PasswordHash, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ admin.Store = (*AdminRepository)(nil)
