package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/faceattend/faceattend/internal/identity"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

const uniqueViolationCode = "23505"

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = "username, name, phone, department, college, college_username, age, embedding, face_image, created_at"

// FindByUsername retrieves an identity by its key. Returns nil when no
// identity exists.
func (r *IdentityRepository) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	query := "SELECT " + identityColumns + " FROM identities WHERE username = $1"

	ident, err := scanIdentity(r.pool.QueryRow(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return ident, nil
}

// Save persists a new identity. A unique constraint violation on the
// username or phone maps to identity.ErrDuplicateKey.
func (r *IdentityRepository) Save(ctx context.Context, ident *identity.Identity) error {
	query := `
		INSERT INTO identities (username, name, phone, department, college, college_username, age, embedding, face_image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9, $10)
	`

	var faceImage any
	if len(ident.FaceCrop) > 0 {
		faceImage = ident.FaceCrop
	}

	_, err := r.pool.Exec(ctx, query,
		ident.Username,
		ident.Name,
		ident.Phone,
		ident.Department,
		ident.College,
		ident.CollegeUsername,
		ident.Age,
		pgvector.NewVector(ident.Embedding),
		faceImage,
		ident.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%w: %s", identity.ErrDuplicateKey, ident.Username)
	}
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// FindAll retrieves every enrolled identity. Used to seed the in-memory
// index at startup and by the registered-users listing.
func (r *IdentityRepository) FindAll(ctx context.Context) ([]identity.Identity, error) {
	query := "SELECT " + identityColumns + " FROM identities ORDER BY username"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var idents []identity.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		idents = append(idents, *ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return idents, nil
}

func scanIdentity(scanner interface{ Scan(...any) error }) (*identity.Identity, error) {
	var ident identity.Identity
	var vec pgvector.Vector
	var faceImage []byte

	err := scanner.Scan(
		&ident.Username,
		&ident.Name,
		&ident.Phone,
		&ident.Department,
		&ident.College,
		&ident.CollegeUsername,
		&ident.Age,
		&vec,
		&faceImage,
		&ident.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ident.Embedding = vec.Slice()
	ident.FaceCrop = faceImage
	return &ident, nil
}

// Verify interface compliance.
var _ identity.Store = (*IdentityRepository)(nil)
