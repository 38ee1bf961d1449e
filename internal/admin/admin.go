// Package admin handles administrator accounts for the reporting surface.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Admin is an administrator account. Only the bcrypt hash is ever stored.
type Admin struct {
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Phone        int64     `json:"phone"`
	College      string    `json:"college"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the durable admin storage.
type Store interface {
	// FindByUsername returns nil if no admin exists for the key.
	FindByUsername(ctx context.Context, username string) (*Admin, error)
	Save(ctx context.Context, a *Admin) error
}

// Claims is the JWT payload issued at login.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RegisterRequest carries the fields of an admin signup.
type RegisterRequest struct {
	Username        string `json:"username"`
	Name            string `json:"name"`
	Phone           int64  `json:"phone"`
	College         string `json:"college"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Service implements admin registration and login.
type Service struct {
	store      Store
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
}

// NewService creates an admin service.
func NewService(store Store, signingKey, issuer string, accessTTL time.Duration) *Service {
	return &Service{
		store:      store,
		signingKey: []byte(signingKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
	}
}

// Register creates a new admin account. The password and its confirmation
// must agree and the username must be free.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Admin, error) {
	if req.Username == "" || req.Password == "" {
		return nil, errors.New("username and password are required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	existing, err := s.store.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("checking admin username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	a := &Admin{
		Username:     req.Username,
		Name:         req.Name,
		Phone:        req.Phone,
		College:      req.College,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("saving admin: %w", err)
	}
	return a, nil
}

// Login verifies credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *Admin, error) {
	a, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("looking up admin: %w", err)
	}
	if a == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   a.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return token, a, nil
}

// Parse validates a bearer token and returns its claims.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("issuer mismatch")
	}
	return claims, nil
}
