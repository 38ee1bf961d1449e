// Package identity holds the enrolled-person model shared by the matching
// engine, the stores, and the web layer.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrDuplicateKey is returned by Store.Save when an identity with the same
// username already exists. Concurrent registrations race past the engine's
// existence check; the store's uniqueness constraint is the arbiter.
var ErrDuplicateKey = errors.New("identity key already exists")

// Identity represents one enrolled person. The username is the stable key;
// it never changes after enrollment. Embedding is the L2-normalized face
// vector produced at registration time. FaceCrop keeps the detected face as
// PNG bytes for auditing only; it is never used for matching.
type Identity struct {
	Username        string    `json:"username"`
	Name            string    `json:"name"`
	Phone           int64     `json:"phone"`
	Department      string    `json:"department"`
	College         string    `json:"college"`
	CollegeUsername string    `json:"college_username,omitempty"`
	Age             int       `json:"age"`
	Embedding       []float32 `json:"-"`
	FaceCrop        []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store is the durable identity storage the engine depends on. The in-memory
// index is seeded from FindAll at startup; Save must persist the embedding
// before the index is updated.
type Store interface {
	// FindByUsername returns nil if no identity exists for the key.
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	// Save reports ErrDuplicateKey when the username is already taken.
	Save(ctx context.Context, ident *Identity) error
	FindAll(ctx context.Context) ([]Identity, error)
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeKey normalizes a username or department for comparison
// (lowercase, no diacritics, trimmed). Usernames are normalized once at
// registration so kiosk input casing cannot create near-duplicate keys.
func NormalizeKey(s string) string {
	s = RemoveDiacritics(s)
	s = strings.ToLower(s)
	return strings.TrimSpace(s)
}
