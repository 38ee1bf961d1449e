// Package index keeps the in-memory identity index used for nearest-neighbor
// face matching. The durable store owns the data; the index is a cache that
// is seeded at startup and updated on every successful registration.
package index

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/faceattend/faceattend/internal/identity"
)

// Index maps an identity key to its current embedding. Reads vastly outnumber
// writes (every recognition scans, only registrations insert), so a RWMutex
// guards the map: concurrent matches share the read lock, inserts take the
// write lock.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries map[string][]float32
}

// New creates an empty index for embeddings of the given dimension.
func New(dim int) *Index {
	return &Index{
		dim:     dim,
		entries: make(map[string][]float32),
	}
}

// Load seeds the index from the durable store. Identities without a stored
// embedding are skipped; they cannot be matched until re-registered.
func (ix *Index) Load(ctx context.Context, store identity.Store) error {
	idents, err := store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("loading identities: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = make(map[string][]float32, len(idents))
	for _, ident := range idents {
		if len(ident.Embedding) == 0 {
			continue
		}
		if len(ident.Embedding) != ix.dim {
			log.Printf("skipping identity %q: stored embedding has dim %d, index expects %d",
				ident.Username, len(ident.Embedding), ix.dim)
			continue
		}
		ix.entries[ident.Username] = ident.Embedding
	}

	log.Printf("loaded %d face embeddings", len(ix.entries))
	return nil
}

// Insert adds or replaces one entry. The new embedding is visible to
// queries as soon as Insert returns.
func (ix *Index) Insert(key string, embedding []float32) error {
	if len(embedding) != ix.dim {
		return fmt.Errorf("embedding has dim %d, index expects %d", len(embedding), ix.dim)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	ix.entries[key] = stored
	return nil
}

// Snapshot returns a copy of the current key->embedding mapping.
func (ix *Index) Snapshot() map[string][]float32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string][]float32, len(ix.entries))
	for k, v := range ix.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of enrolled embeddings.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// scan runs fn over every entry under the read lock.
func (ix *Index) scan(fn func(key string, embedding []float32)) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for k, v := range ix.entries {
		fn(k, v)
	}
}
