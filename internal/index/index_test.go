package index

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/faceattend/faceattend/internal/identity"
)

type stubStore struct {
	identities []identity.Identity
	err        error
}

func (s *stubStore) FindByUsername(ctx context.Context, username string) (*identity.Identity, error) {
	for i := range s.identities {
		if s.identities[i].Username == username {
			return &s.identities[i], nil
		}
	}
	return nil, nil
}

func (s *stubStore) Save(ctx context.Context, ident *identity.Identity) error { return nil }

func (s *stubStore) FindAll(ctx context.Context) ([]identity.Identity, error) {
	return s.identities, s.err
}

// unitVec builds a dim-3 unit vector for test fixtures.
func unitVec(x, y, z float64) []float32 {
	n := math.Sqrt(x*x + y*y + z*z)
	return []float32{float32(x / n), float32(y / n), float32(z / n)}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"unit apart", []float32{0, 0, 0}, []float32{1, 0, 0}, 1},
		{"pythagorean", []float32{0, 0, 0}, []float32{3, 4, 0}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EuclideanDistance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EuclideanDistance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEuclideanDistanceMismatched(t *testing.T) {
	if d := EuclideanDistance([]float32{1, 2}, []float32{1, 2, 3}); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for mismatched dims, got %v", d)
	}
	if d := EuclideanDistance(nil, nil); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for empty vectors, got %v", d)
	}
}

func TestIndexLoadSkipsMissingEmbeddings(t *testing.T) {
	store := &stubStore{identities: []identity.Identity{
		{Username: "alice", Embedding: []float32{1, 0, 0}},
		{Username: "bob"}, // no embedding: must be skipped
		{Username: "carol", Embedding: []float32{0, 1}}, // wrong dim: skipped
	}}

	ix := New(3)
	if err := ix.Load(context.Background(), store); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", ix.Len())
	}
}

func TestIndexLoadPropagatesStoreError(t *testing.T) {
	store := &stubStore{err: errors.New("db down")}
	ix := New(3)
	if err := ix.Load(context.Background(), store); err == nil {
		t.Error("expected error from failing store")
	}
}

func TestInsertVisibleImmediately(t *testing.T) {
	ix := New(3)
	m := NewMatcher(ix, 0.8)

	if _, _, err := m.Match([]float32{1, 0, 0}); err == nil {
		t.Fatal("expected no match on empty index")
	}

	if err := ix.Insert("alice", []float32{1, 0, 0}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	key, dist, err := m.Match([]float32{1, 0, 0})
	if err != nil {
		t.Fatalf("Match failed after insert: %v", err)
	}
	if key != "alice" || dist != 0 {
		t.Errorf("got key=%q dist=%v, want alice at distance 0", key, dist)
	}
}

func TestInsertRejectsWrongDim(t *testing.T) {
	ix := New(3)
	if err := ix.Insert("alice", []float32{1, 0}); err == nil {
		t.Error("expected error for wrong embedding dimension")
	}
}

func TestInsertCopiesEmbedding(t *testing.T) {
	ix := New(3)
	emb := []float32{1, 0, 0}
	if err := ix.Insert("alice", emb); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	emb[0] = 0 // caller mutation must not reach the index

	snap := ix.Snapshot()
	if snap["alice"][0] != 1 {
		t.Error("index entry aliased the caller's slice")
	}
}

func TestMatchNearestWins(t *testing.T) {
	// Concrete scenario: query at distance 0.3 from alice, 1.2 from bob.
	ix := New(3)
	alice := unitVec(1, 0, 0)
	bob := unitVec(0, 1, 0)
	if err := ix.Insert("alice", alice); err != nil {
		t.Fatal(err)
	}
	if err := ix.Insert("bob", bob); err != nil {
		t.Fatal(err)
	}

	// Construct a query near alice.
	query := []float32{0.9887, 0.15, 0}
	dAlice := EuclideanDistance(query, alice)
	dBob := EuclideanDistance(query, bob)
	if dAlice >= 0.8 || dBob <= 0.8 {
		t.Fatalf("fixture broken: dAlice=%v dBob=%v", dAlice, dBob)
	}

	m := NewMatcher(ix, 0.8)
	key, dist, err := m.Match(query)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if key != "alice" {
		t.Errorf("expected alice, got %q", key)
	}
	if math.Abs(dist-dAlice) > 1e-9 {
		t.Errorf("reported distance %v, want %v", dist, dAlice)
	}
}

func TestMatchThresholdIsStrict(t *testing.T) {
	ix := New(3)
	if err := ix.Insert("alice", []float32{0, 0, 0}); err != nil {
		t.Fatal(err)
	}

	// Distance to the stored vector is exactly 0.8: must be rejected.
	m := NewMatcher(ix, 0.8)
	_, dist, err := m.Match([]float32{0.8, 0, 0})
	if err == nil {
		t.Fatal("distance equal to threshold must not match")
	}
	if math.Abs(dist-0.8) > 1e-6 {
		t.Errorf("best distance %v, want 0.8", dist)
	}

	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %T", err)
	}
	if math.Abs(noMatch.BestDistance-0.8) > 1e-6 {
		t.Errorf("NoMatchError distance %v, want 0.8", noMatch.BestDistance)
	}

	// Just inside the threshold matches.
	if _, _, err := m.Match([]float32{0.79, 0, 0}); err != nil {
		t.Errorf("distance below threshold should match: %v", err)
	}
}

func TestMatchUnknownFace(t *testing.T) {
	ix := New(3)
	if err := ix.Insert("alice", unitVec(1, 0, 0)); err != nil {
		t.Fatal(err)
	}

	m := NewMatcher(ix, 0.8)
	_, _, err := m.Match(unitVec(0, 0, 1)) // distance sqrt(2) from alice
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if noMatch.BestDistance < 0.8 {
		t.Errorf("best distance %v should exceed threshold", noMatch.BestDistance)
	}
}

func TestConcurrentInsertAndMatch(t *testing.T) {
	ix := New(3)
	m := NewMatcher(ix, 2.0)
	if err := ix.Insert("seed", unitVec(1, 0, 0)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if n%2 == 0 {
					_ = ix.Insert("seed", unitVec(1, 0, 0))
				} else if _, _, err := m.Match(unitVec(1, 0, 0)); err != nil {
					t.Errorf("match failed during concurrent inserts: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()
}
