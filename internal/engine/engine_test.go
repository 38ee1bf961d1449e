package engine_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/identity"
	"github.com/faceattend/faceattend/internal/index"
	"github.com/faceattend/faceattend/internal/store/mock"
	"github.com/faceattend/faceattend/internal/vision"
)

// stubExtractor maps the image payload (as a string) to a canned embedding,
// standing in for the OpenCV pipeline.
type stubExtractor struct {
	embeddings map[string][]float32
}

func (s *stubExtractor) ExtractEmbedding(data []byte) ([]float32, []byte, error) {
	emb, ok := s.embeddings[string(data)]
	if !ok {
		return nil, nil, vision.ErrNoFaceDetected
	}
	return emb, []byte("png-crop"), nil
}

// unit3 builds a dim-3 unit vector.
func unit3(x, y, z float64) []float32 {
	n := math.Sqrt(x*x + y*y + z*z)
	return []float32{float32(x / n), float32(y / n), float32(z / n)}
}

type fixture struct {
	engine     *engine.Engine
	identities *mock.IdentityStore
	records    *mock.AttendanceStore
	index      *index.Index
}

func newFixture(embeddings map[string][]float32) *fixture {
	identities := mock.NewIdentityStore()
	records := mock.NewAttendanceStore()
	ix := index.New(3)
	matcher := index.NewMatcher(ix, 0.8)
	ledger := attendance.NewLedger(records)

	return &fixture{
		engine:     engine.New(&stubExtractor{embeddings: embeddings}, identities, ix, matcher, ledger, nil),
		identities: identities,
		records:    records,
		index:      ix,
	}
}

func TestRegisterAndRecognizeRoundTrip(t *testing.T) {
	aliceFace := unit3(1, 0, 0)
	nearAlice := unit3(0.97, 0.15, 0) // same person, slightly different shot

	f := newFixture(map[string][]float32{
		"alice.jpg":   aliceFace,
		"alice-2.jpg": nearAlice,
	})
	ctx := context.Background()

	ident, err := f.engine.Register(ctx, engine.RegisterRequest{
		Username:   "Alice",
		Name:       "Alice A",
		Phone:      5550001111,
		Department: "CSE",
		Age:        21,
		College:    "State",
		Image:      []byte("alice.jpg"),
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if ident.Username != "alice" {
		t.Errorf("username must be normalized, got %q", ident.Username)
	}
	if len(ident.FaceCrop) == 0 {
		t.Error("face crop must be stored")
	}

	res, err := f.engine.RecognizeIn(ctx, []byte("alice-2.jpg"))
	if err != nil {
		t.Fatalf("RecognizeIn failed: %v", err)
	}
	if res.Username != "alice" {
		t.Errorf("recognized %q, want alice", res.Username)
	}
	if res.Distance >= 0.8 {
		t.Errorf("round-trip distance %v must be below the threshold", res.Distance)
	}
	if res.Outcome != attendance.MarkedIn {
		t.Errorf("expected MarkedIn, got %v", res.Outcome)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(map[string][]float32{"a.jpg": unit3(1, 0, 0)})
	ctx := context.Background()

	req := engine.RegisterRequest{Username: "alice", Phone: 1, Image: []byte("a.jpg")}
	if _, err := f.engine.Register(ctx, req); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := f.engine.Register(ctx, req); !errors.Is(err, engine.ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestRegisterDuplicateKeyFromStore(t *testing.T) {
	// Two registrations racing for the same username can both pass the
	// existence check; the loser's insert hits the unique constraint and
	// must still surface as a duplicate, not a generic failure.
	f := newFixture(map[string][]float32{"a.jpg": unit3(1, 0, 0)})
	f.identities.SaveError = identity.ErrDuplicateKey

	_, err := f.engine.Register(context.Background(), engine.RegisterRequest{
		Username: "alice", Phone: 1, Image: []byte("a.jpg"),
	})
	if !errors.Is(err, engine.ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
	if f.index.Len() != 0 {
		t.Error("index must stay clean after a lost registration race")
	}
}

func TestRegisterPersistFailureKeepsIndexClean(t *testing.T) {
	f := newFixture(map[string][]float32{"a.jpg": unit3(1, 0, 0)})
	f.identities.SaveError = errors.New("disk full")

	_, err := f.engine.Register(context.Background(), engine.RegisterRequest{
		Username: "alice", Phone: 1, Image: []byte("a.jpg"),
	})
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}
	if f.index.Len() != 0 {
		t.Error("index must not contain an identity that failed to persist")
	}
}

func TestRegisterNoFace(t *testing.T) {
	f := newFixture(map[string][]float32{})

	_, err := f.engine.Register(context.Background(), engine.RegisterRequest{
		Username: "alice", Image: []byte("empty.jpg"),
	})
	if !errors.Is(err, vision.ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestRecognizeUnknownFace(t *testing.T) {
	f := newFixture(map[string][]float32{
		"alice.jpg":    unit3(1, 0, 0),
		"stranger.jpg": unit3(0, 0, 1), // distance sqrt(2) from alice
	})
	ctx := context.Background()

	if _, err := f.engine.Register(ctx, engine.RegisterRequest{
		Username: "alice", Phone: 1, Image: []byte("alice.jpg"),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.RecognizeIn(ctx, []byte("stranger.jpg"))
	var noMatch *index.NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if noMatch.BestDistance < 0.8 {
		t.Errorf("diagnostic distance %v should exceed threshold", noMatch.BestDistance)
	}
}

func TestFullDayScenario(t *testing.T) {
	// Enroll alice and bob, recognize a shot near alice, walk the ledger
	// through the whole day.
	aliceFace := unit3(1, 0, 0)
	bobFace := unit3(0, 1, 0)
	query := unit3(0.98, 0.12, 0)

	f := newFixture(map[string][]float32{
		"alice.jpg": aliceFace,
		"bob.jpg":   bobFace,
		"query.jpg": query,
	})
	ctx := context.Background()

	for _, enroll := range []struct {
		user  string
		phone int64
		img   string
	}{
		{"alice", 1, "alice.jpg"},
		{"bob", 2, "bob.jpg"},
	} {
		if _, err := f.engine.Register(ctx, engine.RegisterRequest{
			Username: enroll.user, Phone: enroll.phone, Image: []byte(enroll.img),
		}); err != nil {
			t.Fatalf("enrolling %s: %v", enroll.user, err)
		}
	}

	// First recognition checks alice in.
	res, err := f.engine.RecognizeIn(ctx, []byte("query.jpg"))
	if err != nil {
		t.Fatalf("RecognizeIn failed: %v", err)
	}
	if res.Username != "alice" {
		t.Fatalf("recognized %q, want alice", res.Username)
	}
	if res.Outcome != attendance.MarkedIn {
		t.Errorf("expected MarkedIn, got %v", res.Outcome)
	}
	if res.Record.OutTime != nil {
		t.Error("out time must be unset after check-in")
	}

	// Second same-day recognition reports already marked.
	res, err = f.engine.RecognizeIn(ctx, []byte("query.jpg"))
	if err != nil {
		t.Fatalf("second RecognizeIn failed: %v", err)
	}
	if res.Outcome != attendance.AlreadyIn {
		t.Errorf("expected AlreadyIn, got %v", res.Outcome)
	}
	if f.records.Count() != 1 {
		t.Errorf("expected one record, got %d", f.records.Count())
	}

	// Mark out, then a further recognition reports already out.
	res, err = f.engine.RecognizeOut(ctx, []byte("query.jpg"))
	if err != nil {
		t.Fatalf("RecognizeOut failed: %v", err)
	}
	if res.Outcome != attendance.MarkedOut {
		t.Errorf("expected MarkedOut, got %v", res.Outcome)
	}
	if res.Record.OutTime == nil {
		t.Fatal("out time must be set")
	}

	res, err = f.engine.RecognizeOut(ctx, []byte("query.jpg"))
	if err != nil {
		t.Fatalf("repeat RecognizeOut failed: %v", err)
	}
	if res.Outcome != attendance.AlreadyOut {
		t.Errorf("expected AlreadyOut, got %v", res.Outcome)
	}
}

func TestRecognizeOutBeforeIn(t *testing.T) {
	f := newFixture(map[string][]float32{"alice.jpg": unit3(1, 0, 0)})
	ctx := context.Background()

	if _, err := f.engine.Register(ctx, engine.RegisterRequest{
		Username: "alice", Phone: 1, Image: []byte("alice.jpg"),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.RecognizeOut(ctx, []byte("alice.jpg"))
	if !errors.Is(err, attendance.ErrNotCheckedIn) {
		t.Errorf("expected ErrNotCheckedIn, got %v", err)
	}
}
