// Package engine orchestrates the registration and recognition workflows:
// image in, enrolled identity or attendance transition out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/identity"
	"github.com/faceattend/faceattend/internal/index"
	"github.com/faceattend/faceattend/internal/metrics"
)

var (
	// ErrDuplicateUsername rejects re-registration of an existing key.
	ErrDuplicateUsername = errors.New("username already registered")

	// ErrIdentityNotFound means the matcher returned a key with no backing
	// identity row; the index and the store have diverged.
	ErrIdentityNotFound = errors.New("matched identity not found in store")
)

// Extractor produces a unit embedding and an audit face crop from raw image
// bytes. The vision pipeline implements it; tests substitute a stub.
type Extractor interface {
	ExtractEmbedding(data []byte) (embedding []float32, faceCrop []byte, err error)
}

// RegisterRequest carries the enrollment fields plus the captured image.
type RegisterRequest struct {
	Username        string
	Name            string
	Phone           int64
	Department      string
	College         string
	CollegeUsername string
	Age             int
	Image           []byte
}

// RecognitionResult reports a successful recognition and the ledger
// transition it caused.
type RecognitionResult struct {
	Username string
	Distance float64
	Record   *attendance.Record
	Outcome  attendance.Outcome
}

// Engine wires the vision pipeline, the identity index, and the attendance
// ledger together. All state is injected; the engine itself is stateless and
// safe for concurrent use.
type Engine struct {
	extractor  Extractor
	identities identity.Store
	index      *index.Index
	matcher    *index.Matcher
	ledger     *attendance.Ledger
	metrics    *metrics.Metrics
}

// New creates an engine. The index must already be seeded by the caller.
func New(
	extractor Extractor,
	identities identity.Store,
	ix *index.Index,
	matcher *index.Matcher,
	ledger *attendance.Ledger,
	m *metrics.Metrics,
) *Engine {
	return &Engine{
		extractor:  extractor,
		identities: identities,
		index:      ix,
		matcher:    matcher,
		ledger:     ledger,
		metrics:    m,
	}
}

// Register enrolls a new identity: locate and embed the face, reject
// duplicate usernames, persist, then publish to the index. The index insert
// happens strictly after the durable save so a persistence failure never
// leaves a matchable identity that does not exist in the store.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*identity.Identity, error) {
	username := identity.NormalizeKey(req.Username)
	if username == "" {
		return nil, errors.New("username is required")
	}

	embedding, crop, err := e.extractor.ExtractEmbedding(req.Image)
	if err != nil {
		return nil, err
	}

	existing, err := e.identities.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}

	ident := &identity.Identity{
		Username:        username,
		Name:            req.Name,
		Phone:           req.Phone,
		Department:      req.Department,
		College:         req.College,
		CollegeUsername: req.CollegeUsername,
		Age:             req.Age,
		Embedding:       embedding,
		FaceCrop:        crop,
		CreatedAt:       time.Now(),
	}
	if err := e.identities.Save(ctx, ident); err != nil {
		// A concurrent registration can win the race between the existence
		// check and the insert; the store reports it as a duplicate key.
		if errors.Is(err, identity.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
		}
		return nil, fmt.Errorf("persisting identity: %w", err)
	}
	if err := e.index.Insert(username, embedding); err != nil {
		// The durable write already succeeded; the index will pick the
		// entry up on the next restart. Surface the inconsistency anyway.
		return nil, fmt.Errorf("updating index: %w", err)
	}

	e.metrics.RegistrationRecorded()
	log.Printf("registered identity %q (%d enrolled)", username, e.index.Len())
	return ident, nil
}

// RecognizeIn identifies the face and marks a check-in for today.
func (e *Engine) RecognizeIn(ctx context.Context, image []byte) (*RecognitionResult, error) {
	return e.recognize(ctx, image, metrics.DirectionIn)
}

// RecognizeOut identifies the face and marks a check-out for today.
func (e *Engine) RecognizeOut(ctx context.Context, image []byte) (*RecognitionResult, error) {
	return e.recognize(ctx, image, metrics.DirectionOut)
}

func (e *Engine) recognize(ctx context.Context, image []byte, direction string) (*RecognitionResult, error) {
	embedding, _, err := e.extractor.ExtractEmbedding(image)
	if err != nil {
		e.metrics.RecognitionRecorded(direction, "extract_failed")
		return nil, err
	}

	username, distance, err := e.matcher.Match(embedding)
	e.metrics.MatchDistanceObserved(distance)
	if err != nil {
		e.metrics.RecognitionRecorded(direction, "no_match")
		return nil, err
	}

	ident, err := e.identities.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("loading identity %q: %w", username, err)
	}
	if ident == nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, username)
	}

	date := e.ledger.Today()
	var (
		rec     *attendance.Record
		outcome attendance.Outcome
	)
	if direction == metrics.DirectionIn {
		rec, outcome, err = e.ledger.MarkIn(ctx, ident, date)
	} else {
		rec, outcome, err = e.ledger.MarkOut(ctx, ident, date)
	}
	if err != nil {
		e.metrics.RecognitionRecorded(direction, "ledger_failed")
		return nil, err
	}

	e.metrics.RecognitionRecorded(direction, outcome.String())
	return &RecognitionResult{
		Username: username,
		Distance: distance,
		Record:   rec,
		Outcome:  outcome,
	}, nil
}
