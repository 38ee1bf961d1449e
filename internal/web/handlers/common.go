// Package handlers implements the HTTP endpoints for enrollment,
// recognition, and reporting.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/identity"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// FaceEngine is what the recognition endpoints need from the matching
// engine.
type FaceEngine interface {
	Register(ctx context.Context, req engine.RegisterRequest) (*identity.Identity, error)
	RecognizeIn(ctx context.Context, image []byte) (*engine.RecognitionResult, error)
	RecognizeOut(ctx context.Context, image []byte) (*engine.RecognitionResult, error)
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
