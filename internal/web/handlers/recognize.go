package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/index"
	"github.com/faceattend/faceattend/internal/vision"
)

// RecognizeHandler handles the kiosk check-in and check-out endpoints.
type RecognizeHandler struct {
	engine      FaceEngine
	maxUpload   int64
	maxImageDim int
}

// NewRecognizeHandler creates a new recognition handler.
func NewRecognizeHandler(eng FaceEngine, maxUpload int64, maxImageDim int) *RecognizeHandler {
	return &RecognizeHandler{engine: eng, maxUpload: maxUpload, maxImageDim: maxImageDim}
}

// RecognitionResponse is the kiosk-facing result of a recognition.
type RecognitionResponse struct {
	Username string             `json:"username"`
	Distance float64            `json:"distance"`
	Message  string             `json:"message"`
	Record   *attendance.Record `json:"record"`
}

// RecognizeIn handles POST /api/recognize.
func (h *RecognizeHandler) RecognizeIn(w http.ResponseWriter, r *http.Request) {
	h.recognize(w, r, h.engine.RecognizeIn)
}

// RecognizeOut handles POST /api/recognizeout.
func (h *RecognizeHandler) RecognizeOut(w http.ResponseWriter, r *http.Request) {
	h.recognize(w, r, h.engine.RecognizeOut)
}

func (h *RecognizeHandler) recognize(
	w http.ResponseWriter, r *http.Request,
	fn func(context.Context, []byte) (*engine.RecognitionResult, error),
) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	image, err := readImageFile(r, "image", h.maxUpload)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}

	// Oversized camera uploads are downscaled before detection.
	image = vision.ResizeToLimit(image, h.maxImageDim)

	result, err := fn(r.Context(), image)
	if err != nil {
		var noMatch *index.NoMatchError
		switch {
		case errors.Is(err, vision.ErrImageDecode):
			respondError(w, http.StatusBadRequest, "could not decode image")
		case errors.Is(err, vision.ErrNoFaceDetected):
			respondError(w, http.StatusBadRequest, "no face detected in image")
		case errors.As(err, &noMatch):
			respondError(w, http.StatusBadRequest, "face not recognized")
		case errors.Is(err, attendance.ErrNotCheckedIn):
			respondError(w, http.StatusBadRequest, "not checked in today")
		default:
			log.Printf("Recognition failed: %v", err)
			respondError(w, http.StatusInternalServerError, "recognition failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, RecognitionResponse{
		Username: result.Username,
		Distance: result.Distance,
		Message:  outcomeMessage(result),
		Record:   result.Record,
	})
}

// outcomeMessage renders the ledger transition for the kiosk display.
func outcomeMessage(result *engine.RecognitionResult) string {
	switch result.Outcome {
	case attendance.MarkedIn:
		return fmt.Sprintf("Welcome, %s. Attendance marked.", result.Record.Name)
	case attendance.AlreadyIn:
		return fmt.Sprintf("%s, your attendance is already marked for today.", result.Record.Name)
	case attendance.MarkedOut:
		return fmt.Sprintf("Goodbye, %s. Checkout recorded.", result.Record.Name)
	case attendance.AlreadyOut:
		return fmt.Sprintf("%s, you already checked out today.", result.Record.Name)
	default:
		return "Attendance updated."
	}
}
