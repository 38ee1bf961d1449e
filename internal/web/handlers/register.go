package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/vision"
)

// RegisterHandler handles identity enrollment.
type RegisterHandler struct {
	engine      FaceEngine
	maxUpload   int64
	maxImageDim int
}

// NewRegisterHandler creates a new enrollment handler.
func NewRegisterHandler(eng FaceEngine, maxUpload int64, maxImageDim int) *RegisterHandler {
	return &RegisterHandler{engine: eng, maxUpload: maxUpload, maxImageDim: maxImageDim}
}

// readImageFile reads the uploaded image from a multipart form field.
func readImageFile(r *http.Request, field string, maxUpload int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, maxUpload))
}

// Register handles POST /api/register. Expects a multipart form with the
// enrollment fields and an "image" file.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	username := r.FormValue("username")
	if username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	phone, err := strconv.ParseInt(r.FormValue("phone"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "phone must be numeric")
		return
	}

	age, _ := strconv.Atoi(r.FormValue("age"))

	// Oversized camera uploads are downscaled before detection.
	image = vision.ResizeToLimit(image, h.maxImageDim)

	req := engine.RegisterRequest{
		Username:        username,
		Name:            r.FormValue("name"),
		Phone:           phone,
		Department:      r.FormValue("department"),
		College:         r.FormValue("college"),
		CollegeUsername: r.FormValue("college_username"),
		Age:             age,
		Image:           image,
	}

	ident, err := h.engine.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrDuplicateUsername):
			respondError(w, http.StatusBadRequest, "username already registered")
		case errors.Is(err, vision.ErrImageDecode):
			respondError(w, http.StatusBadRequest, "could not decode image")
		case errors.Is(err, vision.ErrNoFaceDetected):
			respondError(w, http.StatusBadRequest, "no face detected in image")
		default:
			log.Printf("Registration failed for %s: %v", sanitizeForLog(username), err)
			respondError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, ident)
}
