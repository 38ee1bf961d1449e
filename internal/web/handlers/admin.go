package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/faceattend/faceattend/internal/admin"
)

// AdminHandler serves admin signup and login.
type AdminHandler struct {
	service *admin.Service
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc *admin.Service) *AdminHandler {
	return &AdminHandler{service: svc}
}

// Register handles POST /api/admin/register.
func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req admin.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	account, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrPasswordMismatch):
			respondError(w, http.StatusBadRequest, "passwords do not match")
		case errors.Is(err, admin.ErrUsernameTaken):
			respondError(w, http.StatusBadRequest, "username already exists")
		default:
			log.Printf("Admin registration failed for %s: %v", sanitizeForLog(req.Username), err)
			respondError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// loginRequest is the login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the issued bearer token.
type loginResponse struct {
	Token string       `json:"token"`
	Admin *admin.Admin `json:"admin"`
}

// Login handles POST /api/admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	token, account, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, admin.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("Admin login failed for %s: %v", sanitizeForLog(req.Username), err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{Token: token, Admin: account})
}
