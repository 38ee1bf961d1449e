package handlers

import (
	"log"
	"net/http"

	"github.com/faceattend/faceattend/internal/identity"
)

// UsersHandler lists enrolled identities.
type UsersHandler struct {
	identities identity.Store
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(store identity.Store) *UsersHandler {
	return &UsersHandler{identities: store}
}

// List handles GET /api/registered-users. Embeddings and face crops are
// excluded from the JSON encoding of the identity.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	idents, err := h.identities.FindAll(r.Context())
	if err != nil {
		log.Printf("Listing registered users failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	if idents == nil {
		idents = []identity.Identity{}
	}
	respondJSON(w, http.StatusOK, idents)
}
