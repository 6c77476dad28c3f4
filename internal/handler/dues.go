package handler

import (
	"log"
	"net/http"

	"github.com/foodhunt/api/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// DuesHandler handles the student-facing dues endpoint. The settlement
// endpoints live on AdminHandler.
type DuesHandler struct {
	dues DuesServicer
}

// NewDuesHandler creates a new DuesHandler.
func NewDuesHandler(dues DuesServicer) *DuesHandler {
	return &DuesHandler{dues: dues}
}

// RegisterRoutes registers dues endpoints on the given Chi router.
func (h *DuesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dues/summary", h.Summary)
}

// Summary handles GET /dues/summary for the authenticated student.
func (h *DuesHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	summary, err := h.dues.Summary(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: dues summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, duesSummaryToResponse(summary))
}
