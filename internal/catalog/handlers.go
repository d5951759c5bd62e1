package catalog

import (
	"net/http"

	"github.com/fdg312/nutri-plans/internal/apperr"
)

// Handler handles HTTP requests for the recipe catalog.
type Handler struct {
	service *Service
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleAvailable handles GET /v1/recipes/available?search=&tags=&difficulty=&limit=
func (h *Handler) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	items, err := h.service.SearchActiveRecipes(r.Context(), filter)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, ListRecipesResponse{Items: items})
}
