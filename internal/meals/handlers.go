package meals

import (
	"encoding/json"
	"net/http"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/userctx"
)

// Handler handles HTTP requests for single meals.
type Handler struct {
	service *Service
}

// NewHandler creates a new meals handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleSelectRecipe handles POST /v1/plans/meals/{mealId}/select-recipe
func (h *Handler) HandleSelectRecipe(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SelectRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	meal, err := h.service.SelectRecipe(r.Context(), actor, r.PathValue("mealId"), req)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, meal)
}

// HandleAssignRecipe handles POST /v1/plans/meals/{mealId}/assign-recipe
func (h *Handler) HandleAssignRecipe(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SelectRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	meal, err := h.service.AssignRecipe(r.Context(), actor, r.PathValue("mealId"), req)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, meal)
}

// HandleRemoveRecipe handles DELETE /v1/plans/meals/{mealId}/recipe
func (h *Handler) HandleRemoveRecipe(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	meal, err := h.service.RemoveRecipe(r.Context(), actor, r.PathValue("mealId"))
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, meal)
}

// HandleCustomMeal handles POST /v1/plans/meals/{mealId}/custom-meal
func (h *Handler) HandleCustomMeal(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CustomMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	meal, err := h.service.AddCustomMeal(r.Context(), actor, r.PathValue("mealId"), req)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, meal)
}

// HandleComplete handles POST /v1/plans/meals/{mealId}/complete
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	meal, err := h.service.CompleteMeal(r.Context(), actor, r.PathValue("mealId"))
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, meal)
}

// HandleAvailableRecipes handles GET /v1/plans/meals/{mealId}/available-recipes?search=&tags=&difficulty=
func (h *Handler) HandleAvailableRecipes(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	filter, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	items, err := h.service.AvailableRecipes(r.Context(), actor, r.PathValue("mealId"), filter)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, catalog.ListRecipesResponse{Items: items})
}

func requireActor(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	actor, ok := userctx.GetActor(r.Context())
	if !ok {
		apperr.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return access.Actor{}, false
	}
	return actor, true
}
