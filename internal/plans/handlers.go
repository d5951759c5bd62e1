package plans

import (
	"encoding/json"
	"net/http"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/userctx"
)

// Handler handles HTTP requests for plans.
type Handler struct {
	service *Service
}

// NewHandler creates a new plans handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleCreate handles POST /v1/plans
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	plan, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, plan)
}

// HandleList handles GET /v1/plans?search=&status=&patient_id=&page=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	filter, err := ParseListFilter(r.URL.Query())
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	resp, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, resp)
}

// HandlePatientInfo handles GET /v1/plans/patient-info
func (h *Handler) HandlePatientInfo(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	info, err := h.service.PatientInfo(r.Context(), actor)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, info)
}

// HandleGet handles GET /v1/plans/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	plan, err := h.service.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, plan)
}

// HandleUpdate handles PATCH /v1/plans/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	plan, err := h.service.Update(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, plan)
}

// HandleDelete handles DELETE /v1/plans/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), actor, r.PathValue("id")); err != nil {
		apperr.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireActor(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	actor, ok := userctx.GetActor(r.Context())
	if !ok {
		apperr.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return access.Actor{}, false
	}
	return actor, true
}
