package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fdg312/nutri-plans/internal/apperr"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleDevAuth handles POST /v1/auth/dev
func (h *Handlers) HandleDevAuth(w http.ResponseWriter, r *http.Request) {
	var req DevAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON body")
		return
	}

	resp, err := h.service.SignInDev(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			msg := strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": ")
			apperr.WriteError(w, http.StatusBadRequest, "invalid_request", msg)
			return
		}
		apperr.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to issue token")
		return
	}

	apperr.WriteJSON(w, http.StatusOK, resp)
}
