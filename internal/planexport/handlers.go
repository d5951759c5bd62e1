package planexport

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/plans"
	"github.com/fdg312/nutri-plans/internal/userctx"
)

// Handler serves printable plan sheets.
type Handler struct {
	plans *plans.Service
}

func NewHandler(plans *plans.Service) *Handler {
	return &Handler{plans: plans}
}

// HandleExport handles GET /v1/plans/{id}/export?format=pdf|csv
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := userctx.GetActor(r.Context())
	if !ok {
		apperr.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatPDF
	}
	if format != FormatPDF && format != FormatCSV {
		apperr.WriteError(w, http.StatusBadRequest, "invalid_request", "format must be 'pdf' or 'csv'")
		return
	}

	plan, err := h.plans.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	data, err := Render(plan, format)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	log.Printf("planexport: plan_id=%s format=%s size=%d", plan.ID, format, len(data))

	contentType := "application/pdf"
	if format == FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="plan-%s.%s"`, plan.ID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
