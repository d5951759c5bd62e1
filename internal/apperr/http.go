package apperr

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Status maps an error to its HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteError writes an error response in the standard format.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// Write maps a service error to a response. Internal errors are logged and
// replaced with a generic message.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR %s %s: %v", r.Method, r.URL.Path, err)
		WriteError(w, status, code, "Internal server error")
		return
	}
	WriteError(w, status, code, Message(err))
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
