package auth

import (
	"net/http"
	"strings"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/apperr"
)

// Middleware — middleware для проверки авторизации
type Middleware struct {
	service *Service
}

func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// RequireAuth rejects requests without a valid Bearer token, except public
// paths, and stores the actor in the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		actor, err := m.authenticateHeader(r.Header.Get("Authorization"))
		if err != nil {
			apperr.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func (m *Middleware) authenticateHeader(authHeader string) (access.Actor, error) {
	if authHeader == "" {
		return access.Actor{}, ErrInvalidToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return access.Actor{}, ErrInvalidToken
	}

	return m.service.VerifyToken(strings.TrimSpace(parts[1]))
}

func isPublicPath(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/v1/auth/")
}
