package web

import (
	"net/http"
	"strings"

	"github.com/meterly/subgate/adapters/auth"
)

// AuthMiddleware validates the bearer token and places the authenticated
// principal in the request context. Stateless - no session lookup.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		principal, err := h.tokens.ValidateToken(token)
		if err != nil {
			h.logger.Debug().Err(err).Msg("token validation failed")
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
