package auth

import (
	"log/slog"
	"net/http"

	"github.com/datadict/datadict/pkg/api"
)

// Middleware returns HTTP middleware that requires a valid bearer token and
// stores the resulting Identity in the request context. Rejection messages
// stay generic unless debug is set.
func Middleware(verifier *Verifier, logger *slog.Logger, debug bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				api.WriteError(w, api.Unauthenticated("not authenticated"), debug)
				return
			}
			id, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected bearer token", "error", err)
				message := "invalid or expired session"
				if debug {
					message = err.Error()
				}
				api.WriteError(w, api.Unauthenticated(message), debug)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
