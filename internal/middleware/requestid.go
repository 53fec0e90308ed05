package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avaform/internal/observability"
)

// RequestID returns a middleware that propagates or assigns an
// X-Request-ID and exposes it to request-scoped loggers.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator returns a middleware that uses a custom ID generator.
func RequestIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if requestID == "" {
				requestID = generator()
				r.Header.Set(HeaderXRequestID, requestID)
			}

			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			w.Header().Set(HeaderXRequestID, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
