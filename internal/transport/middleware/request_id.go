package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/pkg/ctxutil"
)

// RequestID propagates the inbound X-Request-Id or mints a new one, and a
// trace id the recommendation pipeline threads through its metadata.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := ctxutil.WithRequestID(r.Context(), id)

		trace := r.Header.Get("X-Trace-Id")
		if trace == "" {
			trace = uuid.New().String()
		}
		ctx = ctxutil.WithTraceID(ctx, trace)

		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
