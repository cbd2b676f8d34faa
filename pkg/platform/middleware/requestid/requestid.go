// Package requestid assigns every request a correlation ID. Incoming
// X-Request-ID headers are honoured so upstream proxies can stitch traces
// together; otherwise a fresh UUID is generated.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"amparo/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware stores the request ID in the context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerName)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerName, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
