package testutil

import (
	"net/http"
	"time"

	"amparo/pkg/requestcontext"
)

// WithRequestID adds a request ID to the request context.
// This simulates what the request-id middleware would do.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock to a fixed instant.
// Handler tests use this to make past-date checks deterministic.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}

// WithClientIP adds a client IP to the request context.
func WithClientIP(req *http.Request, ip string) *http.Request {
	ctx := requestcontext.WithClientIP(req.Context(), ip)
	return req.WithContext(ctx)
}
