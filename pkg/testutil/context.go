package testutil

import (
	"net/http"
	"time"

	"deathnote/pkg/requestcontext"
)

// WithRequestTime pins the request-scoped clock on an HTTP request, the way
// the request-time middleware would. Tests use it to make deadline
// arithmetic exact.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithRequestID attaches a request id to an HTTP request, the way the
// request-id middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
