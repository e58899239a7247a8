package testutil

import (
	"net/http"
	"time"

	"checkin/pkg/requestcontext"
)

// AtTime pins the request time that services read via requestcontext.Now.
func AtTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID sets the request ID as the metadata middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
