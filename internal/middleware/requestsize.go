package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize is the default maximum request body size
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects declared bodies over maxBytes and caps reads of the rest.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "Request body is too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
