package middleware

import (
	"mime"
	"net/http"
)

// ContentType requires a JSON Content-Type on POST, PUT and PATCH requests
// that carry a body. Bodyless requests such as logout pass through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			header := r.Header.Get("Content-Type")
			if header == "" {
				writeError(w, r, http.StatusBadRequest, "missing_content_type", "Content-Type header is required")
				return
			}
			mediaType, _, err := mime.ParseMediaType(header)
			if err != nil || mediaType != "application/json" {
				writeError(w, r, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
