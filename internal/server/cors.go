package server

import (
	"net/http"
	"strconv"

	"atlas/internal/config"
)

// newCORSMiddleware answers preflight requests and stamps the configured
// CORS headers on every response.
func newCORSMiddleware(c config.CORS) func(http.Handler) http.Handler {
	origins := c.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	headers := c.AllowedHeaders
	if headers == "" {
		headers = "authorization, x-client-info, apikey, content-type"
	}
	methods := c.AllowedMethods
	if methods == "" {
		methods = "GET, POST, PATCH, PUT, DELETE, OPTIONS"
	}
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origins)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
