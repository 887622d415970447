// Package middleware provides HTTP middleware for the chat API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const preflightMaxAge = 10 * time.Minute

// CORSHeaders lists the request headers browsers may send cross-origin.
var CORSHeaders = []string{"Content-Type", "Accept", "X-Session-ID"}

// CORS returns middleware that handles CORS headers for allowedOrigins.
// "*" matches any origin but never grants credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowHeaders := strings.Join(CORSHeaders, ", ")
	maxAge := strconv.Itoa(int(preflightMaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			wildcard, explicit := matchOrigin(allowedOrigins, origin)
			w.Header().Add("Vary", "Origin")
			if wildcard || explicit {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				// session cookies only for explicitly listed origins
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowedOrigins []string, origin string) (wildcard, explicit bool) {
	for _, o := range allowedOrigins {
		switch {
		case o == origin:
			explicit = true
		case o == "*":
			wildcard = true
		}
	}
	return wildcard, explicit
}
