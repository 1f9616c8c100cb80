package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth guards the bargaining API with a shared key, presented either as
// "Authorization: Bearer <key>" or in the X-Vyapar-Api-Key header. An empty
// configured key disables the check, which is the local-development default.
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := apiToken(r)
			if presented == "" {
				denyUnauthorized(w, "missing api key")
				return
			}

			// subtle keeps the comparison constant-time.
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				denyUnauthorized(w, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// apiToken pulls the caller's key from the Bearer scheme or the project
// header.
func apiToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, rest, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Vyapar-Api-Key"))
}

func denyUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
