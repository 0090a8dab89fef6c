// Package authmw authenticates admin requests and extracts ingestion API
// keys.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// APIKeyHeader carries the ingestion key on POST /api/feedback.
const APIKeyHeader = "X-API-Key"

const bearerPrefix = "Bearer "

// BearerToken returns middleware that requires an Authorization header of
// the form "Bearer <token>". Comparison is constant-time.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, bearerPrefix) {
				reject(w, r, "missing or malformed authorization header")
				return
			}

			got := []byte(auth[len(bearerPrefix):])
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				reject(w, r, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// APIKey returns the trimmed ingestion key from the request, or "".
func APIKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

func reject(w http.ResponseWriter, r *http.Request, msg string) {
	log.FromContext(r.Context()).Warn(r.Context(), "admin request rejected",
		"reason", msg,
		"path", r.URL.Path,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
