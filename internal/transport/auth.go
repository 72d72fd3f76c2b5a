package transport

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// RequireBearer wraps next so only requests carrying the configured bearer
// token get through. Token comparison is constant time.
func RequireBearer(token string, log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			log.Warn("request without authorization header", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeAuthError(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			log.Warn("malformed authorization header", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeAuthError(w, "authorization header must be of form: Bearer <token>")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			log.Warn("rejected invalid token", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeAuthError(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
