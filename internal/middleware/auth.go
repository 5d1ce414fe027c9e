package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/BorisDmv/portfolio-api/internal/auth"
)

// Auth rejects requests whose Authorization header the gate does not accept.
// It runs before any handler so a rejected request never reaches the store.
func Auth(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gate.Authorize(r.Header.Get("Authorization")) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
