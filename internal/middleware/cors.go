package middleware

import "net/http"

// AllowAnyOrigin stamps Access-Control-Allow-Origin: * on every response,
// including requests that carry no Origin header.
func AllowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
