package middleware

import (
	"net/http"
	"strings"
)

// AuthMiddleware sprawdza, czy użytkownik jest zalogowany (ma cookie 'authenticated=true').
// An empty password disables the check.
func AuthMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Kamery, logowanie i metryki bez uwierzytelnienia
			if r.URL.Path == "/auth/login" ||
				r.URL.Path == "/login" ||
				r.URL.Path == "/metrics" ||
				strings.HasPrefix(r.URL.Path, "/static/") ||
				strings.HasPrefix(r.URL.Path, "/camera") {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie("authenticated")
			if err != nil || cookie.Value != "true" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
