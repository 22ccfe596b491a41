package http

import "net/http"

// CORS returns middleware that allows browser calls from the listed origins.
// "*" allows any origin but never with credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			wildcard, explicit := false, false
			for _, o := range allowedOrigins {
				switch o {
				case "*":
					wildcard = true
				case origin:
					explicit = true
				}
			}

			if origin != "" && (wildcard || explicit) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
