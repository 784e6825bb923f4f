package readiness

import (
	"net/http"

	"cgl-backend/internal/respond"
)

// Middleware holds each request until the gate is ready. Requests are
// rejected with 503 when the connect attempt fails.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.EnsureReady(r.Context()); err != nil {
			w.Header().Set("Retry-After", "1")
			respond.Fail(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
