// Package ingress holds the cross-cutting request stages that run before
// route dispatch.
package ingress

import "net/http"

// Stage wraps the rest of the pipeline. A stage that does not call next
// ends the request there.
type Stage func(next http.Handler) http.Handler

// Pipeline is an ordered list of stages. The first stage sees the request
// first.
type Pipeline struct {
	stages []Stage
}

func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: append([]Stage(nil), stages...)}
}

// Append returns a new pipeline with stages added after the existing ones.
func (p *Pipeline) Append(stages ...Stage) *Pipeline {
	combined := make([]Stage, 0, len(p.stages)+len(stages))
	combined = append(combined, p.stages...)
	combined = append(combined, stages...)
	return &Pipeline{stages: combined}
}

// Then terminates the pipeline with h.
func (p *Pipeline) Then(h http.Handler) http.Handler {
	for i := len(p.stages) - 1; i >= 0; i-- {
		h = p.stages[i](h)
	}
	return h
}

// Preflight answers every OPTIONS request with 200 and an empty body. It must
// run after CORS so the preflight response carries the policy headers.
func Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
