package api

import (
	"net/http"
	"sync"

	"cgl-backend/internal/app"
	"cgl-backend/internal/config"
	"cgl-backend/internal/respond"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entry point. The runtime is built on the first
// invocation and reused; the database connect is deferred to the first gated
// request.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		apiRuntime, initErr = app.Build(app.Options{Config: cfg})
	})

	if initErr != nil {
		respond.Error(w, http.StatusInternalServerError, "application bootstrap failed")
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
