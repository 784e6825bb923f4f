package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cgl-backend/internal/book"
	"cgl-backend/internal/config"
	"cgl-backend/internal/db"
	"cgl-backend/internal/ingress"
	"cgl-backend/internal/observability"
	"cgl-backend/internal/readiness"
	"cgl-backend/internal/respond"
	"cgl-backend/internal/user"
)

// Options carries the configuration plus optional overrides. Nil overrides
// fall back to the Postgres-backed implementations.
type Options struct {
	Config  *config.Config
	Release string

	Logger  *observability.Logger
	Connect readiness.ConnectFunc
	Ping    func(ctx context.Context) error
	Books   book.Store
	Users   user.Store
}

type Runtime struct {
	Handler http.Handler
	Gate    *readiness.Gate
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg := options.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}

	logger := options.Logger
	if logger == nil {
		logger = observability.NewLogger(cfg.LogLevel)
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment, options.Release); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	cors, err := ingress.NewCORSPolicy(ingress.CORSConfig{
		Origins: cfg.CORS.Origins,
		Methods: cfg.CORS.Methods,
		Headers: cfg.CORS.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("cors policy: %w", err)
	}

	metrics := observability.NewMetrics()

	provider := db.NewProvider(db.Options{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		RunMigrations:   cfg.Database.RunMigrations,
	})

	connect := options.Connect
	if connect == nil {
		connect = provider.Connect
	}
	ping := options.Ping
	if ping == nil {
		ping = provider.Ping
	}

	gate := readiness.New(connect, readiness.Options{
		Timeout: cfg.Database.ConnectTimeout,
		OnResult: func(err error, elapsed time.Duration) {
			metrics.ObserveConnect(err)
			fields := map[string]any{"duration_ms": elapsed.Milliseconds()}
			if err != nil {
				fields["error"] = err.Error()
				logger.Error("db_connect_failed", fields)
				observability.CaptureError(err, "")
				return
			}
			logger.Info("db_connected", fields)
		},
	})

	books := options.Books
	if books == nil {
		books = book.NewRepository(provider)
	}
	users := options.Users
	if users == nil {
		users = user.NewRepository(provider)
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", rootHandler(cfg.ServiceName))
	r.Get("/healthz", healthHandler(gate, ping))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware)
		r.Mount("/api/books", book.NewHandler(books, logger).Routes())
		r.Mount("/api/user", user.NewHandler(users, logger).Routes())
	})

	pipeline := ingress.NewPipeline(
		func(next http.Handler) http.Handler { return observability.RecoverMiddleware(logger, next) },
		observability.RequestIDMiddleware,
		func(next http.Handler) http.Handler {
			return observability.RequestLoggingMiddleware(logger, metrics, next)
		},
		cors.Stage,
		ingress.Preflight,
		ingress.NewBodyDecoder(cfg.Body.MaxBytes).Stage,
	)

	return &Runtime{
		Handler: pipeline.Then(r),
		Gate:    gate,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			err := provider.Close()
			_ = logger.Sync()
			return err
		},
	}, nil
}

func rootHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]any{
			"status":  "OK",
			"service": service,
			"health":  "/healthz",
			"docs":    "/api/*",
		})
	}
}

// healthHandler reports without triggering a connect.
func healthHandler(gate *readiness.Gate, ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := gate.State()
		if state != readiness.Ready {
			body := map[string]any{"ok": false, "status": state.String()}
			if err := gate.LastError(); err != nil {
				body["error"] = "database unavailable"
			}
			respond.JSON(w, http.StatusServiceUnavailable, body)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			respond.JSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":     false,
				"status": "degraded",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		respond.JSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"status": state.String(),
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
