package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// RouterConfig holds what NewRouter needs to assemble the HTTP surface.
type RouterConfig struct {
	Service     carcheck.Service
	Logger      *slog.Logger
	CORSOrigins []string
	MaxFileSize int64

	// Started is reported as uptime by the health endpoint.
	Started time.Time
}

// NewRouter mounts the API under /api, stored blobs under /uploads and the
// Prometheus endpoint under /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	started := cfg.Started
	if started.IsZero() {
		started = time.Now()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(Metrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusNotFound, "Route not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusMethodNotAllowed, "Method not allowed", r.Method)
	})

	files := NewFilesHandler(cfg.Service,
		WithMaxFileSize(cfg.MaxFileSize),
		WithHandlerLogger(logger),
	)
	apiRouter := files.Routes()
	apiRouter.Get("/health", Health(started))

	r.Mount("/api", apiRouter)
	r.Mount("/uploads", NewBlobHandler(cfg.Service, logger).Routes())
	r.Handle("/metrics", MetricsHandler())

	return r
}
