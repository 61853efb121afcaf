package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/grantthrive/pulse/internal/config"
	"github.com/grantthrive/pulse/internal/observability"
	"github.com/grantthrive/pulse/internal/template"
	"github.com/grantthrive/pulse/internal/tracker"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Tracker   *tracker.Tracker
	Templates *template.Registry
	Metrics   *observability.Metrics
	Ready     observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes — bypass authentication.
	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Ready))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler())
	}

	// Authenticated routes — full middleware chain.
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Config.Identity, logger))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(observability.TracingMiddleware)
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}
		r.Use(RequestLogging(logger))

		r.Post("/progress/initialize", handleInitialize(deps.Tracker))
		r.Get("/progress/templates", handleListTemplates(deps.Templates))
		r.Get("/progress/{applicationId}", handleGetProgress(deps.Tracker))
		r.Get("/progress/{applicationId}/summary", handleGetSummary(deps.Tracker))
		r.Post("/progress/{applicationId}/fields", handleUpdateField(deps.Tracker))
		r.Post("/progress/{applicationId}/advance", handleAdvanceStage(deps.Tracker))
		r.Put("/progress/{applicationId}/status", handleUpdateStatus(deps.Tracker))
		r.Post("/progress/{applicationId}/notes", handleAddNote(deps.Tracker))
		r.Post("/progress/{applicationId}/blockers", handleAddBlocker(deps.Tracker))
		r.Post("/progress/{applicationId}/blockers/{blockerId}/resolve", handleResolveBlocker(deps.Tracker))
	})

	return r
}
