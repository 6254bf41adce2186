package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/roadline/roadline/internal/billing"
	"github.com/roadline/roadline/internal/estimates"
	"github.com/roadline/roadline/internal/insurance"
	"github.com/roadline/roadline/internal/observability"
	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/towing"
	"github.com/roadline/roadline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	OrdersHandler    *orders.Handler
	EstimatesHandler *estimates.Handler
	TowingHandler    *towing.Handler
	InsuranceHandler *insurance.Handler
	BillingHandler   *billing.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Authenticated API surface. The edge proxy attaches the actor headers.
	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)
		params.OrdersHandler.MountRoutes(r)
		params.EstimatesHandler.MountRoutes(r)
		params.TowingHandler.MountRoutes(r)
		params.InsuranceHandler.MountRoutes(r)
		params.BillingHandler.MountRoutes(r)
	})

	// Provider callbacks are unauthenticated; give them their own, tighter
	// rate bucket keyed by source IP.
	webhookRPM := 300
	if params.Config != nil && params.Config.WebhookRateRPM > 0 {
		webhookRPM = params.Config.WebhookRateRPM
	}
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(webhookRPM, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.BillingHandler.MountWebhook(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
