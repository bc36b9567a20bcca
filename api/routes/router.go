package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scraplinehq/scrapline-backend/api/controllers"
	"github.com/scraplinehq/scrapline-backend/api/middleware"
	"github.com/scraplinehq/scrapline-backend/internal/assignments"
	"github.com/scraplinehq/scrapline-backend/internal/workqueue"
	"github.com/scraplinehq/scrapline-backend/pkg/cache"
	"github.com/scraplinehq/scrapline-backend/pkg/config"
	"github.com/scraplinehq/scrapline-backend/pkg/db"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	idempotencyStore cache.IdempotencyStore,
	cachePinger cache.Pinger,
	registry *prometheus.Registry,
	workQueueService workqueue.Service,
	assignmentService assignments.Service,
	timelineLister controllers.TimelineLister,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	if !cfg.App.IsProd() {
		r.Post("/api/v1/auth/token", controllers.MintDevToken(cfg.JWT, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/collector", func(r chi.Router) {
			r.Use(middleware.RequireActorKind(enums.ActorKindCollector, logg))
			r.Route("/work-orders", func(r chi.Router) {
				r.Get("/", controllers.ListWorkOrders(workQueueService, logg))
				r.Get("/{orderId}", controllers.GetWorkOrder(workQueueService, logg))
				r.Patch("/{orderId}/status", controllers.UpdateWorkOrderStatus(workQueueService, logg))
			})
			r.Get("/stats", controllers.CollectorStats(workQueueService, logg))
			r.Get("/assignments", controllers.ListCollectorAssignments(assignmentService, logg))
		})

		r.Get("/crew/assignments", controllers.ListCrewAssignments(assignmentService, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/timeline", controllers.OrderTimeline(timelineLister, logg))
			r.Route("/assignments/{assignmentId}", func(r chi.Router) {
				r.Post("/start", controllers.StartAssignment(assignmentService, logg))
				r.Post("/complete", controllers.CompleteAssignment(assignmentService, logg))
			})
		})
	})

	return r
}
