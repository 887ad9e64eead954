package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oficinahub/oficina-backend/api/controllers"
	"github.com/oficinahub/oficina-backend/api/middleware"
	"github.com/oficinahub/oficina-backend/internal/quotes"
	"github.com/oficinahub/oficina-backend/internal/serviceorders"
	"github.com/oficinahub/oficina-backend/pkg/config"
	"github.com/oficinahub/oficina-backend/pkg/db"
	"github.com/oficinahub/oficina-backend/pkg/enums"
	"github.com/oficinahub/oficina-backend/pkg/logger"
	"github.com/oficinahub/oficina-backend/pkg/metrics"
	"github.com/oficinahub/oficina-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	quoteService quotes.Service,
	orderRepo serviceorders.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Metrics(httpMetrics),
	)

	staffRoles := middleware.RequireRole(logg,
		enums.MemberRoleManager.String(),
		enums.MemberRoleStaff.String(),
	)
	mechanicOnly := middleware.RequireRole(logg, enums.MemberRoleMechanic.String())
	managerOnly := middleware.RequireRole(logg, enums.MemberRoleManager.String())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbClient, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Customer-facing link channel. No bearer auth; the signed token in
	// the request carries the authorization.
	r.Route("/api/public/quotes", func(r chi.Router) {
		r.Get("/view", controllers.ViewPublicQuote(quoteService, logg))
		r.Post("/view/approve", controllers.ApprovePublicQuote(quoteService, logg))
		r.Post("/view/reject", controllers.RejectPublicQuote(quoteService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(redisClient, logg),
		)

		r.Route("/quotes", func(r chi.Router) {
			r.Get("/", controllers.ListQuotes(quoteService, logg))
			r.With(staffRoles).Post("/", controllers.CreateQuote(quoteService, logg))

			r.Route("/{quoteId}", func(r chi.Router) {
				r.Get("/", controllers.GetQuote(quoteService, logg))
				r.Patch("/", controllers.UpdateQuote(quoteService, logg))

				r.With(staffRoles).Post("/submit", controllers.SubmitQuote(quoteService, logg))
				r.With(mechanicOnly).Post("/claim", controllers.ClaimQuote(quoteService, logg))
				r.With(managerOnly).Post("/assign", controllers.AssignQuote(quoteService, logg))
				r.With(mechanicOnly).Post("/diagnose", controllers.DiagnoseQuote(quoteService, logg))
				r.With(staffRoles).Post("/send", controllers.SendQuote(quoteService, logg))
				r.With(staffRoles).Post("/convert", controllers.ConvertQuote(quoteService, logg))
			})
		})

		r.Route("/service-orders", func(r chi.Router) {
			r.Get("/{orderId}", controllers.GetServiceOrder(orderRepo, logg))
		})
	})

	return r
}
