package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mgallardo/edustack-backend/api/controllers"
	enforcementcontrollers "github.com/mgallardo/edustack-backend/api/controllers/enforcement"
	entitlementcontrollers "github.com/mgallardo/edustack-backend/api/controllers/entitlements"
	plancontrollers "github.com/mgallardo/edustack-backend/api/controllers/plans"
	subscriptioncontrollers "github.com/mgallardo/edustack-backend/api/controllers/subscriptions"
	usagecontrollers "github.com/mgallardo/edustack-backend/api/controllers/usage"
	"github.com/mgallardo/edustack-backend/api/middleware"
	"github.com/mgallardo/edustack-backend/pkg/config"
	"github.com/mgallardo/edustack-backend/pkg/db"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config              *config.Config
	Logger              *logger.Logger
	DB                  db.Pinger
	Redis               redis.Pinger
	PromGatherer        prometheus.Gatherer
	PlanService         plancontrollers.PlanService
	SubscriptionService subscriptioncontrollers.SubscriptionService
	EntitlementService  entitlementcontrollers.EntitlementService
	UsageService        usagecontrollers.UsageService
	EnforcementService  enforcementcontrollers.EnforcementService
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	if params.PromGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.PromGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", plancontrollers.CatalogList(params.PlanService, logg))
			r.Get("/{planCode}", plancontrollers.CatalogDetail(params.PlanService, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/bootstrap", subscriptioncontrollers.Bootstrap(params.SubscriptionService, logg))
			r.Get("/active", subscriptioncontrollers.Active(params.SubscriptionService, logg))
			r.Get("/", subscriptioncontrollers.List(params.SubscriptionService, logg))
			r.Post("/assign", subscriptioncontrollers.AssignPlan(params.SubscriptionService, logg))
			r.Post("/{subscriptionId}/cancel", subscriptioncontrollers.Cancel(params.SubscriptionService, logg))
		})

		r.Route("/users/{userId}/entitlements", func(r chi.Router) {
			r.Get("/", entitlementcontrollers.ResolveUser(params.EntitlementService, logg))
			r.Get("/scope", entitlementcontrollers.GetForScope(params.EntitlementService, logg))
			r.Post("/refresh", entitlementcontrollers.ForceRefresh(params.EntitlementService, logg))
		})
		r.Get("/entitlements", entitlementcontrollers.ResolveScope(params.EntitlementService, logg))

		r.Route("/usage", func(r chi.Router) {
			r.Post("/events", usagecontrollers.Record(params.UsageService, logg))
			r.Get("/events", usagecontrollers.List(params.UsageService, logg))
			r.Get("/sum", usagecontrollers.Sum(params.UsageService, logg))
		})

		r.Route("/enforcement", func(r chi.Router) {
			r.Post("/limits/check", enforcementcontrollers.CheckLimit(params.EnforcementService, logg))
			r.Post("/limits/enforce", enforcementcontrollers.EnforceLimit(params.EnforcementService, logg))
			r.Post("/features/check", enforcementcontrollers.RequireFeature(params.EnforcementService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", plancontrollers.AdminList(params.PlanService, logg))
			r.Post("/", plancontrollers.AdminCreate(params.PlanService, logg))
			r.Patch("/{planId}", plancontrollers.AdminUpdate(params.PlanService, logg))
			r.Delete("/{planId}", plancontrollers.AdminDeactivate(params.PlanService, logg))
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/", entitlementcontrollers.AdminGetOverride(params.EntitlementService, logg))
			r.Put("/", entitlementcontrollers.AdminSetOverride(params.EntitlementService, logg))
			r.Delete("/", entitlementcontrollers.AdminDeleteOverride(params.EntitlementService, logg))
		})
	})

	return r
}
