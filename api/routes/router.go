package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/sellerhub-backend/api/controllers"
	"github.com/angelmondragon/sellerhub-backend/api/middleware"
	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/checkout"
	"github.com/angelmondragon/sellerhub-backend/internal/reports"
	"github.com/angelmondragon/sellerhub-backend/internal/sessions"
	"github.com/angelmondragon/sellerhub-backend/internal/stock"
	"github.com/angelmondragon/sellerhub-backend/internal/subscriptions"
	"github.com/angelmondragon/sellerhub-backend/pkg/auth/session"
	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/sellerhub-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface needs. Redis and
// SessionChecker are optional; without Redis the sign-in throttle and
// purchase idempotency are disabled.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          *pkgredis.Client
	SessionChecker session.SessionChecker
	Gatherer       prometheus.Gatherer

	Subscriptions subscriptions.Service
	Sessions      sessions.Service
	Stock         stock.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Reports       reports.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	readiness := map[string]controllers.Pinger{"database": deps.DB}
	signIn := passThrough
	signUp := passThrough
	idempotent := func(time.Duration) func(http.Handler) http.Handler { return passThrough }
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
		signIn = middleware.AuthRateLimit(middleware.NewAuthRateLimitPolicy(
			"sign_in",
			cfg.AuthRateLimit.SignInWindow,
			cfg.AuthRateLimit.SignInIPLimit,
			cfg.AuthRateLimit.SignInSellerLimit,
		), deps.Redis, logg)
		signUp = middleware.AuthRateLimit(middleware.NewAuthRateLimitPolicy(
			"sign_up",
			cfg.AuthRateLimit.SignUpWindow,
			cfg.AuthRateLimit.SignUpIPLimit,
			0,
		), deps.Redis, logg)
		idempotent = func(ttl time.Duration) func(http.Handler) http.Handler {
			return middleware.Idempotency(deps.Redis, ttl, logg)
		}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", controllers.PlansList(deps.Subscriptions, logg))
		r.With(signUp, idempotent(middleware.IdempotencyTTL)).Post("/sellers", controllers.SellerSignUp(deps.Subscriptions, logg))
		r.With(signIn).Post("/sessions", controllers.SessionSignIn(deps.Sessions, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.SellerAuth(cfg.JWT, deps.SessionChecker, logg))

			r.Delete("/sessions", controllers.SessionSignOut(deps.Sessions, logg))
			r.Route("/seller", func(r chi.Router) {
				r.Get("/subscription", controllers.SubscriptionFetch(deps.Subscriptions, logg))
				r.Put("/subscription", controllers.SubscriptionChange(deps.Subscriptions, logg))
				r.Get("/stocks", controllers.StockQuota(deps.Stock, deps.Subscriptions, logg))
				r.Patch("/stocks/{productID}", controllers.StockAdjust(deps.Stock, logg))
				r.With(idempotent(middleware.IdempotencyTTL)).Post("/shipments", controllers.StockShip(deps.Stock, logg))
				r.Get("/gross-income", controllers.GrossIncome(deps.Reports, logg))
			})
		})

		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Get("/cart", controllers.CartFetch(deps.Cart, logg))
			r.Patch("/cart", controllers.CartAdjust(deps.Cart, logg))
			r.With(idempotent(middleware.PurchaseIdempotencyTTL)).Post("/orders", controllers.CartPurchase(deps.Checkout, logg))
		})
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }
