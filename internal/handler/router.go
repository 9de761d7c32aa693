package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/observability"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/navigation"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/rbac"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/service"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one dependency for /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps is everything the router serves from.
type Deps struct {
	Auth     *service.AuthService
	Sessions *session.Provider
	Gate     *navigation.Gate
	Registry *rbac.Registry
	Quotes   *service.QuoteService
	Orders   *service.OrderService
	Metrics  *observability.Metrics
	Checks   []HealthCheck
	Logger   *zap.Logger

	// LoginRateLimit caps login attempts per client IP per minute; zero disables it.
	LoginRateLimit int
	// SSLRedirect enables HTTPS redirects in secure headers.
	SSLRedirect bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	secureHeaders := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        d.SSLRedirect,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, d.Metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders.Handler)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Checks))
	r.Get("/readyz", readyzHandler())
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	if d.Auth == nil || d.Sessions == nil {
		return r
	}

	guard := rbac.Middleware{
		Registry: d.Registry,
		RoleOf:   roleOf,
		Deny: func(w http.ResponseWriter, _ *http.Request, err error) {
			handleServiceError(w, err, logger)
		},
		Logger: logger,
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// POST /v1/auth/login
		r.Group(func(r chi.Router) {
			if d.LoginRateLimit > 0 {
				r.Use(httprate.LimitByIP(d.LoginRateLimit, time.Minute))
			}
			r.Post("/auth/login", authLoginHandler(d.Auth, logger))
		})

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(d.Auth, d.Sessions, logger))

			r.Post("/auth/logout", authLogoutHandler(d.Auth, logger))

			// Identity
			r.Get("/me", meHandler(d.Sessions))
			r.Post("/me/sync", meSyncHandler(d.Sessions, logger))

			// Navigation: denials are decisions, so no capability middleware here.
			r.Get("/navigation", sidebarHandler(d.Gate, d.Sessions))
			r.Get("/navigation/active", activeSectionHandler(d.Gate, d.Sessions))
			r.Get("/sections/{sectionId}", sectionHandler(d.Gate, d.Sessions, logger))

			// Quotes: the service decides between quotes and quote-approval scope.
			r.Get("/quotes", listQuotesHandler(d.Quotes, logger))
			r.Get("/quotes/{quoteId}", getQuoteHandler(d.Quotes, logger))
			r.Group(func(r chi.Router) {
				r.Use(guard.RequireCapability(domain.SectionQuotes, domain.CapabilityManage))
				r.Post("/quotes", createQuoteHandler(d.Quotes, logger))
				r.Put("/quotes/{quoteId}", updateQuoteHandler(d.Quotes, logger))
				r.Post("/quotes/{quoteId}/submit", submitQuoteHandler(d.Quotes, logger))
			})
			r.Group(func(r chi.Router) {
				r.Use(guard.RequireCapability(domain.SectionQuoteApproval, domain.CapabilityManage))
				r.Post("/quotes/{quoteId}/approve", approveQuoteHandler(d.Quotes, logger))
				r.Post("/quotes/{quoteId}/reject", rejectQuoteHandler(d.Quotes, logger))
			})

			// Orders
			r.With(guard.RequireCapability(domain.SectionOrders, domain.CapabilityManage)).
				Post("/quotes/{quoteId}/order", deriveOrderHandler(d.Orders, logger))
			r.With(guard.RequireCapability(domain.SectionOrders, domain.CapabilityView)).
				Get("/orders", listOrdersHandler(d.Orders, logger))

			// GET /v1/metrics/dashboard
			r.With(guard.RequireCapability(domain.SectionReports, domain.CapabilityView)).
				Get("/metrics/dashboard", dashboardMetricsHandler(d.Metrics))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}
		for _, c := range checks {
			start := time.Now()
			err := c.Ping(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: c.Name, Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func dashboardMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if metrics == nil {
			writeError(w, http.StatusServiceUnavailable, "metrics disabled")
			return
		}
		writeJSON(w, http.StatusOK, metrics.GetDashboardSnapshot())
	}
}
