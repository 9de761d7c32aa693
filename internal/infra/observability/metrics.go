package observability

import (
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	navigation       *prometheus.CounterVec
	quoteTransitions *prometheus.CounterVec
	orderDerivations *prometheus.CounterVec
	sessionFallbacks *prometheus.CounterVec
	unknownRoles     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		navigation: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_navigation_decisions_total",
				Help: "Section resolutions by section and outcome.",
			},
			[]string{"section", "outcome"},
		),
		quoteTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_quote_transitions_total",
				Help: "Quote lifecycle events by event and result.",
			},
			[]string{"event", "result"},
		),
		orderDerivations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_order_derivations_total",
				Help: "Order derivation attempts by result.",
			},
			[]string{"result"},
		),
		sessionFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_session_fallbacks_total",
				Help: "Requests served as guest because the session could not be used.",
			},
			[]string{"reason"},
		),
		unknownRoles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_unknown_role_lookups_total",
				Help: "Registry lookups for roles outside the table.",
			},
			[]string{"policy"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// RecordNavigation counts one gate decision.
func (m *Metrics) RecordNavigation(section, outcome string) {
	m.navigation.WithLabelValues(section, outcome).Inc()
}

// RecordQuoteTransition counts a quote event. result is applied, guard_rejected or error.
func (m *Metrics) RecordQuoteTransition(event, result string) {
	m.quoteTransitions.WithLabelValues(event, result).Inc()
}

// RecordOrderDerivation counts an order attempt. result is created, not_eligible, conflict or error.
func (m *Metrics) RecordOrderDerivation(result string) {
	m.orderDerivations.WithLabelValues(result).Inc()
}

// IncrSessionFallback counts a request downgraded to guest.
func (m *Metrics) IncrSessionFallback(reason string) {
	m.sessionFallbacks.WithLabelValues(reason).Inc()
}

// IncrUnknownRole counts a registry lookup for an unrecognised role.
func (m *Metrics) IncrUnknownRole(policy string) {
	m.unknownRoles.WithLabelValues(policy).Inc()
}

// GetDashboardSnapshot returns the counters behind GET /v1/metrics/dashboard.
func (m *Metrics) GetDashboardSnapshot() *domain.DashboardMetrics {
	rendered := sumCounter(m.navigation, "outcome", "render")
	denied := sumCounter(m.navigation, "outcome", "denied")
	applied := sumCounter(m.quoteTransitions, "result", "applied")
	guarded := sumCounter(m.quoteTransitions, "result", "guard_rejected")
	created := getCounterValue(m.orderDerivations, "created")
	notEligible := getCounterValue(m.orderDerivations, "not_eligible")
	fallbacks := sumCounter(m.sessionFallbacks, "", "")
	hits := getCounterValue(m.cacheHits, "profile")
	misses := getCounterValue(m.cacheMisses, "profile")

	denialRate := float64(0)
	cacheHitRate := float64(0)
	if rendered+denied > 0 {
		denialRate = denied / (rendered + denied)
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.DashboardMetrics{
		NavigationRendered:  int64(rendered),
		NavigationDenied:    int64(denied),
		DenialRate:          denialRate,
		QuoteTransitions:    int64(applied),
		QuoteRejectedGuards: int64(guarded),
		OrdersDerived:       int64(created),
		OrdersNotEligible:   int64(notEligible),
		SessionFallbacks:    int64(fallbacks),
		ProfileCacheHitRate: cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounter adds up every child of cv whose label name has the given value.
// An empty name sums all children.
func sumCounter(cv *prometheus.CounterVec, name, value string) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		if name != "" && !hasLabel(m, name, value) {
			continue
		}
		total += m.Counter.GetValue()
	}
	return total
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
