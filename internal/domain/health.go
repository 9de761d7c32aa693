package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// DashboardMetrics is returned by GET /v1/metrics/dashboard.
type DashboardMetrics struct {
	NavigationRendered  int64   `json:"navigationRendered"`
	NavigationDenied    int64   `json:"navigationDenied"`
	DenialRate          float64 `json:"denialRate"`
	QuoteTransitions    int64   `json:"quoteTransitions"`
	QuoteRejectedGuards int64   `json:"quoteRejectedGuards"`
	OrdersDerived       int64   `json:"ordersDerived"`
	OrdersNotEligible   int64   `json:"ordersNotEligible"`
	SessionFallbacks    int64   `json:"sessionFallbacks"`
	ProfileCacheHitRate float64 `json:"profileCacheHitRate"`
	Period              string  `json:"period"`
}
