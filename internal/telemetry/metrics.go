package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectorQueries counts registry queries by connector and outcome
	// ("ok", "error", "not_registered").
	ConnectorQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipemon_connector_queries_total",
		Help: "Total connector queries routed through the registry",
	}, []string{"connector", "outcome"})

	// ConnectorQueryDuration observes registry query latency.
	ConnectorQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipemon_connector_query_duration_seconds",
		Help:    "Connector query latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"connector"})

	// ConnectorFallbacks counts queries answered with mock or cached data.
	ConnectorFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipemon_connector_fallbacks_total",
		Help: "Total queries served from mock or cached data",
	}, []string{"connector"})

	// ConnectorHealthy is 1 when the last liveness probe succeeded.
	ConnectorHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipemon_connector_healthy",
		Help: "Result of the last connector liveness probe (1 healthy, 0 unhealthy)",
	}, []string{"connector"})

	// WorkflowRuns counts workflow executions by workflow and outcome.
	WorkflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipemon_workflow_runs_total",
		Help: "Total workflow runs",
	}, []string{"workflow", "outcome"})

	// StalledDeals is the stalled-deal count of the latest pipeline report.
	StalledDeals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipemon_pipeline_stalled_deals",
		Help: "Stalled deals in the latest pipeline health report",
	})

	// HTTPRequests counts API requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipemon_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "status"})

	// AlertsSent counts webhook deliveries by alert kind and outcome.
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipemon_alerts_sent_total",
		Help: "Total webhook alerts attempted",
	}, []string{"kind", "outcome"})
)

// MetricsHandler returns the handler for the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
