// Package server assembles the HTTP API around an app.App.
package server

import (
	"fmt"
	"net/http"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/api/admin"
	"github.com/johnwards/pipemon/internal/api/alerts"
	"github.com/johnwards/pipemon/internal/api/connectors"
	"github.com/johnwards/pipemon/internal/api/schemas"
	"github.com/johnwards/pipemon/internal/api/status"
	"github.com/johnwards/pipemon/internal/api/ui"
	"github.com/johnwards/pipemon/internal/api/workflows"
	"github.com/johnwards/pipemon/internal/app"
	"github.com/johnwards/pipemon/internal/telemetry"
)

// Handler returns the full API with its middleware chain.
func Handler(a *app.App) http.Handler {
	mux := http.NewServeMux()

	status.RegisterRoutes(mux, a.Registry)
	connectors.RegisterRoutes(mux, a.Registry)
	workflows.RegisterRoutes(mux, a.Pipeline, a.Integrity)
	alerts.RegisterRoutes(mux, a.Alerts, a.Pipeline, a.Integrity)
	schemas.RegisterRoutes(mux, a.Mapper, a)

	// Admin API
	admin.RegisterRoutes(mux, a)

	mux.Handle("GET /metrics", telemetry.MetricsHandler())

	// Web UI
	ui.RegisterRoutes(mux)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		corrID := api.CorrelationID(r.Context())
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			corrID,
		))
	})

	return api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.CORS(),
		api.JSONContentType(),
		api.Metrics(),
		api.Logging(),
	)
}
