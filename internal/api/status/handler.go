// Package status serves the liveness endpoints.
package status

import (
	"net/http"
	"time"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/dcl"
)

// ServiceName is reported by the root endpoint.
const ServiceName = "Pipeline Health Monitor API"

// Handler serves the status endpoints.
type Handler struct {
	registry *dcl.Registry
	now      func() time.Time
}

// Root reports that the service is up.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

type healthResponse struct {
	Status     string                      `json:"status"`
	Connectors map[string]connector.Status `json:"connectors"`
	Timestamp  time.Time                   `json:"timestamp"`
}

// Health reports the status of every registered connector. It does not probe
// the sources.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	list := h.registry.List()
	resp := healthResponse{
		Status:     "healthy",
		Connectors: make(map[string]connector.Status, len(list)),
		Timestamp:  h.now().UTC(),
	}
	for name, md := range list {
		resp.Connectors[name] = md.Status
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
