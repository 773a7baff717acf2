package connectors

import (
	"net/http"

	"github.com/johnwards/pipemon/internal/dcl"
)

// RegisterRoutes registers the connector endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, registry *dcl.Registry) {
	h := &Handler{registry: registry}

	mux.HandleFunc("GET /api/dcl/connectors", h.List)
	mux.HandleFunc("GET /api/dcl/connectors/{name}", h.Get)
	mux.HandleFunc("DELETE /api/dcl/connectors/{name}", h.Delete)
	mux.HandleFunc("POST /api/dcl/connectors/{name}/reconnect", h.Reconnect)
}
