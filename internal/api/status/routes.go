package status

import (
	"net/http"
	"time"

	"github.com/johnwards/pipemon/internal/dcl"
)

// RegisterRoutes registers the root and health endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, registry *dcl.Registry) {
	h := &Handler{registry: registry, now: time.Now}

	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /api/health", h.Health)
}
