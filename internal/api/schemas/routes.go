package schemas

import (
	"net/http"

	"github.com/johnwards/pipemon/internal/schema"
)

// RegisterRoutes registers the schema endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, mapper *schema.Mapper, drift DriftSource) {
	h := &Handler{mapper: mapper, drift: drift}

	mux.HandleFunc("GET /api/schema/mappings", h.Mappings)
	mux.HandleFunc("POST /api/schema/mappings", h.AddMapping)
	mux.HandleFunc("GET /api/schema/unmapped", h.Unmapped)
}
