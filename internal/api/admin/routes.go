package admin

import "net/http"

// RegisterRoutes registers all admin API endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, op Operator) {
	h := &Handler{op: op}

	mux.HandleFunc("POST /_pipemon/reset", h.Reset)
	mux.HandleFunc("POST /_pipemon/seed", h.SeedData)
	mux.HandleFunc("POST /_pipemon/usage/populate", h.PopulateUsage)
}
