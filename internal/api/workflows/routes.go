package workflows

import (
	"net/http"

	"github.com/johnwards/pipemon/internal/workflow"
)

// RegisterRoutes registers the workflow endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, pipeline *workflow.PipelineHealth, integrity *workflow.CRMIntegrity) {
	h := &Handler{pipeline: pipeline, integrity: integrity}

	mux.HandleFunc("POST /api/workflows/pipeline-health", h.RunPipeline)
	mux.HandleFunc("GET /api/workflows/pipeline-health/stalled", h.Stalled)
	mux.HandleFunc("GET /api/workflows/pipeline-health/summary", h.Summary)
	mux.HandleFunc("GET /api/workflows/pipeline-health/data-quality", h.DataQuality)
	mux.HandleFunc("POST /api/workflows/crm-integrity", h.RunIntegrity)
	mux.HandleFunc("GET /api/workflows/crm-integrity/violations", h.Violations)
	mux.HandleFunc("GET /api/workflows/crm-integrity/escalations", h.Escalations)
}
