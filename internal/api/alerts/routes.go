package alerts

import (
	"net/http"

	"github.com/johnwards/pipemon/internal/alert"
	"github.com/johnwards/pipemon/internal/workflow"
)

// RegisterRoutes registers the alert endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, sender *alert.Sender, pipeline *workflow.PipelineHealth, integrity *workflow.CRMIntegrity) {
	h := &Handler{sender: sender, pipeline: pipeline, integrity: integrity}

	mux.HandleFunc("POST /api/alerts/escalations", h.Escalations)
	mux.HandleFunc("POST /api/alerts/pipeline-risk", h.PipelineRisk)
}
