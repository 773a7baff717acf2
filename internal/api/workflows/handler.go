// Package workflows serves the pipeline-health and crm-integrity endpoints.
package workflows

import (
	"net/http"
	"time"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/workflow"
)

// Handler serves /api/workflows.
type Handler struct {
	pipeline  *workflow.PipelineHealth
	integrity *workflow.CRMIntegrity
}

// PipelineResponse is one page of a pipeline-health run.
type PipelineResponse struct {
	Metrics       workflow.SummaryMetrics `json:"metrics"`
	Opportunities []workflow.PipelineRow  `json:"opportunities"`
	DataQuality   workflow.DataQuality    `json:"data_quality"`
	Timestamp     time.Time               `json:"timestamp"`
	Pagination    api.Pagination          `json:"pagination"`
}

// IntegrityResponse is one page of a crm-integrity run.
type IntegrityResponse struct {
	Metrics     workflow.IntegrityMetrics `json:"metrics"`
	Validations []workflow.ValidationRow  `json:"validations"`
	MockSource  bool                      `json:"mock_source"`
	Timestamp   time.Time                 `json:"timestamp"`
	Pagination  api.Pagination            `json:"pagination"`
}

func parsePage(w http.ResponseWriter, r *http.Request) (page, size int, ok bool) {
	page, size, details := api.ParsePage(r)
	if len(details) > 0 {
		api.WriteError(w, http.StatusBadRequest,
			api.NewValidationError("Invalid pagination parameters", api.CorrelationID(r.Context()), details))
		return 0, 0, false
	}
	return page, size, true
}

// RunPipeline runs the pipeline-health workflow. Metrics cover the whole
// report; opportunities are paginated.
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}
	report, err := h.pipeline.Run(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	rows, p := api.Paginate(report.Rows, page, size)
	api.WriteJSON(w, http.StatusOK, PipelineResponse{
		Metrics:       report.Summary(),
		Opportunities: rows,
		DataQuality:   report.DataQuality,
		Timestamp:     report.GeneratedAt,
		Pagination:    p,
	})
}

// Stalled runs the workflow and returns stalled deals, riskiest first.
func (h *Handler) Stalled(w http.ResponseWriter, r *http.Request) {
	rows, err := h.pipeline.StalledDeals(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"stalled_deals": rows,
		"count":         len(rows),
	})
}

// Summary returns the metrics of the last run.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	m, err := h.pipeline.SummaryMetrics(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	api.WriteJSON(w, http.StatusOK, m)
}

// DataQuality returns the data-quality section of the last run.
func (h *Handler) DataQuality(w http.ResponseWriter, r *http.Request) {
	dq, err := h.pipeline.DataQualityReport(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	api.WriteJSON(w, http.StatusOK, dq)
}

// RunIntegrity validates every opportunity against its stage gate.
func (h *Handler) RunIntegrity(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}
	report, err := h.integrity.RunValidation(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	rows, p := api.Paginate(report.Rows, page, size)
	api.WriteJSON(w, http.StatusOK, IntegrityResponse{
		Metrics:     report.Metrics(),
		Validations: rows,
		MockSource:  report.MockSource,
		Timestamp:   report.GeneratedAt,
		Pagination:  p,
	})
}

// Violations returns the HIGH risk validation rows.
func (h *Handler) Violations(w http.ResponseWriter, r *http.Request) {
	rows, err := h.integrity.StageGateViolations(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"violations": rows,
		"count":      len(rows),
	})
}

// Escalations returns the violations shaped for the alert sink.
func (h *Handler) Escalations(w http.ResponseWriter, r *http.Request) {
	items, err := h.integrity.EscalationItems(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"escalations": items,
		"count":       len(items),
	})
}
