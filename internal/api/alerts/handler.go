// Package alerts serves the endpoints that push workflow findings to the
// alert webhook.
package alerts

import (
	"net/http"

	"github.com/johnwards/pipemon/internal/alert"
	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/workflow"
)

// Handler serves /api/alerts.
type Handler struct {
	sender    *alert.Sender
	pipeline  *workflow.PipelineHealth
	integrity *workflow.CRMIntegrity
}

// Result reports a batch delivery.
type Result struct {
	Sent  int `json:"sent"`
	Total int `json:"total"`
}

func (h *Handler) requireSender(w http.ResponseWriter, r *http.Request) bool {
	if h.sender.Configured() {
		return true
	}
	api.WriteError(w, http.StatusServiceUnavailable,
		api.NewConnectorError(alert.ErrNotConfigured.Error(), api.CorrelationID(r.Context())))
	return false
}

// writeResult reports the delivered count. Individual delivery failures only
// lower the count; err is set when the batch was cut short.
func writeResult(w http.ResponseWriter, r *http.Request, sent, total int, err error) {
	if err != nil {
		api.WriteError(w, http.StatusBadGateway,
			api.NewConnectorError(err.Error(), api.CorrelationID(r.Context())))
		return
	}
	api.WriteJSON(w, http.StatusOK, Result{Sent: sent, Total: total})
}

// Escalations sends one BANT alert per escalation item.
func (h *Handler) Escalations(w http.ResponseWriter, r *http.Request) {
	if !h.requireSender(w, r) {
		return
	}
	items, err := h.integrity.EscalationItems(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	sent, err := h.sender.SendEscalations(r.Context(), items)
	writeResult(w, r, sent, len(items), err)
}

// PipelineRisk sends one alert per stalled deal with risk above 50.
func (h *Handler) PipelineRisk(w http.ResponseWriter, r *http.Request) {
	if !h.requireSender(w, r) {
		return
	}
	report, err := h.pipeline.Run(r.Context())
	if err != nil {
		api.WriteFailure(w, api.CorrelationID(r.Context()), err)
		return
	}
	rows := alert.AtRisk(report.Rows)
	sent, err := h.sender.SendPipelineRisks(r.Context(), rows)
	writeResult(w, r, sent, len(rows), err)
}
