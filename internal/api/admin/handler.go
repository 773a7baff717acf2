// Package admin serves the operator endpoints under /_pipemon/.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/app"
)

// Operator is the subset of the app the admin endpoints drive.
type Operator interface {
	SeedHealth(ctx context.Context) error
	ResetHealth(ctx context.Context) error
	PopulateUsage(ctx context.Context) int
}

// Handler serves the admin API at /_pipemon/.
type Handler struct {
	op Operator
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	corrID := api.CorrelationID(r.Context())
	if errors.Is(err, app.ErrHealthStoreOffline) {
		api.WriteError(w, http.StatusServiceUnavailable, api.NewConnectorError(err.Error(), corrID))
		return
	}
	api.WriteError(w, http.StatusInternalServerError,
		api.NewInternalError(fmt.Sprintf("failed to %s: %s", action, err), corrID))
}

// SeedData migrates the health store and inserts demo rows without dropping
// existing data.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	if err := h.op.SeedHealth(r.Context()); err != nil {
		h.fail(w, r, "seed", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Reset clears the health store and re-seeds it.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.op.ResetHealth(r.Context()); err != nil {
		h.fail(w, r, "reset", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PopulateUsage synthesizes usage for CRM accounts that have none.
func (h *Handler) PopulateUsage(w http.ResponseWriter, r *http.Request) {
	n := h.op.PopulateUsage(r.Context())
	api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "populated": n})
}
