// Package connectors serves the connector registry endpoints.
package connectors

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/dcl"
)

// Handler serves /api/dcl/connectors.
type Handler struct {
	registry *dcl.Registry
}

// Info is one connector as reported by the API.
type Info struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Status      connector.Status  `json:"status"`
	Description string            `json:"description"`
	Error       string            `json:"error,omitempty"`
	Health      *connector.Health `json:"health"`
	LastChecked *time.Time        `json:"last_checked"`
}

// info builds the API view of name. A fresh cached probe is reused unless
// force is set.
func (h *Handler) info(r *http.Request, name string, md connector.Metadata, force bool) Info {
	out := Info{
		Name:        name,
		Type:        md.Type,
		Status:      md.Status,
		Description: md.Description,
		Error:       md.Error,
	}
	handle, ok := h.registry.Handle(name)
	if !ok {
		return out
	}
	var health connector.Health
	if !force && handle.HealthCacheFresh() {
		health, _ = handle.CachedHealth()
	} else {
		health = handle.CheckHealth(r.Context(), force)
	}
	out.Health = &health
	if !health.CheckedAt.IsZero() {
		at := health.CheckedAt.UTC()
		out.LastChecked = &at
	}
	return out
}

func parseForce(r *http.Request) (bool, *api.ErrorDetail) {
	v := r.URL.Query().Get("force_check")
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &api.ErrorDetail{Message: "force_check must be a boolean", Code: "INVALID_BOOLEAN", In: "force_check"}
	}
	return b, nil
}

// List returns every connector with its health, sorted by name.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	force, detail := parseForce(r)
	if detail != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewValidationError("Invalid query parameters", api.CorrelationID(r.Context()), []api.ErrorDetail{*detail}))
		return
	}

	list := h.registry.List()
	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Info, 0, len(names))
	for _, name := range names {
		out = append(out, h.info(r, name, list[name], force))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, name string) {
	api.WriteError(w, http.StatusNotFound,
		api.NewNotFoundError(fmt.Sprintf("connector %q not registered", name), api.CorrelationID(r.Context())))
}

// Get returns one connector.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	md, ok := h.registry.Status(name)
	if !ok {
		h.notFound(w, r, name)
		return
	}
	api.WriteJSON(w, http.StatusOK, h.info(r, name, md, false))
}

// Delete unregisters a connector and releases its session.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	handle, hasHandle := h.registry.Handle(name)
	if !h.registry.Unregister(name) {
		h.notFound(w, r, name)
		return
	}
	if hasHandle {
		_ = handle.Close(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reconnect closes and reopens a connector's session.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	corrID := api.CorrelationID(r.Context())
	if _, ok := h.registry.Status(name); !ok {
		h.notFound(w, r, name)
		return
	}
	handle, ok := h.registry.Handle(name)
	if !ok {
		api.WriteError(w, http.StatusConflict,
			api.NewConnectorError(fmt.Sprintf("connector %q cannot be reconnected", name), corrID))
		return
	}
	if err := handle.Reconnect(r.Context()); err != nil {
		api.WriteFailure(w, corrID, err)
		return
	}
	md, _ := h.registry.Status(name)
	api.WriteJSON(w, http.StatusOK, h.info(r, name, md, true))
}
