// Package schemas serves the schema mapping table and drift reports.
package schemas

import (
	"context"
	"net/http"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/schema"
)

// DriftSource queries a source and reports fields without a mapping.
type DriftSource interface {
	UnmappedFields(ctx context.Context, source, entity string) ([]string, error)
}

// Handler serves /api/schema.
type Handler struct {
	mapper *schema.Mapper
	drift  DriftSource
}

type mappingsResponse struct {
	Mappings map[string]map[string][]schema.Mapping `json:"mappings"`
	Unified  map[string][]schema.Field              `json:"unified_schema"`
}

// Mappings returns every source mapping and the unified target schema.
func (h *Handler) Mappings(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, mappingsResponse{
		Mappings: h.mapper.Visualization(),
		Unified:  schema.Unified,
	})
}

// AddMappingRequest is the body of POST /api/schema/mappings.
type AddMappingRequest struct {
	Source      string `json:"source" validate:"required"`
	Entity      string `json:"entity" validate:"required,oneof=account opportunity health usage"`
	SourceField string `json:"source_field" validate:"required"`
	TargetField string `json:"target_field" validate:"required"`
}

// AddMapping adds or replaces one field mapping.
func (h *Handler) AddMapping(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	var req AddMappingRequest
	if details := api.DecodeJSON(r, &req); details != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid mapping", corrID, details))
		return
	}
	if err := h.mapper.AddMapping(req.Source, req.Entity, req.SourceField, req.TargetField); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(err.Error(), corrID, nil))
		return
	}
	api.WriteJSON(w, http.StatusCreated, schema.Mapping{
		SourceField: req.SourceField,
		TargetField: req.TargetField,
		TargetType:  schema.TargetType(req.Entity, req.TargetField),
	})
}

// Unmapped queries a source and lists the fields it returns that have no
// mapping for the entity.
func (h *Handler) Unmapped(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	source := r.URL.Query().Get("source")
	entity := r.URL.Query().Get("entity")

	var details []api.ErrorDetail
	if source == "" {
		details = append(details, api.ErrorDetail{Message: "source is required", Code: "REQUIRED", In: "source"})
	}
	if entity == "" {
		details = append(details, api.ErrorDetail{Message: "entity is required", Code: "REQUIRED", In: "entity"})
	}
	if details != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid query parameters", corrID, details))
		return
	}

	fields, err := h.drift.UnmappedFields(r.Context(), source, entity)
	if err != nil {
		api.WriteFailure(w, corrID, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"source":   source,
		"entity":   entity,
		"unmapped": fields,
	})
}
