package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/dcl"
)

func TestNewNotFoundError(t *testing.T) {
	err := api.NewNotFoundError("connector not found", "abc-123")

	if err.Status != "error" {
		t.Errorf("Status = %q, want %q", err.Status, "error")
	}
	if err.Category != api.CategoryObjectNotFound {
		t.Errorf("Category = %q, want %q", err.Category, api.CategoryObjectNotFound)
	}
	if err.CorrelationID != "abc-123" {
		t.Errorf("CorrelationID = %q, want %q", err.CorrelationID, "abc-123")
	}
}

func TestNewValidationError(t *testing.T) {
	details := []api.ErrorDetail{
		{Message: "page must be an integer >= 1", Code: "INVALID_INTEGER", In: "page"},
	}
	err := api.NewValidationError("invalid pagination", "def-456", details)

	if err.Category != api.CategoryValidationError {
		t.Errorf("Category = %q, want %q", err.Category, api.CategoryValidationError)
	}
	if len(err.Errors) != 1 || err.Errors[0].In != "page" {
		t.Fatalf("Errors = %+v", err.Errors)
	}
}

func TestNewConnectorError(t *testing.T) {
	err := api.NewConnectorError("mongodb unavailable", "ghi-789")

	if err.Category != api.CategoryConnectorError {
		t.Errorf("Category = %q, want %q", err.Category, api.CategoryConnectorError)
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, http.StatusNotFound, api.NewNotFoundError("not found", "test-id"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["correlationId"] != "test-id" {
		t.Errorf("correlationId = %v", body["correlationId"])
	}
	if _, ok := body["errors"]; ok {
		t.Error("errors must be omitted when empty")
	}
}

func TestWriteFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		category string
	}{
		{"unregistered", &dcl.NotRegisteredError{Name: "hubspot"}, http.StatusNotFound, api.CategoryObjectNotFound},
		{"connection", &connector.ConnectionError{Connector: "mongodb", Op: "query", Err: errors.New("timeout")},
			http.StatusServiceUnavailable, api.CategoryConnectorError},
		{"configuration", &connector.ConfigurationError{Connector: "salesforce", Missing: []string{"username"}},
			http.StatusServiceUnavailable, api.CategoryConnectorError},
		{"not connected", fmt.Errorf("query healthdb: %w", connector.ErrNotConnected),
			http.StatusServiceUnavailable, api.CategoryConnectorError},
		{"other", errors.New("boom"), http.StatusInternalServerError, api.CategoryInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.WriteFailure(rec, "corr", tt.err)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body api.Error
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Category != tt.category {
				t.Errorf("category = %q, want %q", body.Category, tt.category)
			}
			if body.Message != tt.err.Error() {
				t.Errorf("message = %q, want %q", body.Message, tt.err.Error())
			}
		})
	}
}
