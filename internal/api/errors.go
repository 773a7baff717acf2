package api

import (
	"errors"
	"net/http"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/dcl"
)

// Error categories.
const (
	CategoryValidationError = "VALIDATION_ERROR"
	CategoryObjectNotFound  = "OBJECT_NOT_FOUND"
	CategoryConnectorError  = "CONNECTOR_ERROR"
	CategoryInternalError   = "INTERNAL_ERROR"
)

// Error is the JSON error envelope.
type Error struct {
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	CorrelationID string        `json:"correlationId"`
	Category      string        `json:"category"`
	Errors        []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail represents a single error within an Error.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	In      string `json:"in,omitempty"`
}

// NewNotFoundError creates a 404 error with the OBJECT_NOT_FOUND category.
func NewNotFoundError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryObjectNotFound,
	}
}

// NewValidationError creates a 400 error with the VALIDATION_ERROR category.
func NewValidationError(message, correlationID string, details []ErrorDetail) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryValidationError,
		Errors:        details,
	}
}

// NewConnectorError creates an error for an unavailable data source.
func NewConnectorError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryConnectorError,
	}
}

// NewInternalError creates a 500 error.
func NewInternalError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryInternalError,
	}
}

// WriteError writes an Error as a JSON response with the given HTTP status code.
func WriteError(w http.ResponseWriter, statusCode int, apiErr *Error) {
	WriteJSON(w, statusCode, apiErr)
}

// WriteFailure maps err to a status code and category and writes it.
// Unregistered connectors are 404, unavailable sources 503, anything else 500.
func WriteFailure(w http.ResponseWriter, correlationID string, err error) {
	var (
		notReg  *dcl.NotRegisteredError
		connErr *connector.ConnectionError
		cfgErr  *connector.ConfigurationError
	)
	switch {
	case errors.As(err, &notReg):
		WriteError(w, http.StatusNotFound, NewNotFoundError(err.Error(), correlationID))
	case errors.As(err, &connErr), errors.As(err, &cfgErr), errors.Is(err, connector.ErrNotConnected):
		WriteError(w, http.StatusServiceUnavailable, NewConnectorError(err.Error(), correlationID))
	default:
		WriteError(w, http.StatusInternalServerError, NewInternalError(err.Error(), correlationID))
	}
}
