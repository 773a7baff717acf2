package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// Page size bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Pagination describes one page of an in-memory report.
type Pagination struct {
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	Total      int     `json:"total"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// ParsePage reads page and page_size from the query string. page must be at
// least 1 and page_size between 1 and MaxPageSize.
func ParsePage(r *http.Request) (page, size int, details []ErrorDetail) {
	page, size = 1, DefaultPageSize
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			details = append(details, ErrorDetail{Message: "page must be an integer >= 1", Code: "INVALID_INTEGER", In: "page"})
		} else {
			page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPageSize {
			details = append(details, ErrorDetail{
				Message: fmt.Sprintf("page_size must be an integer between 1 and %d", MaxPageSize),
				Code:    "INVALID_INTEGER", In: "page_size",
			})
		} else {
			size = n
		}
	}
	return page, size, details
}

// Paginate slices items for page and returns the pagination metadata.
func Paginate[T any](items []T, page, size int) ([]T, Pagination) {
	total := len(items)
	p := Pagination{Page: page, PageSize: size, Total: total}
	if total == 0 || page-1 > (total-1)/size {
		return []T{}, p
	}
	start := (page - 1) * size
	end := min(start+size, total)
	p.HasMore = end < total
	return items[start:end], p
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON decodes the request body into dst and validates it. The returned
// details are suitable for a VALIDATION_ERROR response.
func DecodeJSON(r *http.Request, dst any) []ErrorDetail {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return []ErrorDetail{{Message: "invalid JSON body: " + err.Error(), Code: "INVALID_JSON", In: "body"}}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []ErrorDetail{{Message: err.Error(), In: "body"}}
		}
		details := make([]ErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			field := fe.Field()
			details = append(details, ErrorDetail{
				Message: fmt.Sprintf("%s failed validation %q", field, fe.Tag()),
				Code:    strings.ToUpper(fe.Tag()),
				In:      field,
			})
		}
		return details
	}
	return nil
}

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
