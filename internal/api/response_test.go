package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnwards/pipemon/internal/api"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteJSON(rec, http.StatusCreated, map[string]string{"status": "ok"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		size     int
		problems int
	}{
		{"", 1, api.DefaultPageSize, 0},
		{"page=3&page_size=10", 3, 10, 0},
		{"page_size=100", 1, 100, 0},
		{"page=0", 1, api.DefaultPageSize, 1},
		{"page=abc", 1, api.DefaultPageSize, 1},
		{"page_size=101", 1, api.DefaultPageSize, 1},
		{"page=-2&page_size=0", 1, api.DefaultPageSize, 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, http.NoBody)
			page, size, details := api.ParsePage(req)
			if page != tt.page || size != tt.size {
				t.Errorf("got page=%d size=%d, want page=%d size=%d", page, size, tt.page, tt.size)
			}
			if len(details) != tt.problems {
				t.Errorf("details = %+v, want %d", details, tt.problems)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	got, p := api.Paginate(items, 2, 2)
	if len(got) != 2 || got[0] != 3 {
		t.Errorf("page 2 = %v", got)
	}
	if !p.HasMore || p.Total != 5 || p.NextCursor != nil {
		t.Errorf("pagination = %+v", p)
	}

	got, p = api.Paginate(items, 3, 2)
	if len(got) != 1 || p.HasMore {
		t.Errorf("last page = %v %+v", got, p)
	}

	got, p = api.Paginate(items, 9, 2)
	if got == nil || len(got) != 0 || p.HasMore {
		t.Errorf("past end = %v %+v", got, p)
	}
}

func TestPaginateHugePage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=100000000000000000&page_size=100", http.NoBody)
	page, size, details := api.ParsePage(req)
	if len(details) != 0 {
		t.Fatalf("details = %+v", details)
	}

	got, p := api.Paginate([]int{1, 2, 3}, page, size)
	if len(got) != 0 || p.HasMore || p.Total != 3 || p.Page != page {
		t.Errorf("got %v %+v, want an empty page", got, p)
	}

	got, _ = api.Paginate([]int{}, 1, 10)
	if got == nil || len(got) != 0 {
		t.Errorf("empty input = %v", got)
	}
}

type addRequest struct {
	Source string `json:"source" validate:"required"`
	Entity string `json:"entity" validate:"required,oneof=account opportunity"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		codes []string
		in    []string
	}{
		{"valid", `{"source":"salesforce","entity":"account"}`, nil, nil},
		{"malformed", `{"source":`, []string{"INVALID_JSON"}, []string{"body"}},
		{"unknown field", `{"source":"x","entity":"account","extra":1}`, []string{"INVALID_JSON"}, []string{"body"}},
		{"missing", `{}`, []string{"REQUIRED", "REQUIRED"}, []string{"source", "entity"}},
		{"oneof", `{"source":"x","entity":"deal"}`, []string{"ONEOF"}, []string{"entity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst addRequest
			details := api.DecodeJSON(req, &dst)
			if len(details) != len(tt.codes) {
				t.Fatalf("details = %+v, want %d", details, len(tt.codes))
			}
			for i, d := range details {
				if d.Code != tt.codes[i] || d.In != tt.in[i] {
					t.Errorf("detail %d = %+v, want code %s in %s", i, d, tt.codes[i], tt.in[i])
				}
			}
		})
	}
}
