package conformance_test

import (
	"net/http"
	"testing"
)

// TestAdmin_Seed verifies seeding is idempotent.
func TestAdmin_Seed(t *testing.T) {
	for range 2 {
		resp := doRequest(t, http.MethodPost, "/_pipemon/seed", nil)
		mustStatus(t, resp, http.StatusOK)
		assertStringField(t, readJSON(t, resp), "status", "ok")
	}
}

// TestAdmin_Reset verifies the health store can be reset and reseeded.
func TestAdmin_Reset(t *testing.T) {
	resetServer(t)

	resp := doRequest(t, http.MethodPost, "/api/workflows/pipeline-health", nil)
	mustStatus(t, resp, http.StatusOK)
	dq := assertIsObject(t, readJSON(t, resp), "data_quality")
	assertBoolField(t, dq, "health_data_loaded", true)
}

// TestAdmin_PopulateUsage verifies accounts that already have usage are
// skipped.
func TestAdmin_PopulateUsage(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/_pipemon/usage/populate", nil)
	mustStatus(t, resp, http.StatusOK)

	body := readJSON(t, resp)
	if n, _ := body["populated"].(float64); n != 0 {
		t.Errorf("expected 0 accounts populated after startup, got %v", body["populated"])
	}
}

// TestAdmin_Metrics verifies Prometheus metrics are exposed.
func TestAdmin_Metrics(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/metrics", nil)
	defer func() { _ = resp.Body.Close() }()
	mustStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct == "application/json" {
		t.Errorf("metrics must not be served as JSON")
	}
}
