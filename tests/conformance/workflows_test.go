package conformance_test

import (
	"net/http"
	"testing"
)

// TestWorkflow_PipelineHealth runs the pipeline workflow against mock CRM and
// usage data joined with the seeded health store.
func TestWorkflow_PipelineHealth(t *testing.T) {
	resetServer(t)

	resp := doRequest(t, http.MethodPost, "/api/workflows/pipeline-health", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	opps := assertIsArray(t, body, "opportunities")
	if len(opps) != 5 {
		t.Fatalf("expected 5 opportunities, got %d", len(opps))
	}
	for _, o := range opps {
		obj := toObject(t, o)
		assertIsString(t, obj, "opportunity_id")
		assertIsString(t, obj, "recommendation")
		risk, ok := obj["risk_score"].(float64)
		if !ok || risk < 0 || risk > 100 {
			t.Errorf("risk_score out of range: %v", obj["risk_score"])
		}
	}

	metrics := assertIsObject(t, body, "metrics")
	if v, _ := metrics["total_pipeline_value"].(float64); v != 350000 {
		t.Errorf("expected pipeline value 350000, got %v", metrics["total_pipeline_value"])
	}

	dq := assertIsObject(t, body, "data_quality")
	assertBoolField(t, dq, "health_data_loaded", true)
	assertBoolField(t, dq, "usage_data_loaded", true)
	assertISOTimestamp(t, assertIsString(t, body, "timestamp"))
	assertPagination(t, body, 1, 50, 5, false)
}

// TestWorkflow_PipelineHealthPaging verifies offset pagination of the rows.
func TestWorkflow_PipelineHealthPaging(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/workflows/pipeline-health?page=2&page_size=2", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	if n := len(assertIsArray(t, body, "opportunities")); n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
	assertPagination(t, body, 2, 2, 5, true)
}

// TestWorkflow_Stalled verifies stalled deals are sorted riskiest first.
func TestWorkflow_Stalled(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/workflows/pipeline-health/stalled", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	rows := assertIsArray(t, body, "stalled_deals")
	prev := 101.0
	for _, r := range rows {
		obj := toObject(t, r)
		assertBoolField(t, obj, "is_stalled", true)
		risk, _ := obj["risk_score"].(float64)
		if risk > prev {
			t.Errorf("stalled deals not sorted by risk: %v after %v", risk, prev)
		}
		prev = risk
	}
}

// TestWorkflow_CRMIntegrity verifies the mock opportunities pass their gates.
func TestWorkflow_CRMIntegrity(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/workflows/crm-integrity", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	metrics := assertIsObject(t, body, "metrics")
	if v, _ := metrics["validation_rate"].(float64); v != 100 {
		t.Errorf("expected 100%% validation rate, got %v", metrics["validation_rate"])
	}
	for _, v := range assertIsArray(t, body, "validations") {
		obj := toObject(t, v)
		assertBoolField(t, obj, "is_valid", true)
		assertStringField(t, obj, "risk_level", "LOW")
	}
	assertBoolField(t, body, "mock_source", true)
	assertPagination(t, body, 1, 50, 5, false)
}

// TestWorkflow_Escalations verifies a clean pipeline has nothing to escalate.
func TestWorkflow_Escalations(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/workflows/crm-integrity/escalations", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	if n := len(assertIsArray(t, body, "escalations")); n != 0 {
		t.Errorf("expected no escalations, got %d", n)
	}
}
