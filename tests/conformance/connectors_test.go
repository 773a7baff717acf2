package conformance_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

func listConnectors(t *testing.T, query string) []map[string]any {
	t.Helper()
	resp := doRequest(t, http.MethodGet, "/api/dcl/connectors"+query, nil)
	mustStatus(t, resp, http.StatusOK)
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, b)
	}
	return out
}

// TestConnectors_List verifies the list is sorted and carries health.
func TestConnectors_List(t *testing.T) {
	list := listConnectors(t, "?force_check=true")
	if len(list) != 3 {
		t.Fatalf("expected 3 connectors, got %d", len(list))
	}
	want := []string{"healthdb", "mongodb", "salesforce"}
	for i, c := range list {
		assertStringField(t, c, "name", want[i])
		assertIsString(t, c, "type")
		assertIsString(t, c, "description")
		health := assertIsObject(t, c, "health")
		assertFieldPresent(t, health, "healthy")
		assertISOTimestamp(t, assertIsString(t, c, "last_checked"))
	}

	assertStringField(t, list[0], "status", "healthy")
	assertBoolField(t, assertIsObject(t, list[0], "health"), "healthy", true)
	assertStringField(t, list[2], "status", "mock")
}

// TestConnectors_GetUnknown verifies an unknown connector returns 404.
func TestConnectors_GetUnknown(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/dcl/connectors/hubspot", nil)
	mustStatus(t, resp, http.StatusNotFound)
	assertErrorEnvelope(t, readJSON(t, resp), "OBJECT_NOT_FOUND")
}

// TestConnectors_Reconnect verifies a mock connector can be reconnected and
// stays in mock mode without credentials.
func TestConnectors_Reconnect(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/dcl/connectors/salesforce/reconnect", nil)
	mustStatus(t, resp, http.StatusOK)

	body := readJSON(t, resp)
	assertStringField(t, body, "name", "salesforce")
	assertStringField(t, body, "status", "mock")
}
