package conformance_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

// doRequest makes an HTTP request to the test server and returns the response.
// The caller is responsible for closing the response body.
func doRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, serverURL+path, bodyReader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// readJSON reads the response body and unmarshals it into a map.
func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("unmarshal response (status %d): body=%s err=%v", resp.StatusCode, string(b), err)
	}
	return result
}

// mustStatus asserts the HTTP response has the expected status code.
func mustStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d; body=%s", expected, resp.StatusCode, string(b))
	}
}

// resetServer calls POST /_pipemon/reset to return the health store to its
// seeded state.
func resetServer(t *testing.T) {
	t.Helper()
	resp := doRequest(t, http.MethodPost, "/_pipemon/reset", nil)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("reset server failed: status=%d body=%s", resp.StatusCode, string(b))
	}
}

// assertErrorEnvelope validates the response matches the API error format.
func assertErrorEnvelope(t *testing.T, body map[string]any, expectedCategory string) {
	t.Helper()
	assertStringField(t, body, "status", "error")
	assertFieldPresent(t, body, "message")
	assertFieldPresent(t, body, "correlationId")
	if expectedCategory != "" {
		assertStringField(t, body, "category", expectedCategory)
	}
}

// assertFieldPresent checks that a key exists in the map.
func assertFieldPresent(t *testing.T, m map[string]any, key string) {
	t.Helper()
	if _, ok := m[key]; !ok {
		t.Errorf("expected field %q to be present, got keys: %v", key, mapKeys(m))
	}
}

// fieldAs returns m[key] as a T, reporting a missing key or wrong JSON type.
func fieldAs[T any](t *testing.T, m map[string]any, key string) (T, bool) {
	t.Helper()
	var zero T
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present, got keys: %v", key, mapKeys(m))
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		t.Errorf("field %q: expected %T, got %T", key, zero, v)
		return zero, false
	}
	return typed, true
}

func assertStringField(t *testing.T, m map[string]any, key, expected string) {
	t.Helper()
	if s, ok := fieldAs[string](t, m, key); ok && s != expected {
		t.Errorf("field %q: expected %q, got %q", key, expected, s)
	}
}

func assertBoolField(t *testing.T, m map[string]any, key string, expected bool) {
	t.Helper()
	if b, ok := fieldAs[bool](t, m, key); ok && b != expected {
		t.Errorf("field %q: expected %v, got %v", key, expected, b)
	}
}

func assertIsString(t *testing.T, m map[string]any, key string) string {
	t.Helper()
	s, _ := fieldAs[string](t, m, key)
	return s
}

func assertIsArray(t *testing.T, m map[string]any, key string) []any {
	t.Helper()
	a, _ := fieldAs[[]any](t, m, key)
	return a
}

func assertIsObject(t *testing.T, m map[string]any, key string) map[string]any {
	t.Helper()
	o, _ := fieldAs[map[string]any](t, m, key)
	return o
}

// assertISOTimestamp checks that a string value is a valid ISO 8601 timestamp.
func assertISOTimestamp(t *testing.T, value string) {
	t.Helper()
	if value == "" {
		t.Error("expected non-empty ISO timestamp")
		return
	}
	if _, err := time.Parse(time.RFC3339Nano, value); err != nil {
		t.Errorf("value %q is not an RFC 3339 timestamp: %v", value, err)
	}
}

// assertPagination checks the page metadata returned by the workflow endpoints.
func assertPagination(t *testing.T, body map[string]any, page, pageSize, total int, hasMore bool) {
	t.Helper()
	p := assertIsObject(t, body, "pagination")
	if p == nil {
		return
	}
	for key, want := range map[string]int{"page": page, "page_size": pageSize, "total": total} {
		if got, ok := p[key].(float64); !ok || int(got) != want {
			t.Errorf("pagination %s: expected %d, got %v", key, want, p[key])
		}
	}
	assertBoolField(t, p, "has_more", hasMore)
	if v, ok := p["next_cursor"]; !ok || v != nil {
		t.Errorf("expected next_cursor null, got %v", v)
	}
}

// toObject converts a slice element to a map.
func toObject(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", v)
	}
	return m
}

// mapKeys returns the keys of a map for diagnostic output.
func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
