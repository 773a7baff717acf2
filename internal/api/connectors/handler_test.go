package connectors_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/johnwards/pipemon/internal/api"
	"github.com/johnwards/pipemon/internal/api/connectors"
	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/dcl"
)

type fixture struct {
	srv    *httptest.Server
	reg    *dcl.Registry
	probes *atomic.Int32
	live   *connector.Lifecycle
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	probes := &atomic.Int32{}

	live := connector.NewLifecycle("healthdb", true, connector.Hooks{
		Probe: func(context.Context) error {
			probes.Add(1)
			return nil
		},
	})
	if err := live.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	mock := connector.NewLifecycle("salesforce", true, connector.Hooks{
		Credentials: func() error {
			return &connector.ConfigurationError{Connector: "salesforce", Missing: []string{"SALESFORCE_USERNAME"}}
		},
	})
	if err := mock.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	reg := dcl.NewRegistry()
	reg.Register("healthdb", nil, live.Describe("Health Store (SQL)", "customer health scores"), live)
	reg.Register("salesforce", nil, mock.Describe("Salesforce CRM", "opportunities and accounts"), mock)
	reg.Register("static", nil, connector.Metadata{Type: "Static", Status: connector.StatusHealthy}, nil)

	mux := http.NewServeMux()
	connectors.RegisterRoutes(mux, reg)
	srv := httptest.NewServer(api.Chain(mux, api.RequestID()))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, reg: reg, probes: probes, live: live}
}

func getList(t *testing.T, url string) []connectors.Info {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out []connectors.Info
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestListSortedWithHealth(t *testing.T) {
	f := setup(t)

	out := getList(t, f.srv.URL+"/api/dcl/connectors")
	if len(out) != 3 {
		t.Fatalf("expected 3 connectors, got %d", len(out))
	}
	if out[0].Name != "healthdb" || out[1].Name != "salesforce" || out[2].Name != "static" {
		t.Errorf("unexpected order: %s, %s, %s", out[0].Name, out[1].Name, out[2].Name)
	}
	if out[0].Health == nil || !out[0].Health.Healthy {
		t.Errorf("expected healthdb healthy, got %+v", out[0].Health)
	}
	if out[0].LastChecked == nil {
		t.Error("expected last_checked for probed connector")
	}
	if out[1].Status != connector.StatusMock || out[1].Error == "" {
		t.Errorf("expected salesforce mock with error, got %s %q", out[1].Status, out[1].Error)
	}
	if out[1].Health == nil || out[1].Health.Healthy {
		t.Errorf("mock connector must not be healthy: %+v", out[1].Health)
	}
	if out[2].Health != nil {
		t.Error("connector without a handle has no health")
	}
}

func TestListReusesFreshProbe(t *testing.T) {
	f := setup(t)

	getList(t, f.srv.URL+"/api/dcl/connectors")
	getList(t, f.srv.URL+"/api/dcl/connectors")
	if got := f.probes.Load(); got != 1 {
		t.Errorf("expected 1 probe, got %d", got)
	}

	getList(t, f.srv.URL+"/api/dcl/connectors?force_check=true")
	if got := f.probes.Load(); got != 2 {
		t.Errorf("expected forced probe, got %d probes", got)
	}
}

func TestListInvalidForceCheck(t *testing.T) {
	f := setup(t)

	resp, err := http.Get(f.srv.URL + "/api/dcl/connectors?force_check=maybe")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var apiErr api.Error
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Category != api.CategoryValidationError {
		t.Errorf("expected VALIDATION_ERROR, got %s", apiErr.Category)
	}
}

func TestGet(t *testing.T) {
	f := setup(t)

	resp, err := http.Get(f.srv.URL + "/api/dcl/connectors/salesforce")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var info connectors.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Type != "Salesforce CRM" {
		t.Errorf("unexpected type %q", info.Type)
	}
}

func TestGetNotFound(t *testing.T) {
	f := setup(t)

	resp, err := http.Get(f.srv.URL + "/api/dcl/connectors/hubspot")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var apiErr api.Error
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Category != api.CategoryObjectNotFound {
		t.Errorf("expected OBJECT_NOT_FOUND, got %s", apiErr.Category)
	}
	if apiErr.CorrelationID == "" {
		t.Error("expected correlation id")
	}
}

func doDelete(t *testing.T, url string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestDelete(t *testing.T) {
	f := setup(t)

	if code := doDelete(t, f.srv.URL+"/api/dcl/connectors/healthdb"); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if _, ok := f.reg.Status("healthdb"); ok {
		t.Error("connector still registered")
	}
	if f.live.State() != connector.StateDisconnected {
		t.Errorf("expected handle closed, state %s", f.live.State())
	}
	if code := doDelete(t, f.srv.URL+"/api/dcl/connectors/healthdb"); code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", code)
	}
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestReconnect(t *testing.T) {
	f := setup(t)
	if err := f.live.Close(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp := post(t, f.srv.URL+"/api/dcl/connectors/healthdb/reconnect")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var info connectors.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Status != connector.StatusHealthy {
		t.Errorf("expected healthy after reconnect, got %s", info.Status)
	}
}

func TestReconnectFailureWithoutMock(t *testing.T) {
	f := setup(t)
	strict := connector.NewLifecycle("usage", false, connector.Hooks{
		Open: func(context.Context) error { return errors.New("connection refused") },
	})
	f.reg.Register("usage", nil, connector.Metadata{Type: "Usage"}, strict)

	resp := post(t, f.srv.URL+"/api/dcl/connectors/usage/reconnect")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var apiErr api.Error
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Category != api.CategoryConnectorError {
		t.Errorf("expected CONNECTOR_ERROR, got %s", apiErr.Category)
	}
}

func TestReconnectWithoutHandle(t *testing.T) {
	f := setup(t)

	if resp := post(t, f.srv.URL+"/api/dcl/connectors/static/reconnect"); resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
	if resp := post(t, f.srv.URL+"/api/dcl/connectors/nope/reconnect"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
