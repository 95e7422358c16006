package daemonctl_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marsad/internal/api"
	"marsad/internal/daemonctl"
	"marsad/internal/testsupport"
)

// newClient points a client at a canned daemon handler.
func newClient(t *testing.T, handler http.Handler, opts ...testsupport.ConfigOption) (*daemonctl.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIBind = strings.TrimPrefix(server.URL, "http://")
	client, err := daemonctl.New(cfg)
	if err != nil {
		t.Fatalf("daemonctl.New failed: %v", err)
	}
	return client, server
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode payload: %v", err)
	}
}

func TestClientHealth(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/health" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, api.HealthResponse{Status: "ok", StorePath: "/tmp/findings.db"})
	}))

	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != "ok" || health.StorePath != "/tmp/findings.db" {
		t.Fatalf("unexpected health payload: %+v", health)
	}
}

func TestClientStartRun(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/audit/run" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(t, w, http.StatusAccepted, api.RunStartedResponse{RunID: 12})
	}))

	started, err := client.StartRun(context.Background())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if started.RunID != 12 {
		t.Fatalf("expected run 12, got %d", started.RunID)
	}
}

func TestClientStartRunConflict(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusConflict, map[string]string{"error": "audit already running"})
	}))

	_, err := client.StartRun(context.Background())
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(err.Error(), "audit already running") || !strings.Contains(err.Error(), "409") {
		t.Fatalf("expected daemon message and status in error, got %v", err)
	}
}

func TestClientStatusNoRuns(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, api.RunStatusResponse{Run: nil})
	}))

	run, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %+v", run)
	}
}

func TestClientFindingsQueryEncoding(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		expect := map[string]string{
			"run_id":      "7",
			"severity":    "high",
			"category":    "structural",
			"status":      "open",
			"entity_type": "law",
			"page":        "2",
			"limit":       "25",
		}
		for key, want := range expect {
			if got := query.Get(key); got != want {
				t.Errorf("query %s = %q, want %q", key, got, want)
			}
		}
		writeJSON(t, w, http.StatusOK, api.FindingsListResponse{
			Findings: []api.Finding{{ID: 3, Code: "MISSING_MANDATORY_FIELD", Severity: "high"}},
			Total:    1,
			Page:     2,
			Limit:    25,
		})
	}))

	page, err := client.Findings(context.Background(), daemonctl.FindingsQuery{
		RunID:      7,
		Severity:   "high",
		Category:   "structural",
		Status:     "open",
		EntityType: "law",
		Page:       2,
		Limit:      25,
	})
	if err != nil {
		t.Fatalf("Findings failed: %v", err)
	}
	if page.Total != 1 || len(page.Findings) != 1 || page.Findings[0].Code != "MISSING_MANDATORY_FIELD" {
		t.Fatalf("unexpected findings page: %+v", page)
	}
}

func TestClientFindingsOmitsZeroFilters(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if encoded := r.URL.RawQuery; encoded != "" {
			t.Errorf("expected no query parameters, got %q", encoded)
		}
		writeJSON(t, w, http.StatusOK, api.FindingsListResponse{Page: 1, Limit: 50})
	}))

	if _, err := client.Findings(context.Background(), daemonctl.FindingsQuery{}); err != nil {
		t.Fatalf("Findings failed: %v", err)
	}
}

func TestClientUpdateFindingStatus(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/audit/findings/42/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body api.StatusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Status != "resolved" {
			t.Errorf("expected status resolved, got %q", body.Status)
		}
		writeJSON(t, w, http.StatusOK, api.StatusUpdateResponse{Updated: true})
	}))

	updated, err := client.UpdateFindingStatus(context.Background(), 42, "resolved")
	if err != nil {
		t.Fatalf("UpdateFindingStatus failed: %v", err)
	}
	if !updated {
		t.Fatal("expected update to be reported")
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer cli-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		writeJSON(t, w, http.StatusOK, api.HealthResponse{Status: "ok"})
	}), testsupport.WithAPIToken("cli-token"))

	if _, err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}

func TestClientDaemonUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = addr
	client, err := daemonctl.New(cfg)
	if err != nil {
		t.Fatalf("daemonctl.New failed: %v", err)
	}

	_, err = client.Health(context.Background())
	if !errors.Is(err, daemonctl.ErrDaemonUnavailable) {
		t.Fatalf("expected ErrDaemonUnavailable, got %v", err)
	}
}

func TestClientErrorWithoutJSONBody(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Health(context.Background())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected plain status error, got %v", err)
	}
}

func TestClientRequiresBindAddress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if _, err := daemonctl.New(cfg); err == nil {
		t.Fatal("expected error for empty bind address")
	}
}
