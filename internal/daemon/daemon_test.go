package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"marsad/internal/api"
	"marsad/internal/audit"
	"marsad/internal/config"
	"marsad/internal/findings"
	"marsad/internal/logging"
	"marsad/internal/testsupport"
)

type testHarness struct {
	daemon  *Daemon
	store   *findings.Store
	baseURL string
	release chan struct{}
}

// newHarness starts a daemon on an ephemeral port with one controllable
// stage that blocks until release is closed.
func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *testHarness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)

	release := make(chan struct{})
	stages := []audit.Stage{{
		Name:       "structural",
		Label:      "الفحص البنيوي",
		Checkpoint: 30,
		Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return audit.Result{}, ctx.Err()
			}
			return audit.Result{
				Category:     findings.CategoryStructural,
				ItemsScanned: 1,
				Findings: []findings.Finding{{
					Severity:   findings.SeverityHigh,
					Code:       "MISSING_MANDATORY_FIELD",
					Category:   findings.CategoryStructural,
					EntityType: findings.EntityLaw,
					EntityID:   "law-1",
					Message:    "حقل مفقود",
					Location:   "law_name",
				}},
			}, nil
		},
	}}
	runner := audit.NewRunner(store, stages, noopSummarizer{}, cfg.Audit, logging.NewNop())

	d, err := New(cfg, store, runner, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	return &testHarness{
		daemon:  d,
		store:   store,
		baseURL: "http://" + d.api.listener.Addr().String(),
		release: release,
	}
}

type noopSummarizer struct{}

func (noopSummarizer) Summarize(context.Context, *findings.Run, *audit.Context) (string, error) {
	return "", nil
}

func (h *testHarness) request(t *testing.T, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, buf.Bytes()
}

func (h *testHarness) finishRun(t *testing.T, runID int64) {
	t.Helper()
	close(h.release)
	h.daemon.runner.Wait()
	run, err := h.store.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != findings.RunCompleted {
		t.Fatalf("expected completed run, got %s (%s)", run.Status, run.ErrorMessage)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	resp, body := h.request(t, http.MethodGet, "/api/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health api.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.StorePath == "" {
		t.Fatalf("unexpected health payload: %+v", health)
	}
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)

	resp, body := h.request(t, http.MethodPost, "/api/audit/run", nil, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}
	var started api.RunStartedResponse
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	if started.RunID == 0 {
		t.Fatal("expected run id")
	}

	// A second trigger while the stage is blocked conflicts.
	resp, body = h.request(t, http.MethodPost, "/api/audit/run", nil, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.StatusCode, body)
	}

	resp, body = h.request(t, http.MethodGet, "/api/audit/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status api.RunStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Run == nil || status.Run.ID != started.RunID || status.Run.Status != "running" {
		t.Fatalf("unexpected status payload: %+v", status.Run)
	}

	h.finishRun(t, started.RunID)

	resp, body = h.request(t, http.MethodGet, "/api/audit/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Run.Status != "completed" || status.Run.ProgressPct != 100 {
		t.Fatalf("unexpected final status: %+v", status.Run)
	}
}

func TestStatusWithoutRuns(t *testing.T) {
	h := newHarness(t)
	resp, body := h.request(t, http.MethodGet, "/api/audit/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status api.RunStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Run != nil {
		t.Fatalf("expected null run, got %+v", status.Run)
	}
}

func TestFindingsEndpointFiltersAndTriage(t *testing.T) {
	h := newHarness(t)

	resp, body := h.request(t, http.MethodPost, "/api/audit/run", nil, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var started api.RunStartedResponse
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	h.finishRun(t, started.RunID)

	resp, body = h.request(t, http.MethodGet,
		fmt.Sprintf("/api/audit/findings?run_id=%d&severity=high", started.RunID), nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var listing api.FindingsListResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode findings: %v", err)
	}
	if listing.Total != 1 || len(listing.Findings) != 1 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	finding := listing.Findings[0]
	if finding.Code != "MISSING_MANDATORY_FIELD" || finding.Status != "open" {
		t.Fatalf("unexpected finding: %+v", finding)
	}

	resp, body = h.request(t, http.MethodPatch,
		fmt.Sprintf("/api/audit/findings/%d/status", finding.ID),
		api.StatusUpdateRequest{Status: "acknowledged"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var updated api.StatusUpdateResponse
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if !updated.Updated {
		t.Fatal("expected update to succeed")
	}
}

func TestFindingsEndpointRejectsBadFilters(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.request(t, http.MethodGet, "/api/audit/findings?severity=urgent", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown severity, got %d", resp.StatusCode)
	}
	resp, _ = h.request(t, http.MethodGet, "/api/audit/findings?status=archived", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
	resp, _ = h.request(t, http.MethodGet, "/api/audit/findings?page=abc", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric page, got %d", resp.StatusCode)
	}
}

func TestFindingStatusRejectsUnknownValue(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.request(t, http.MethodPatch, "/api/audit/findings/1/status",
		api.StatusUpdateRequest{Status: "archived"}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status value, got %d", resp.StatusCode)
	}
}

func TestBearerTokenGuardsMutations(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("secret-token"))

	// Reads stay open.
	resp, _ := h.request(t, http.MethodGet, "/api/audit/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected unauthenticated read to pass, got %d", resp.StatusCode)
	}

	resp, _ = h.request(t, http.MethodPost, "/api/audit/run", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = h.request(t, http.MethodPost, "/api/audit/run", nil, "wrong-token")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	resp, _ = h.request(t, http.MethodPost, "/api/audit/run", nil, "secret-token")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 with valid token, got %d", resp.StatusCode)
	}
}

func TestSecondDaemonInstanceRejected(t *testing.T) {
	h := newHarness(t)

	second, err := New(h.daemon.cfg, h.store, h.daemon.runner, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail acquiring the lock")
	}
}

func TestDaemonStopWaitsForRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	started := make(chan struct{})
	stages := []audit.Stage{{
		Name:       "slow",
		Label:      "بطيء",
		Checkpoint: 50,
		Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
			close(started)
			<-ctx.Done()
			return audit.Result{}, ctx.Err()
		},
	}}
	runner := audit.NewRunner(store, stages, noopSummarizer{}, cfg.Audit, logging.NewNop())
	d, err := New(cfg, store, runner, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}

	run, err := d.StartAudit()
	if err != nil {
		t.Fatalf("StartAudit failed: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("stage never started")
	}

	d.Stop()

	final, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if final.Status != findings.RunFailed {
		t.Fatalf("expected canceled run marked failed, got %s", final.Status)
	}
}

func TestConfigOverridesBindAddress(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIBind = ""
	d := &Daemon{cfg: &cfg, store: &findings.Store{}}
	if _, err := newAPIServer(&cfg, d, logging.NewNop()); err == nil {
		t.Fatal("expected error for empty bind address")
	}
}
