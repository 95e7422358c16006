// Package daemonctl provides the HTTP client the CLI uses to talk to a
// running marsad daemon.
package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marsad/internal/api"
	"marsad/internal/config"
)

// ErrDaemonUnavailable marks connection-level failures so the CLI can print
// a friendly "is the daemon running?" hint.
var ErrDaemonUnavailable = errors.New("marsad daemon unavailable")

// Client is a thin HTTP wrapper over the daemon control surface.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client from the daemon bind address in cfg.
func New(cfg *config.Config) (*Client, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address not configured")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(cfg.Paths.APIToken),
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// FindingsQuery mirrors the findings list filters.
type FindingsQuery struct {
	RunID      int64
	Severity   string
	Category   string
	Status     string
	EntityType string
	Page       int
	Limit      int
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var payload api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &payload)
	return payload, err
}

// StartRun triggers a new audit run. ErrAlreadyRunning surfaces as an error
// carrying the daemon's message.
func (c *Client) StartRun(ctx context.Context) (api.RunStartedResponse, error) {
	var payload api.RunStartedResponse
	err := c.do(ctx, http.MethodPost, "/api/audit/run", nil, nil, &payload)
	return payload, err
}

// Status fetches the latest run, nil when no audit has ever executed.
func (c *Client) Status(ctx context.Context) (*api.Run, error) {
	var payload api.RunStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/audit/status", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Run, nil
}

// Findings fetches one filtered page of findings.
func (c *Client) Findings(ctx context.Context, q FindingsQuery) (api.FindingsListResponse, error) {
	values := url.Values{}
	if q.RunID > 0 {
		values.Set("run_id", strconv.FormatInt(q.RunID, 10))
	}
	if q.Severity != "" {
		values.Set("severity", q.Severity)
	}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.EntityType != "" {
		values.Set("entity_type", q.EntityType)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	var payload api.FindingsListResponse
	err := c.do(ctx, http.MethodGet, "/api/audit/findings", values, nil, &payload)
	return payload, err
}

// UpdateFindingStatus applies a triage action to one finding.
func (c *Client) UpdateFindingStatus(ctx context.Context, id int64, status string) (bool, error) {
	body := api.StatusUpdateRequest{Status: status}
	var payload api.StatusUpdateResponse
	path := fmt.Sprintf("/api/audit/findings/%d/status", id)
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &payload); err != nil {
		return false, err
	}
	return payload.Updated, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
