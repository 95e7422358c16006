package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured indicates no provider credentials are available.
var ErrNotConfigured = errors.New("ai gateway: not configured")

// Gateway fans one Analyze call across an ordered provider chain. Each
// provider gets the full retry budget before the next is tried; only the
// last provider's error is surfaced.
type Gateway struct {
	clients []*client
}

// Option customizes gateway construction (primarily for tests).
type Option func(*gatewayOptions)

type gatewayOptions struct {
	httpClient *http.Client
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleeper    func(time.Duration)
}

// WithHTTPClient overrides the default HTTP client on every provider.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *gatewayOptions) { o.httpClient = httpClient }
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(o *gatewayOptions) {
		o.baseDelay = baseDelay
		o.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *gatewayOptions) { o.sleeper = sleeper }
}

// NewGateway constructs a gateway from configuration. A gateway with no API
// key is valid but unconfigured; Analyze returns ErrNotConfigured and the AI
// stages degrade gracefully.
func NewGateway(cfg Config, opts ...Option) *Gateway {
	options := &gatewayOptions{}
	for _, opt := range opts {
		opt(options)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return &Gateway{}
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	gw := &Gateway{}
	for _, provider := range cfg.Providers {
		if strings.TrimSpace(provider.BaseURL) == "" || strings.TrimSpace(provider.Model) == "" {
			continue
		}
		var clientOpts []clientOption
		if options.httpClient != nil {
			clientOpts = append(clientOpts, withHTTPClient(options.httpClient))
		}
		if options.baseDelay > 0 || options.maxDelay > 0 {
			clientOpts = append(clientOpts, withRetryBackoff(options.baseDelay, options.maxDelay))
		}
		if options.sleeper != nil {
			clientOpts = append(clientOpts, withSleeper(options.sleeper))
		}
		gw.clients = append(gw.clients, newClient(apiKey, provider, timeout, cfg.RetryAttempts, clientOpts...))
	}
	return gw
}

// Configured reports whether at least one provider is usable.
func (g *Gateway) Configured() bool {
	return g != nil && len(g.clients) > 0
}

// Analyze sends the prompt pair to the provider chain and returns the raw
// response text, expected to parse as JSON.
func (g *Gateway) Analyze(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return "", errors.New("ai analyze: system prompt required")
	}
	if userPrompt == "" {
		return "", errors.New("ai analyze: user prompt required")
	}

	var lastErr error
	for _, c := range g.clients {
		content, err := c.complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return content, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// Model returns the primary provider's model name for diagnostics.
func (g *Gateway) Model() string {
	if !g.Configured() {
		return ""
	}
	return g.clients[0].provider.Model
}

// DecodeJSON decodes JSON from a provider response, tolerating common
// formatting quirks: code fences, the expected array wrapped inside an
// object, and surrounding prose. Parsing falls back to extracting the first
// well-formed JSON array or object substring before giving up.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, snippet(sanitized))
	}
	return nil
}

// DecodeJSONArray is DecodeJSON specialized for callers expecting a JSON
// array: when the provider wraps the array in an object, the first array
// value found inside the object is used.
func DecodeJSONArray(content string, target any) error {
	if err := DecodeJSON(content, target); err == nil {
		return nil
	}
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON array in payload (snippet: %s)", snippet(trimmed))
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), target)
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
