// Package testsupport provides shared helpers for package tests: temp-dir
// configs, store setup, and an in-memory corpus fixture.
package testsupport

import (
	"path/filepath"
	"testing"

	"marsad/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LawsDir = filepath.Join(base, "laws")
	cfg.Paths.JudgmentsDir = filepath.Join(base, "judgments")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Audit.AIBatchDelaySeconds = 0
	cfg.Audit.StaleRunMinutes = 30

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithLLMKey sets the AI provider key so the gateway reports configured.
func WithLLMKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.APIKey = key
	}
}

// WithAPIToken enables bearer-token auth on the test daemon.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}
