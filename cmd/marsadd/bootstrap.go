package main

import (
	"log/slog"
	"strings"

	"marsad/internal/ai"
	"marsad/internal/audit"
	"marsad/internal/config"
	"marsad/internal/corpus/lawfiles"
	"marsad/internal/findings"
	"marsad/internal/scan"
)

// buildRunner assembles the audit pipeline: file-backed corpus, AI gateway
// with optional fallback provider, scan stages, and the summary builder.
func buildRunner(cfg *config.Config, store *findings.Store, logger *slog.Logger) *audit.Runner {
	repo := lawfiles.New(cfg.Paths.LawsDir, cfg.Paths.JudgmentsDir)
	gateway := buildGateway(cfg)

	stages := scan.Stages(scan.Deps{
		Repo:    repo,
		Gateway: gateway,
		Cfg:     cfg.Audit,
		Logger:  logger,
	})
	summarizer := audit.NewSummaryBuilder(gateway, cfg.Audit.SummaryMaxContextLen, logger)

	return audit.NewRunner(store, stages, summarizer, cfg.Audit, logger)
}

// buildGateway wires the provider chain: the primary endpoint plus an
// optional fallback that reuses primary fields when only partially set.
func buildGateway(cfg *config.Config) *ai.Gateway {
	providers := []ai.Provider{{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}}
	if strings.TrimSpace(cfg.LLM.FallbackBaseURL) != "" || strings.TrimSpace(cfg.LLM.FallbackModel) != "" {
		fallback := ai.Provider{
			BaseURL: cfg.LLM.FallbackBaseURL,
			Model:   cfg.LLM.FallbackModel,
		}
		if strings.TrimSpace(fallback.BaseURL) == "" {
			fallback.BaseURL = cfg.LLM.BaseURL
		}
		if strings.TrimSpace(fallback.Model) == "" {
			fallback.Model = cfg.LLM.Model
		}
		providers = append(providers, fallback)
	}
	return ai.NewGateway(ai.Config{
		APIKey:         cfg.LLM.APIKey,
		Providers:      providers,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		RetryAttempts:  cfg.LLM.RetryAttempts,
	})
}
