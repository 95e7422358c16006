package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeAudit()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LawsDir, err = expandPath(c.Paths.LawsDir); err != nil {
		return fmt.Errorf("paths.laws_dir: %w", err)
	}
	if c.Paths.JudgmentsDir, err = expandPath(c.Paths.JudgmentsDir); err != nil {
		return fmt.Errorf("paths.judgments_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.LLM.FallbackBaseURL = strings.TrimSpace(c.LLM.FallbackBaseURL)
	c.LLM.FallbackModel = strings.TrimSpace(c.LLM.FallbackModel)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeAudit() {
	if c.Audit.ScanBatchSize <= 0 {
		c.Audit.ScanBatchSize = defaultScanBatchSize
	}
	if c.Audit.JudgmentSampleMax <= 0 {
		c.Audit.JudgmentSampleMax = defaultJudgmentSampleMax
	}
	if c.Audit.AIBatchSize <= 0 {
		c.Audit.AIBatchSize = defaultAIBatchSize
	}
	if c.Audit.AIMaxBatches <= 0 {
		c.Audit.AIMaxBatches = defaultAIMaxBatches
	}
	if c.Audit.AIBatchDelaySeconds < 0 {
		c.Audit.AIBatchDelaySeconds = defaultAIBatchDelaySeconds
	}
	if c.Audit.StaleRunMinutes <= 0 {
		c.Audit.StaleRunMinutes = defaultStaleRunMinutes
	}
	if c.Audit.MinLawRecords < 0 {
		c.Audit.MinLawRecords = defaultMinLawRecords
	}
	if c.Audit.MinJudgmentRecords < 0 {
		c.Audit.MinJudgmentRecords = defaultMinJudgmentRecords
	}
	if c.Audit.FTSTolerancePercent <= 0 {
		c.Audit.FTSTolerancePercent = defaultFTSTolerancePercent
	}
	if c.Audit.TruncationMinLength <= 0 {
		c.Audit.TruncationMinLength = defaultTruncationMinLength
	}
	if c.Audit.SummaryMaxContextLen <= 0 {
		c.Audit.SummaryMaxContextLen = defaultSummaryMaxContextLen
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
