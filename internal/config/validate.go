package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LawsDir) == "" {
		return errors.New("paths.laws_dir must be set")
	}
	if strings.TrimSpace(c.Paths.JudgmentsDir) == "" {
		return errors.New("paths.judgments_dir must be set")
	}
	return nil
}

func (c *Config) validateAudit() error {
	if c.Audit.FTSTolerancePercent > 100 {
		return fmt.Errorf("audit.fts_tolerance_percent must be <= 100, got %d", c.Audit.FTSTolerancePercent)
	}
	if c.Audit.AIBatchSize > c.Audit.JudgmentSampleMax {
		return fmt.Errorf("audit.ai_batch_size (%d) must not exceed audit.judgment_sample_max (%d)",
			c.Audit.AIBatchSize, c.Audit.JudgmentSampleMax)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
