// Package scan implements the audit pipeline's stage family: index health,
// law structure, judgment content quality, cross-reference integrity, and
// the two AI-assisted quality passes. Stages are read-only against the
// corpus; each returns its findings for the orchestrator to persist.
package scan

import (
	"context"
	"log/slog"
	"runtime"

	"marsad/internal/ai"
	"marsad/internal/audit"
	"marsad/internal/config"
	"marsad/internal/corpus"
	"marsad/internal/logging"
)

// Deps carries everything a stage needs to run.
type Deps struct {
	Repo    corpus.Repository
	Gateway *ai.Gateway
	Cfg     config.Audit
	Logger  *slog.Logger
}

func (d Deps) logger(component string) *slog.Logger {
	base := d.Logger
	if base == nil {
		base = logging.NewNop()
	}
	return base.With(logging.String(logging.FieldComponent, component))
}

// Stages returns the audit pipeline in execution order with its fixed
// progress checkpoints.
func Stages(deps Deps) []audit.Stage {
	return []audit.Stage{
		{
			Name:       "health",
			Label:      "فحص سلامة الفهارس والجداول",
			Checkpoint: 5,
			Scan:       healthStage(deps),
		},
		{
			Name:       "structural",
			Label:      "الفحص البنيوي للقوانين",
			Checkpoint: 30,
			Scan:       structuralStage(deps),
		},
		{
			Name:       "content",
			Label:      "فحص جودة نصوص الأحكام",
			Checkpoint: 50,
			Scan:       contentStage(deps),
		},
		{
			Name:       "reference",
			Label:      "فحص الإحالات بين المواد",
			Checkpoint: 60,
			Scan:       referenceStage(deps),
		},
		{
			Name:       "ai-law",
			Label:      "التحليل الآلي للقوانين",
			Checkpoint: 80,
			Scan:       aiLawStage(deps),
		},
		{
			Name:       "ai-judgment",
			Label:      "التحليل الآلي للأحكام",
			Checkpoint: 95,
			Scan:       aiJudgmentStage(deps),
		},
	}
}

// yield gives the scheduler a chance between batches during long scans and
// observes cancellation.
func yield(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		runtime.Gosched()
		return nil
	}
}

// batchSize normalizes the configured scan batch size.
func batchSize(cfg config.Audit) int {
	if cfg.ScanBatchSize <= 0 {
		return 50
	}
	return cfg.ScanBatchSize
}
