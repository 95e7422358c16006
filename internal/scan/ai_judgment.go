package scan

import (
	"context"
	"fmt"
	"sort"

	"marsad/internal/audit"
	"marsad/internal/findings"
)

// defectHeavyThreshold is the per-source defect rate above which the content
// stage's statistics promote a judgment source to the front of the AI queue.
const defectHeavyThreshold = 0.2

// aiJudgmentStage sends a prioritized subset of judgments through the AI
// gateway. Sources the content stage found defect-heavy are analyzed first.
func aiJudgmentStage(deps Deps) func(context.Context, *audit.Context) (audit.Result, error) {
	return func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
		if deps.Gateway == nil || !deps.Gateway.Configured() {
			return notConfiguredResult(findings.CategoryAIJudgment, "ai-judgment"), nil
		}
		logger := deps.logger("scan-ai-judgment")

		items, err := collectJudgmentItems(ctx, deps, shared)
		if err != nil {
			return audit.Result{Category: findings.CategoryAIJudgment}, err
		}
		return runAIBatches(ctx, deps, shared,
			findings.CategoryAIJudgment, findings.EntityJudgment,
			"ai-judgment", judgmentSystemPrompt, items, logger)
	}
}

func collectJudgmentItems(ctx context.Context, deps Deps, shared *audit.Context) ([]aiItem, error) {
	bySource, err := deps.Repo.JudgmentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing judgments: %w", err)
	}
	size := deps.Cfg.AIBatchSize
	if size <= 0 {
		size = 5
	}
	maxBatches := deps.Cfg.AIMaxBatches
	if maxBatches <= 0 {
		maxBatches = 3
	}
	limit := size * maxBatches

	heavy := shared.DefectHeavyJudgmentSources(defectHeavyThreshold)
	heavySet := make(map[string]bool, len(heavy))
	for _, source := range heavy {
		heavySet[source] = true
	}
	var rest []string
	for source := range bySource {
		if !heavySet[source] {
			rest = append(rest, source)
		}
	}
	sort.Strings(rest)
	ordered := append(heavy, rest...)

	items := make([]aiItem, 0, limit)
	for _, source := range ordered {
		for _, id := range bySource[source] {
			if len(items) >= limit {
				return items, nil
			}
			judgment, err := deps.Repo.Judgment(ctx, id)
			if err != nil {
				// Content already reported the unreadable record.
				continue
			}
			priority := 1
			if heavySet[source] {
				priority = 0
			}
			items = append(items, aiItem{
				ID:       judgment.ID,
				Name:     judgment.Court,
				Excerpt:  excerpt(judgment.Text),
				priority: priority,
			})
		}
	}
	return items, nil
}
