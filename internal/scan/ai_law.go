package scan

import (
	"context"
	"fmt"
	"strings"

	"marsad/internal/audit"
	"marsad/internal/corpus"
	"marsad/internal/findings"
)

// aiLawStage sends a prioritized subset of laws through the AI gateway for
// a quality pass. Laws the reference stage flagged go first. An unconfigured
// gateway degrades to a single informational finding.
func aiLawStage(deps Deps) func(context.Context, *audit.Context) (audit.Result, error) {
	return func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
		if deps.Gateway == nil || !deps.Gateway.Configured() {
			return notConfiguredResult(findings.CategoryAILaw, "ai-law"), nil
		}
		logger := deps.logger("scan-ai-law")

		items, err := collectLawItems(ctx, deps, shared)
		if err != nil {
			return audit.Result{Category: findings.CategoryAILaw}, err
		}
		return runAIBatches(ctx, deps, shared,
			findings.CategoryAILaw, findings.EntityLaw,
			"ai-law", lawSystemPrompt, items, logger)
	}
}

func collectLawItems(ctx context.Context, deps Deps, shared *audit.Context) ([]aiItem, error) {
	ids, err := deps.Repo.LawIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing laws: %w", err)
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

	items := make([]aiItem, 0, limit)
	// Two passes: flagged laws first, then the rest until the budget fills.
	for _, flaggedOnly := range []bool{true, false} {
		for _, id := range ids {
			if len(items) >= limit {
				return items, nil
			}
			if shared.HasBrokenRefs(id) != flaggedOnly {
				continue
			}
			law, err := deps.Repo.Law(ctx, id)
			if err != nil {
				// Structural already reported the unreadable document.
				continue
			}
			priority := 1
			if flaggedOnly {
				priority = 0
			}
			items = append(items, aiItem{
				ID:       law.ID,
				Name:     law.Name,
				Excerpt:  excerpt(lawText(law)),
				priority: priority,
			})
		}
	}
	return items, nil
}

func lawText(law *corpus.Law) string {
	var sb strings.Builder
	sb.WriteString(law.Title)
	for _, article := range law.Articles {
		fmt.Fprintf(&sb, "\nالمادة %d: %s", article.Number, article.Text)
		if sb.Len() > excerptMaxRunes*4 {
			break
		}
	}
	return sb.String()
}
