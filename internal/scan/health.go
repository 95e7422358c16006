package scan

import (
	"context"
	"fmt"

	"marsad/internal/audit"
	"marsad/internal/findings"
)

// healthStage checks full-text index consistency and minimum table sizes.
// It is fully deterministic and never samples.
func healthStage(deps Deps) func(context.Context, *audit.Context) (audit.Result, error) {
	return func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
		result := audit.Result{Category: findings.CategoryHealth}

		stats, err := deps.Repo.IndexStats(ctx)
		if err != nil {
			return result, fmt.Errorf("reading index stats: %w", err)
		}
		tolerance := deps.Cfg.FTSTolerancePercent
		for _, stat := range stats {
			result.ItemsScanned++
			if stat.SourceRows > 0 && stat.IndexRows == 0 {
				result.Findings = append(result.Findings, findings.Finding{
					Severity:   findings.SeverityCritical,
					Code:       "FTS_EMPTY",
					Category:   findings.CategoryHealth,
					EntityType: findings.EntityIndex,
					EntityID:   stat.Name,
					EntityName: stat.Name,
					Message: fmt.Sprintf("فهرس البحث %s فارغ بينما الجدول %s يحتوي %d سجلًا",
						stat.Name, stat.Table, stat.SourceRows),
					Details: findings.HealthDetails{IndexRows: stat.IndexRows, SourceRows: stat.SourceRows},
				})
				continue
			}
			if exceedsTolerance(stat.IndexRows, stat.SourceRows, tolerance) {
				result.Findings = append(result.Findings, findings.Finding{
					Severity:   findings.SeverityHigh,
					Code:       "FTS_MISMATCH",
					Category:   findings.CategoryHealth,
					EntityType: findings.EntityIndex,
					EntityID:   stat.Name,
					EntityName: stat.Name,
					Message: fmt.Sprintf("فهرس البحث %s يحتوي %d سجلًا بينما الجدول %s يحتوي %d",
						stat.Name, stat.IndexRows, stat.Table, stat.SourceRows),
					Details: findings.HealthDetails{IndexRows: stat.IndexRows, SourceRows: stat.SourceRows},
				})
			}
		}

		lawIDs, err := deps.Repo.LawIDs(ctx)
		if err != nil {
			return result, fmt.Errorf("listing laws: %w", err)
		}
		judgmentIDs, err := deps.Repo.JudgmentIDs(ctx)
		if err != nil {
			return result, fmt.Errorf("listing judgments: %w", err)
		}
		judgmentCount := 0
		for _, ids := range judgmentIDs {
			judgmentCount += len(ids)
		}

		for _, check := range []struct {
			table   string
			count   int
			minimum int
		}{
			{"laws", len(lawIDs), deps.Cfg.MinLawRecords},
			{"judgments", judgmentCount, deps.Cfg.MinJudgmentRecords},
		} {
			result.ItemsScanned++
			if check.minimum > 0 && check.count < check.minimum {
				result.Findings = append(result.Findings, findings.Finding{
					Severity:   findings.SeverityHigh,
					Code:       "TABLE_BELOW_MINIMUM",
					Category:   findings.CategoryHealth,
					EntityType: findings.EntityIndex,
					EntityID:   check.table,
					EntityName: check.table,
					Message: fmt.Sprintf("عدد سجلات %s هو %d وهو أقل من الحد الأدنى المتوقع %d",
						check.table, check.count, check.minimum),
					Details: findings.HealthDetails{SourceRows: check.count, Minimum: check.minimum},
				})
			}
		}

		return result, nil
	}
}

// exceedsTolerance reports whether index and source row counts diverge by
// more than tolerancePct percent of the source count.
func exceedsTolerance(indexRows, sourceRows, tolerancePct int) bool {
	if sourceRows == 0 {
		return indexRows != 0
	}
	diff := indexRows - sourceRows
	if diff < 0 {
		diff = -diff
	}
	return diff*100 > sourceRows*tolerancePct
}
