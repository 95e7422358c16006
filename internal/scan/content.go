package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"marsad/internal/arabiclex"
	"marsad/internal/audit"
	"marsad/internal/corpus"
	"marsad/internal/findings"
)

// contentStage samples judgments proportionally across sources, capped at a
// configured maximum, and flags empty text, suspiciously short (truncated)
// text, and leftover OCR artifacts. Artifact kinds feed the shared context
// so the AI stages can hunt for the same damage.
func contentStage(deps Deps) func(context.Context, *audit.Context) (audit.Result, error) {
	return func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
		result := audit.Result{Category: findings.CategoryContent}

		bySource, err := deps.Repo.JudgmentIDs(ctx)
		if err != nil {
			return result, fmt.Errorf("listing judgments: %w", err)
		}
		sampled := sampleJudgments(bySource, deps.Cfg.JudgmentSampleMax)
		batch := batchSize(deps.Cfg)

		for i, pick := range sampled {
			if i > 0 && i%batch == 0 {
				if err := yield(ctx); err != nil {
					return result, err
				}
			}
			result.ItemsScanned++

			judgment, err := deps.Repo.Judgment(ctx, pick.id)
			if err != nil {
				result.Findings = append(result.Findings, findings.Finding{
					Severity:   findings.SeverityCritical,
					Code:       "UNREADABLE_JUDGMENT",
					Category:   findings.CategoryContent,
					EntityType: findings.EntityJudgment,
					EntityID:   pick.id,
					Message:    fmt.Sprintf("تعذّرت قراءة سجل الحكم: %v", err),
				})
				shared.RecordJudgment(pick.source, true)
				continue
			}

			judgmentFindings := checkJudgment(judgment, deps.Cfg.TruncationMinLength)
			for _, f := range judgmentFindings {
				if f.Code == "OCR_ARTIFACT" {
					shared.AddOCRPattern(f.Location)
				}
			}
			result.Findings = append(result.Findings, judgmentFindings...)
			shared.RecordJudgment(judgment.Source, len(judgmentFindings) > 0)
		}

		return result, nil
	}
}

func checkJudgment(judgment *corpus.Judgment, truncationMin int) []findings.Finding {
	var out []findings.Finding
	text := strings.TrimSpace(judgment.Text)

	if text == "" {
		out = append(out, findings.Finding{
			Severity:   findings.SeverityHigh,
			Code:       "EMPTY_TEXT",
			Category:   findings.CategoryContent,
			EntityType: findings.EntityJudgment,
			EntityID:   judgment.ID,
			EntityName: judgment.Court,
			Message:    "نص الحكم فارغ",
		})
		return out
	}

	if length := utf8.RuneCountInString(text); truncationMin > 0 && length < truncationMin {
		out = append(out, findings.Finding{
			Severity:   findings.SeverityMedium,
			Code:       "TRUNCATED_TEXT",
			Category:   findings.CategoryContent,
			EntityType: findings.EntityJudgment,
			EntityID:   judgment.ID,
			EntityName: judgment.Court,
			Message:    fmt.Sprintf("نص الحكم قصير بشكل غير معتاد (%d حرفًا)، يُرجّح أنه مبتور", length),
			Details:    findings.ContentDetails{TextLength: length},
		})
	}

	for _, artifact := range arabiclex.DetectArtifacts(text) {
		out = append(out, findings.Finding{
			Severity:   findings.SeverityMedium,
			Code:       "OCR_ARTIFACT",
			Category:   findings.CategoryContent,
			EntityType: findings.EntityJudgment,
			EntityID:   judgment.ID,
			EntityName: judgment.Court,
			Message:    fmt.Sprintf("بقايا مسح ضوئي في النص (%s): %s", artifact.Kind, artifact.Sample),
			Location:   string(artifact.Kind),
			Details:    findings.ContentDetails{ArtifactKind: string(artifact.Kind), Sample: artifact.Sample},
		})
	}

	return out
}

type sampledJudgment struct {
	source string
	id     string
}

// sampleJudgments picks evenly spaced judgments from each source,
// proportional to the source's share of the corpus, capped at max total.
// When the corpus fits under the cap everything is scanned.
func sampleJudgments(bySource map[string][]string, max int) []sampledJudgment {
	total := 0
	sources := make([]string, 0, len(bySource))
	for source, ids := range bySource {
		total += len(ids)
		sources = append(sources, source)
	}
	if total == 0 {
		return nil
	}
	sort.Strings(sources)

	var picks []sampledJudgment
	if max <= 0 || total <= max {
		for _, source := range sources {
			for _, id := range bySource[source] {
				picks = append(picks, sampledJudgment{source, id})
			}
		}
		return picks
	}

	for _, source := range sources {
		ids := bySource[source]
		quota := len(ids) * max / total
		if quota < 1 {
			quota = 1
		}
		stride := len(ids) / quota
		if stride < 1 {
			stride = 1
		}
		for i := 0; i < len(ids) && len(picks) < max; i += stride {
			picks = append(picks, sampledJudgment{source, ids[i]})
		}
	}
	return picks
}
