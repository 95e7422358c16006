package scan

import (
	"context"
	"fmt"

	"marsad/internal/arabiclex"
	"marsad/internal/audit"
	"marsad/internal/findings"
)

// referenceStage extracts intra-document article cross-references from every
// law and flags references to article numbers the law does not contain. Laws
// with broken references are recorded in the shared context so the AI-law
// stage prioritizes them.
func referenceStage(deps Deps) func(context.Context, *audit.Context) (audit.Result, error) {
	return func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
		result := audit.Result{Category: findings.CategoryReference}

		ids, err := deps.Repo.LawIDs(ctx)
		if err != nil {
			return result, fmt.Errorf("listing laws: %w", err)
		}
		batch := batchSize(deps.Cfg)

		for i, id := range ids {
			if i > 0 && i%batch == 0 {
				if err := yield(ctx); err != nil {
					return result, err
				}
			}

			law, err := deps.Repo.Law(ctx, id)
			if err != nil {
				// Structural already reported the unreadable document.
				continue
			}
			result.ItemsScanned++

			known := make(map[int]bool, len(law.Articles))
			for _, article := range law.Articles {
				if article.Number > 0 {
					known[article.Number] = true
				}
			}

			broken := false
			reported := make(map[string]bool)
			for _, article := range law.Articles {
				for _, ref := range arabiclex.ArticleReferences(article.Text) {
					if known[ref.Number] {
						continue
					}
					key := fmt.Sprintf("%d:%d", article.Number, ref.Number)
					if reported[key] {
						continue
					}
					reported[key] = true
					broken = true
					result.Findings = append(result.Findings, findings.Finding{
						Severity:   findings.SeverityHigh,
						Code:       "BROKEN_REFERENCE",
						Category:   findings.CategoryReference,
						EntityType: findings.EntityLaw,
						EntityID:   law.ID,
						EntityName: law.Name,
						Message: fmt.Sprintf("إحالة إلى المادة %d وهي غير موجودة في هذا القانون (%q)",
							ref.Number, ref.Text),
						Location: fmt.Sprintf("Article %d", article.Number),
						Details: findings.ReferenceDetails{
							ReferencedArticle: ref.Number,
							ReferenceText:     ref.Text,
						},
					})
				}
			}
			if broken {
				shared.AddBrokenRefLaw(law.ID)
			}
		}

		return result, nil
	}
}
