package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"marsad/internal/arabiclex"
	"marsad/internal/audit"
	"marsad/internal/corpus"
	"marsad/internal/findings"
)

// mandatoryLawFields are the fields every published statute must carry.
var mandatoryLawFields = []struct {
	name  string
	value func(*corpus.Law) string
}{
	{"law_name", func(l *corpus.Law) string { return l.Name }},
	{"issuing_authority", func(l *corpus.Law) string { return l.IssuingAuthority }},
	{"issue_date_hijri", func(l *corpus.Law) string { return l.IssueDateHijri }},
}

// structuralStage validates every law document: mandatory fields, declared
// versus actual article totals, per-article text quality, duplicate and
// missing article numbers, and paragraph nesting sanity. Per-source defect
// statistics feed the shared context for the AI stages.
func structuralStage(deps Deps) func(context.Context, *audit.Context) (audit.Result, error) {
	return func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
		result := audit.Result{Category: findings.CategoryStructural}

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
			result.ItemsScanned++

			law, err := deps.Repo.Law(ctx, id)
			if err != nil {
				result.Findings = append(result.Findings, corruptLawFinding(id, err))
				shared.RecordLaw("unknown", true)
				continue
			}
			lawFindings := checkLaw(law)
			result.Findings = append(result.Findings, lawFindings...)
			shared.RecordLaw(lawSource(law), len(lawFindings) > 0)
		}

		return result, nil
	}
}

func lawSource(law *corpus.Law) string {
	if law.IssuingAuthority != "" {
		return law.IssuingAuthority
	}
	return "unknown"
}

func corruptLawFinding(id string, err error) findings.Finding {
	message := fmt.Sprintf("تعذّرت قراءة وثيقة القانون: %v", err)
	var parseErr *corpus.ParseError
	if errors.As(err, &parseErr) {
		message = fmt.Sprintf("ملف القانون تالف ولا يمكن تحليله: %v", parseErr.Err)
	}
	return findings.Finding{
		Severity:   findings.SeverityCritical,
		Code:       "CORRUPT_LAW_JSON",
		Category:   findings.CategoryStructural,
		EntityType: findings.EntityLaw,
		EntityID:   id,
		Message:    message,
	}
}

func checkLaw(law *corpus.Law) []findings.Finding {
	var out []findings.Finding

	for _, field := range mandatoryLawFields {
		if strings.TrimSpace(field.value(law)) == "" {
			out = append(out, findings.Finding{
				Severity:   findings.SeverityHigh,
				Code:       "MISSING_MANDATORY_FIELD",
				Category:   findings.CategoryStructural,
				EntityType: findings.EntityLaw,
				EntityID:   law.ID,
				EntityName: law.Name,
				Message:    fmt.Sprintf("حقل إلزامي مفقود: %s", field.name),
				Location:   field.name,
				Details:    findings.StructuralDetails{Field: field.name},
			})
		}
	}

	actual := len(law.Articles)
	if law.TotalArticles > 0 && law.TotalArticles != actual {
		out = append(out, findings.Finding{
			Severity:   findings.SeverityHigh,
			Code:       "TOTAL_ARTICLES_MISMATCH",
			Category:   findings.CategoryStructural,
			EntityType: findings.EntityLaw,
			EntityID:   law.ID,
			EntityName: law.Name,
			Message: fmt.Sprintf("العدد المعلن للمواد %d لا يطابق العدد الفعلي %d",
				law.TotalArticles, actual),
			Details: findings.StructuralDetails{DeclaredTotal: law.TotalArticles, ActualTotal: actual},
		})
	}

	seen := make(map[int]bool, actual)
	var numbers []int
	for idx, article := range law.Articles {
		location := articleLocation(article.Number, idx)

		if article.Number <= 0 {
			out = append(out, findings.Finding{
				Severity:   findings.SeverityMedium,
				Code:       "INVALID_ARTICLE_NUMBER",
				Category:   findings.CategoryStructural,
				EntityType: findings.EntityLaw,
				EntityID:   law.ID,
				EntityName: law.Name,
				Message:    fmt.Sprintf("رقم مادة غير صالح في الموضع %d", idx+1),
				Location:   location,
			})
		} else if seen[article.Number] {
			out = append(out, findings.Finding{
				Severity:   findings.SeverityHigh,
				Code:       "DUPLICATE_ARTICLE",
				Category:   findings.CategoryStructural,
				EntityType: findings.EntityLaw,
				EntityID:   law.ID,
				EntityName: law.Name,
				Message:    fmt.Sprintf("رقم المادة %d مكرر", article.Number),
				Location:   location,
				Details:    findings.StructuralDetails{DuplicateOf: article.Number},
			})
		} else {
			seen[article.Number] = true
			numbers = append(numbers, article.Number)
		}

		text := strings.TrimSpace(article.Text)
		if text == "" {
			out = append(out, findings.Finding{
				Severity:   findings.SeverityHigh,
				Code:       "EMPTY_ARTICLE_TEXT",
				Category:   findings.CategoryStructural,
				EntityType: findings.EntityLaw,
				EntityID:   law.ID,
				EntityName: law.Name,
				Message:    "نص المادة فارغ",
				Location:   location,
			})
		} else if arabiclex.HasPlaceholder(text) {
			out = append(out, findings.Finding{
				Severity:   findings.SeverityMedium,
				Code:       "PLACEHOLDER_TEXT",
				Category:   findings.CategoryStructural,
				EntityType: findings.EntityLaw,
				EntityID:   law.ID,
				EntityName: law.Name,
				Message:    "نص المادة يحتوي علامات مسودة أو نصًا مؤقتًا",
				Location:   location,
			})
		}

		out = append(out, checkNesting(law, article, location)...)
	}

	if missing := missingNumbers(numbers); len(missing) > 0 {
		out = append(out, findings.Finding{
			Severity:   findings.SeverityMedium,
			Code:       "MISSING_ARTICLE_NUMBERS",
			Category:   findings.CategoryStructural,
			EntityType: findings.EntityLaw,
			EntityID:   law.ID,
			EntityName: law.Name,
			Message:    fmt.Sprintf("أرقام مواد مفقودة من التسلسل: %s", joinInts(missing)),
			Details:    findings.StructuralDetails{MissingNumbers: missing},
		})
	}

	return out
}

func articleLocation(number, idx int) string {
	if number > 0 {
		return fmt.Sprintf("Article %d", number)
	}
	return fmt.Sprintf("Position %d", idx+1)
}

// checkNesting flags paragraph indentation that jumps more than one level
// between consecutive markers.
func checkNesting(law *corpus.Law, article corpus.Article, location string) []findings.Finding {
	var out []findings.Finding
	prev := 0
	for _, para := range article.Paragraphs {
		if para.Level > prev+1 {
			out = append(out, findings.Finding{
				Severity:   findings.SeverityLow,
				Code:       "PARAGRAPH_NESTING_JUMP",
				Category:   findings.CategoryStructural,
				EntityType: findings.EntityLaw,
				EntityID:   law.ID,
				EntityName: law.Name,
				Message: fmt.Sprintf("قفزة في مستوى ترقيم الفقرات من %d إلى %d",
					prev, para.Level),
				Location: location,
				Details:  findings.StructuralDetails{FromLevel: prev, ToLevel: para.Level},
			})
			// Report the first jump per article; deeper text is usually
			// damaged the same way.
			break
		}
		prev = para.Level
	}
	return out
}

// missingNumbers returns the article numbers absent from the full expected
// sequence 1..max, so a law starting at article 3 reports 1 and 2 as missing.
func missingNumbers(numbers []int) []int {
	if len(numbers) == 0 {
		return nil
	}
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	var missing []int
	prev := 0
	for _, n := range sorted {
		for m := prev + 1; m < n; m++ {
			missing = append(missing, m)
		}
		prev = n
	}
	return missing
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
