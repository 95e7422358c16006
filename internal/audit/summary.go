package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"marsad/internal/ai"
	"marsad/internal/findings"
	"marsad/internal/logging"
)

const summarySystemPrompt = `أنت مدقق جودة محتوى قانوني. اكتب ملخصًا تنفيذيًا موجزًا (فقرة أو فقرتان بالعربية) لنتائج فحص شامل لمنصة نشر تشريعات وأحكام قضائية. ركّز على أخطر المشاكل وما ينبغي إصلاحه أولًا. لا تستخدم تنسيق Markdown. أعد الناتج ككائن JSON بالشكل: {"summary": "النص"}.`

// SummaryBuilder produces the executive summary stored on a completed run.
// When the AI gateway is configured it asks the model for a narrative
// summary; otherwise, or when the model fails, it falls back to a
// deterministic template so every completed run carries a summary.
type SummaryBuilder struct {
	gateway       *ai.Gateway
	maxContextLen int
	logger        *slog.Logger
}

// NewSummaryBuilder wires the gateway; maxContextLen bounds how much shared
// context JSON is embedded in the prompt.
func NewSummaryBuilder(gateway *ai.Gateway, maxContextLen int, logger *slog.Logger) *SummaryBuilder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SummaryBuilder{
		gateway:       gateway,
		maxContextLen: maxContextLen,
		logger:        logger.With(logging.String(logging.FieldComponent, "audit-summary")),
	}
}

// Summarize implements Summarizer.
func (b *SummaryBuilder) Summarize(ctx context.Context, run *findings.Run, shared *Context) (string, error) {
	if b.gateway != nil && b.gateway.Configured() {
		summary, err := b.fromModel(ctx, run, shared)
		if err == nil && summary != "" {
			return summary, nil
		}
		if err != nil {
			b.logger.Warn("model summary failed, using template", logging.Error(err))
		}
	}
	return b.template(run, shared), nil
}

func (b *SummaryBuilder) fromModel(ctx context.Context, run *findings.Run, shared *Context) (string, error) {
	contextJSON := shared.SnapshotJSON()
	if b.maxContextLen > 0 && len(contextJSON) > b.maxContextLen {
		contextJSON = contextJSON[:b.maxContextLen]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "نتائج الفحص رقم %d:\n", run.ID)
	fmt.Fprintf(&sb, "- قوانين مفحوصة: %d، أحكام مفحوصة: %d\n", run.TotalLawsScanned, run.TotalJudgmentsScanned)
	fmt.Fprintf(&sb, "- إجمالي الملاحظات: %d (حرجة: %d، عالية: %d، متوسطة: %d، منخفضة: %d)\n",
		run.Counts.Total(), run.Counts.Critical, run.Counts.High, run.Counts.Medium, run.Counts.Low)
	if len(shared.BrokenRefLaws) > 0 {
		fmt.Fprintf(&sb, "- قوانين بإحالات مكسورة: %d\n", len(shared.BrokenRefLaws))
	}
	if len(shared.OCRPatterns) > 0 {
		fmt.Fprintf(&sb, "- أنماط عيوب OCR: %s\n", strings.Join(shared.OCRPatterns, "، "))
	}
	if len(shared.AIPatterns) > 0 {
		fmt.Fprintf(&sb, "- أنماط رصدها التحليل الآلي: %s\n", strings.Join(shared.AIPatterns, "، "))
	}
	fmt.Fprintf(&sb, "\nسياق إضافي (JSON): %s\n", contextJSON)
	sb.WriteString("\nاكتب الملخص التنفيذي الآن.")

	content, err := b.gateway.Analyze(ctx, summarySystemPrompt, sb.String())
	if err != nil {
		return "", err
	}
	var reply struct {
		Summary string `json:"summary"`
	}
	if err := ai.DecodeJSON(content, &reply); err != nil {
		return "", fmt.Errorf("decode summary reply: %w", err)
	}
	return strings.TrimSpace(reply.Summary), nil
}

// template renders the deterministic fallback summary.
func (b *SummaryBuilder) template(run *findings.Run, shared *Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "اكتمل الفحص الشامل: %d قانونًا و%d حكمًا. ", run.TotalLawsScanned, run.TotalJudgmentsScanned)
	total := run.Counts.Total()
	if total == 0 {
		sb.WriteString("لم تُرصد أي ملاحظات.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "إجمالي الملاحظات: %d", total)
	parts := severityParts(run.Counts)
	if len(parts) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(parts, "، "))
	}
	sb.WriteString(".")
	if run.Counts.Critical > 0 {
		sb.WriteString(" توجد ملاحظات حرجة تتطلب معالجة فورية.")
	}
	if n := len(shared.BrokenRefLaws); n > 0 {
		fmt.Fprintf(&sb, " رُصدت إحالات مكسورة في %d من القوانين.", n)
	}
	if worst := worstSources(shared); len(worst) > 0 {
		fmt.Fprintf(&sb, " أكثر المصادر تضررًا: %s.", strings.Join(worst, "، "))
	}
	return sb.String()
}

func severityParts(counts findings.SeverityCounts) []string {
	var parts []string
	if counts.Critical > 0 {
		parts = append(parts, fmt.Sprintf("حرجة: %d", counts.Critical))
	}
	if counts.High > 0 {
		parts = append(parts, fmt.Sprintf("عالية: %d", counts.High))
	}
	if counts.Medium > 0 {
		parts = append(parts, fmt.Sprintf("متوسطة: %d", counts.Medium))
	}
	if counts.Low > 0 {
		parts = append(parts, fmt.Sprintf("منخفضة: %d", counts.Low))
	}
	return parts
}

// worstSources names up to three judgment sources by descending defect rate.
func worstSources(shared *Context) []string {
	type rated struct {
		source string
		rate   float64
	}
	var all []rated
	for source, stats := range shared.JudgmentStats {
		if stats.Flagged > 0 {
			all = append(all, rated{source, stats.DefectRate()})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].rate != all[j].rate {
			return all[i].rate > all[j].rate
		}
		return all[i].source < all[j].source
	})
	if len(all) > 3 {
		all = all[:3]
	}
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.source
	}
	return names
}
