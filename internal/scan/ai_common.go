package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"marsad/internal/ai"
	"marsad/internal/audit"
	"marsad/internal/findings"
	"marsad/internal/logging"
)

// aiItem is one corpus entity packaged for an AI quality batch.
type aiItem struct {
	ID      string
	Name    string
	Excerpt string
	// priority orders items; lower values are analyzed first.
	priority int
}

// aiIssue is the per-entity issue shape the model is asked to return.
type aiIssue struct {
	EntityID   string `json:"entity_id"`
	Severity   string `json:"severity"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Location   string `json:"location"`
	Suggestion string `json:"suggestion"`
	Pattern    string `json:"pattern"`
}

const excerptMaxRunes = 1500

// notConfiguredResult is the degraded-mode output of an AI stage: one
// informational finding, zero quality findings.
func notConfiguredResult(category findings.Category, stageName string) audit.Result {
	return audit.Result{
		Category: category,
		Findings: []findings.Finding{{
			Severity:   findings.SeverityLow,
			Code:       "AI_NOT_CONFIGURED",
			Category:   category,
			EntityType: findings.EntityEndpoint,
			EntityID:   stageName,
			Message:    "مزود الذكاء الاصطناعي غير مُهيّأ؛ تم تخطي هذه المرحلة",
		}},
	}
}

// runAIBatches sends prioritized items to the gateway in fixed-size batches
// with a fixed inter-batch delay, parsing each response into findings. A
// failed batch degrades to one low-severity finding; only cancellation
// aborts the stage.
func runAIBatches(ctx context.Context, deps Deps, shared *audit.Context, category findings.Category, entityType findings.EntityType, stageName, systemPrompt string, items []aiItem, logger *slog.Logger) (audit.Result, error) {
	result := audit.Result{Category: category}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].priority < items[j].priority
	})
	size := deps.Cfg.AIBatchSize
	if size <= 0 {
		size = 5
	}
	maxBatches := deps.Cfg.AIMaxBatches
	if maxBatches <= 0 {
		maxBatches = 3
	}
	if limit := size * maxBatches; len(items) > limit {
		items = items[:limit]
	}
	delay := time.Duration(deps.Cfg.AIBatchDelaySeconds) * time.Second

	for batchNum := 0; len(items) > 0; batchNum++ {
		if batchNum > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}

		n := size
		if n > len(items) {
			n = len(items)
		}
		batch := items[:n]
		items = items[n:]
		result.ItemsScanned += len(batch)

		requestID := uuid.NewString()
		batchLogger := logger.With(
			logging.String(logging.FieldRequestID, requestID),
			logging.Int("batch", batchNum+1),
			logging.Int("items", len(batch)))

		userPrompt := buildBatchPrompt(batch, shared)
		content, err := deps.Gateway.Analyze(ctx, systemPrompt, userPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			batchLogger.Warn("ai batch failed", logging.Error(err))
			result.Findings = append(result.Findings, aiErrorFinding(category, stageName, batchNum+1, deps.Gateway.Model(), err))
			continue
		}

		var issues []aiIssue
		if err := ai.DecodeJSONArray(content, &issues); err != nil {
			batchLogger.Warn("ai response unparsable", logging.Error(err))
			result.Findings = append(result.Findings, aiErrorFinding(category, stageName, batchNum+1, deps.Gateway.Model(), err))
			continue
		}

		batchLogger.Info("ai batch completed", logging.Int("issues", len(issues)))
		for _, issue := range issues {
			finding, ok := issueFinding(issue, category, entityType, batch, batchNum+1, deps.Gateway.Model())
			if !ok {
				continue
			}
			result.Findings = append(result.Findings, finding)
			shared.AddAIPattern(strings.TrimSpace(issue.Pattern))
		}
	}

	return result, nil
}

func aiErrorFinding(category findings.Category, stageName string, batch int, model string, err error) findings.Finding {
	return findings.Finding{
		Severity:   findings.SeverityLow,
		Code:       "AI_ERROR",
		Category:   category,
		EntityType: findings.EntityEndpoint,
		EntityID:   fmt.Sprintf("%s-batch-%d", stageName, batch),
		Message:    fmt.Sprintf("تعذّر تحليل الدفعة %d: %v", batch, err),
		Details:    findings.AIDetails{Batch: batch, Model: model},
	}
}

// issueFinding converts one model-reported issue into a finding, dropping
// issues that name entities outside the batch.
func issueFinding(issue aiIssue, category findings.Category, entityType findings.EntityType, batch []aiItem, batchNum int, model string) (findings.Finding, bool) {
	entityID := strings.TrimSpace(issue.EntityID)
	var entityName string
	known := false
	for _, item := range batch {
		if item.ID == entityID {
			known = true
			entityName = item.Name
			break
		}
	}
	if !known {
		return findings.Finding{}, false
	}
	message := strings.TrimSpace(issue.Message)
	if message == "" {
		return findings.Finding{}, false
	}
	return findings.Finding{
		Severity:   findings.ParseSeverity(issue.Severity),
		Code:       issueCode(issue.Code),
		Category:   category,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Message:    message,
		Location:   strings.TrimSpace(issue.Location),
		Details: findings.AIDetails{
			Batch:      batchNum,
			Model:      model,
			Suggestion: strings.TrimSpace(issue.Suggestion),
		},
	}, true
}

// issueCode normalizes model-supplied codes into the AI_QUALITY_* namespace.
func issueCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "_")
	if code == "" {
		return "AI_QUALITY_ISSUE"
	}
	if !strings.HasPrefix(code, "AI_") {
		return "AI_QUALITY_" + code
	}
	return code
}

// excerpt clips text to a prompt-friendly length on a rune boundary.
func excerpt(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > excerptMaxRunes {
		return string(r[:excerptMaxRunes]) + "…"
	}
	return string(r)
}
