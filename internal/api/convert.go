package api

import (
	"encoding/json"

	"marsad/internal/findings"
)

// FromRun converts a run record to its API representation.
func FromRun(run *findings.Run) *Run {
	if run == nil {
		return nil
	}
	dto := &Run{
		ID:                    run.ID,
		Status:                string(run.Status),
		ProgressPct:           run.ProgressPct,
		CurrentStep:           run.CurrentStep,
		TotalLawsScanned:      run.TotalLawsScanned,
		TotalJudgmentsScanned: run.TotalJudgmentsScanned,
		TotalFindings:         run.TotalFindings,
		Counts: SeverityCounts{
			Critical: run.Counts.Critical,
			High:     run.Counts.High,
			Medium:   run.Counts.Medium,
			Low:      run.Counts.Low,
		},
		Summary:      run.Summary,
		ErrorMessage: run.ErrorMessage,
	}
	if !run.StartedAt.IsZero() {
		dto.StartedAt = run.StartedAt.UTC().Format(dateTimeFormat)
	}
	if run.FinishedAt != nil && !run.FinishedAt.IsZero() {
		dto.FinishedAt = run.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromFinding converts a finding record to its API representation.
func FromFinding(f findings.Finding) Finding {
	dto := Finding{
		ID:          f.ID,
		AuditRunID:  f.AuditRunID,
		Severity:    string(f.Severity),
		Code:        f.Code,
		Category:    string(f.Category),
		EntityType:  string(f.EntityType),
		EntityID:    f.EntityID,
		EntityName:  f.EntityName,
		Message:     f.Message,
		Location:    f.Location,
		Status:      string(f.Status),
		Fingerprint: f.Fingerprint,
	}
	if f.Details != nil {
		if raw, err := findings.MarshalDetails(f.Details); err == nil && raw != "" {
			dto.Details = json.RawMessage(raw)
		}
	}
	if !f.CreatedAt.IsZero() {
		dto.CreatedAt = f.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromFindings converts a slice of findings.
func FromFindings(items []findings.Finding) []Finding {
	if len(items) == 0 {
		return nil
	}
	out := make([]Finding, 0, len(items))
	for _, item := range items {
		out = append(out, FromFinding(item))
	}
	return out
}
