package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes an audit run in a transport-friendly format.
type Run struct {
	ID                    int64          `json:"id"`
	Status                string         `json:"status"`
	StartedAt             string         `json:"started_at,omitempty"`
	FinishedAt            string         `json:"finished_at,omitempty"`
	ProgressPct           int            `json:"progress_pct"`
	CurrentStep           string         `json:"current_step,omitempty"`
	TotalLawsScanned      int            `json:"total_laws_scanned"`
	TotalJudgmentsScanned int            `json:"total_judgments_scanned"`
	TotalFindings         int            `json:"total_findings"`
	Counts                SeverityCounts `json:"counts"`
	Summary               string         `json:"summary,omitempty"`
	ErrorMessage          string         `json:"error_message,omitempty"`
}

// SeverityCounts mirrors per-severity finding totals.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Finding describes one persisted defect in a transport-friendly format.
type Finding struct {
	ID          int64           `json:"id"`
	AuditRunID  int64           `json:"audit_run_id"`
	Severity    string          `json:"severity"`
	Code        string          `json:"code"`
	Category    string          `json:"category"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	EntityName  string          `json:"entity_name,omitempty"`
	Message     string          `json:"message"`
	Location    string          `json:"location,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	Status      string          `json:"status"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// RunStartedResponse acknowledges an accepted audit trigger.
type RunStartedResponse struct {
	RunID int64 `json:"run_id"`
}

// RunStatusResponse wraps the latest run for status polling.
type RunStatusResponse struct {
	Run *Run `json:"run"`
}

// FindingsListResponse is a filtered, paginated findings page.
type FindingsListResponse struct {
	Findings []Finding `json:"findings"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// StatusUpdateRequest is the body of a finding triage action.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// StatusUpdateResponse reports whether a triage action changed a row.
type StatusUpdateResponse struct {
	Updated bool `json:"updated"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	StorePath string `json:"store_path,omitempty"`
}
