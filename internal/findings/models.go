package findings

import (
	"strings"
	"time"
)

// RunStatus represents the lifecycle of an audit run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Severity classifies how urgent a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// ValidSeverity reports whether value is a known severity.
func ValidSeverity(value Severity) bool {
	_, ok := severityRank[value]
	return ok
}

// ParseSeverity maps free-form text to a known severity, defaulting to low.
// AI providers occasionally invent labels; anything unknown lands at low so a
// model hallucination can never inflate the critical count.
func ParseSeverity(value string) Severity {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	if ValidSeverity(s) {
		return s
	}
	return SeverityLow
}

// Category identifies the stage family that produced a finding.
type Category string

const (
	CategoryHealth     Category = "health"
	CategoryStructural Category = "structural"
	CategoryContent    Category = "content"
	CategoryReference  Category = "reference"
	CategoryAILaw      Category = "ai_law"
	CategoryAIJudgment Category = "ai_judgment"
)

// EntityType identifies what kind of corpus object a finding points at.
type EntityType string

const (
	EntityLaw      EntityType = "law"
	EntityJudgment EntityType = "judgment"
	EntityEndpoint EntityType = "endpoint"
	EntityIndex    EntityType = "index"
)

// Status is the human-triage state of a finding. The pipeline only ever
// creates findings in StatusOpen; every other state comes from a reviewer.
type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusWontFix      Status = "wont_fix"
)

var findingStatuses = map[Status]struct{}{
	StatusOpen:         {},
	StatusAcknowledged: {},
	StatusResolved:     {},
	StatusWontFix:      {},
}

// ValidStatus reports whether value is a known triage status.
func ValidStatus(value Status) bool {
	_, ok := findingStatuses[value]
	return ok
}

// SeverityCounts aggregates findings per severity for a run.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the sum across all severities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Run represents one end-to-end execution of the audit pipeline.
type Run struct {
	ID                    int64
	Status                RunStatus
	StartedAt             time.Time
	FinishedAt            *time.Time
	ProgressPct           int
	CurrentStep           string
	TotalLawsScanned      int
	TotalJudgmentsScanned int
	TotalFindings         int
	Counts                SeverityCounts
	Summary               string
	ErrorMessage          string
	ContextJSON           string
	UpdatedAt             time.Time
}

// Finding is one persisted record of a detected content defect.
type Finding struct {
	ID          int64
	AuditRunID  int64
	Severity    Severity
	Code        string
	Category    Category
	EntityType  EntityType
	EntityID    string
	EntityName  string
	Message     string
	Location    string
	Details     Details
	Status      Status
	Fingerprint string
	CreatedAt   time.Time
}

// ProgressUpdate is a partial run mutation; nil count fields are left as-is.
type ProgressUpdate struct {
	Pct              int
	Step             string
	LawsScanned      *int
	JudgmentsScanned *int
	TotalFindings    *int
	Counts           *SeverityCounts
}

// IntPtr is a convenience for building ProgressUpdate values.
func IntPtr(v int) *int { return &v }
