package findings

import (
	"encoding/json"
	"fmt"
)

// Details is the structured payload attached to a finding. Each scan stage
// produces its own variant; all variants serialize to a common envelope of
// the form {"kind": "...", ...} so the storage column stays uniform while
// each payload remains statically checkable.
type Details interface {
	detailsKind() string
}

// HealthDetails accompanies full-text index and table-count findings.
type HealthDetails struct {
	IndexRows  int `json:"index_rows"`
	SourceRows int `json:"source_rows"`
	Minimum    int `json:"minimum,omitempty"`
}

func (HealthDetails) detailsKind() string { return "health" }

// StructuralDetails accompanies law-structure findings.
type StructuralDetails struct {
	DeclaredTotal  int    `json:"declared_total,omitempty"`
	ActualTotal    int    `json:"actual_total,omitempty"`
	MissingNumbers []int  `json:"missing_numbers,omitempty"`
	DuplicateOf    int    `json:"duplicate_of,omitempty"`
	Field          string `json:"field,omitempty"`
	FromLevel      int    `json:"from_level,omitempty"`
	ToLevel        int    `json:"to_level,omitempty"`
}

func (StructuralDetails) detailsKind() string { return "structural" }

// ContentDetails accompanies judgment text-quality findings.
type ContentDetails struct {
	ArtifactKind string `json:"artifact_kind,omitempty"`
	Sample       string `json:"sample,omitempty"`
	TextLength   int    `json:"text_length,omitempty"`
}

func (ContentDetails) detailsKind() string { return "content" }

// ReferenceDetails accompanies broken cross-reference findings.
type ReferenceDetails struct {
	ReferencedArticle int    `json:"referenced_article"`
	ReferenceText     string `json:"reference_text,omitempty"`
	KnownArticles     []int  `json:"known_articles,omitempty"`
}

func (ReferenceDetails) detailsKind() string { return "reference" }

// AIDetails accompanies findings produced or degraded by the AI stages.
type AIDetails struct {
	Batch      int    `json:"batch,omitempty"`
	Model      string `json:"model,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

func (AIDetails) detailsKind() string { return "ai" }

type detailsEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalDetails serializes a details variant into its storage envelope.
// A nil details value serializes to the empty string.
func MarshalDetails(d Details) (string, error) {
	if d == nil {
		return "", nil
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal details payload: %w", err)
	}
	envelope, err := json.Marshal(detailsEnvelope{Kind: d.detailsKind(), Payload: payload})
	if err != nil {
		return "", fmt.Errorf("marshal details envelope: %w", err)
	}
	return string(envelope), nil
}

// UnmarshalDetails reconstructs the tagged variant stored by MarshalDetails.
// Unknown kinds decode to nil rather than an error so old rows stay readable.
func UnmarshalDetails(raw string) (Details, error) {
	if raw == "" {
		return nil, nil
	}
	var envelope detailsEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal details envelope: %w", err)
	}
	var target Details
	switch envelope.Kind {
	case "health":
		target = &HealthDetails{}
	case "structural":
		target = &StructuralDetails{}
	case "content":
		target = &ContentDetails{}
	case "reference":
		target = &ReferenceDetails{}
	case "ai":
		target = &AIDetails{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(envelope.Payload, target); err != nil {
		return nil, fmt.Errorf("unmarshal %s details: %w", envelope.Kind, err)
	}
	switch v := target.(type) {
	case *HealthDetails:
		return *v, nil
	case *StructuralDetails:
		return *v, nil
	case *ContentDetails:
		return *v, nil
	case *ReferenceDetails:
		return *v, nil
	case *AIDetails:
		return *v, nil
	}
	return nil, nil
}
