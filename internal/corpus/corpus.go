// Package corpus defines read-only access to the platform's legal content:
// statute (law) documents, court judgments, and full-text index statistics.
// The audit pipeline consumes these interfaces and never mutates content.
package corpus

import "context"

// Paragraph is one indented block within an article body.
type Paragraph struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Article is one numbered article within a law.
type Article struct {
	Number     int         `json:"number"`
	Text       string      `json:"text"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`
}

// Law is one statute document.
type Law struct {
	ID               string    `json:"law_id"`
	Name             string    `json:"law_name"`
	Title            string    `json:"title"`
	IssuingAuthority string    `json:"issuing_authority"`
	IssueDateHijri   string    `json:"issue_date_hijri"`
	PublishDateHijri string    `json:"publish_date_hijri"`
	TotalArticles    int       `json:"total_articles"`
	Articles         []Article `json:"articles"`
}

// Judgment is one court judgment record.
type Judgment struct {
	ID     string `json:"judgment_id"`
	Source string `json:"source"`
	Court  string `json:"court"`
	Text   string `json:"text"`
}

// IndexStat compares a full-text index against its backing table.
type IndexStat struct {
	Name       string
	Table      string
	IndexRows  int
	SourceRows int
}

// LawReader provides batched read access to the statute corpus.
type LawReader interface {
	// LawIDs lists every law identifier in stable order.
	LawIDs(ctx context.Context) ([]string, error)
	// Law loads one law document. A syntactically corrupt document returns
	// a *ParseError so scanners can record it and continue.
	Law(ctx context.Context, id string) (*Law, error)
}

// JudgmentReader provides batched read access to the judgment corpus.
type JudgmentReader interface {
	// JudgmentIDs lists judgment identifiers grouped by source tag.
	JudgmentIDs(ctx context.Context) (map[string][]string, error)
	// Judgment loads one judgment record.
	Judgment(ctx context.Context, id string) (*Judgment, error)
}

// IndexStats exposes full-text index row counts for the health stage.
type IndexStats interface {
	IndexStats(ctx context.Context) ([]IndexStat, error)
}

// Repository bundles every corpus capability the pipeline needs.
type Repository interface {
	LawReader
	JudgmentReader
	IndexStats
}

// ParseError marks a corpus document that exists but cannot be decoded.
type ParseError struct {
	EntityID string
	Path     string
	Err      error
}

func (e *ParseError) Error() string {
	return "parse " + e.EntityID + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
