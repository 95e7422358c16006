package audit

import (
	"encoding/json"
	"sort"
)

// SourceStats tracks per-source defect rates for one corpus.
type SourceStats struct {
	Scanned int `json:"scanned"`
	Flagged int `json:"flagged"`
}

// DefectRate returns the flagged fraction, zero when nothing was scanned.
func (s SourceStats) DefectRate() float64 {
	if s.Scanned == 0 {
		return 0
	}
	return float64(s.Flagged) / float64(s.Scanned)
}

// Context accumulates cross-stage signals within one audit run: per-source
// defect statistics, discovered OCR artifact patterns, laws with broken
// cross-references, and free-text patterns reported by the AI stages. Later
// stages read it to prioritize work and enrich prompts. It is exclusively
// owned by the single active run, so no locking is required, and it is
// snapshotted into the run record at completion.
type Context struct {
	LawStats      map[string]*SourceStats `json:"law_stats"`
	JudgmentStats map[string]*SourceStats `json:"judgment_stats"`
	OCRPatterns   []string                `json:"ocr_patterns"`
	BrokenRefLaws []string                `json:"broken_ref_laws"`
	AIPatterns    []string                `json:"ai_patterns"`

	ocrSeen map[string]struct{}
	lawSeen map[string]struct{}
	aiSeen  map[string]struct{}
}

// NewContext returns an empty shared audit context.
func NewContext() *Context {
	return &Context{
		LawStats:      make(map[string]*SourceStats),
		JudgmentStats: make(map[string]*SourceStats),
		ocrSeen:       make(map[string]struct{}),
		lawSeen:       make(map[string]struct{}),
		aiSeen:        make(map[string]struct{}),
	}
}

// RecordLaw updates the law-corpus statistics for one scanned document.
func (c *Context) RecordLaw(source string, flagged bool) {
	record(c.LawStats, source, flagged)
}

// RecordJudgment updates the judgment-corpus statistics for one scanned record.
func (c *Context) RecordJudgment(source string, flagged bool) {
	record(c.JudgmentStats, source, flagged)
}

func record(stats map[string]*SourceStats, source string, flagged bool) {
	if source == "" {
		source = "unknown"
	}
	entry := stats[source]
	if entry == nil {
		entry = &SourceStats{}
		stats[source] = entry
	}
	entry.Scanned++
	if flagged {
		entry.Flagged++
	}
}

// AddOCRPattern records a discovered OCR artifact kind, deduplicated.
func (c *Context) AddOCRPattern(pattern string) {
	if pattern == "" {
		return
	}
	if _, ok := c.ocrSeen[pattern]; ok {
		return
	}
	c.ocrSeen[pattern] = struct{}{}
	c.OCRPatterns = append(c.OCRPatterns, pattern)
}

// AddBrokenRefLaw records a law known to contain broken cross-references.
func (c *Context) AddBrokenRefLaw(lawID string) {
	if lawID == "" {
		return
	}
	if _, ok := c.lawSeen[lawID]; ok {
		return
	}
	c.lawSeen[lawID] = struct{}{}
	c.BrokenRefLaws = append(c.BrokenRefLaws, lawID)
}

// AddAIPattern records a defect pattern reported by an AI stage.
func (c *Context) AddAIPattern(pattern string) {
	if pattern == "" {
		return
	}
	if _, ok := c.aiSeen[pattern]; ok {
		return
	}
	c.aiSeen[pattern] = struct{}{}
	c.AIPatterns = append(c.AIPatterns, pattern)
}

// HasBrokenRefs reports whether the reference stage flagged the given law.
func (c *Context) HasBrokenRefs(lawID string) bool {
	_, ok := c.lawSeen[lawID]
	return ok
}

// DefectHeavyJudgmentSources lists judgment sources whose defect rate meets
// the threshold, worst first.
func (c *Context) DefectHeavyJudgmentSources(threshold float64) []string {
	var sources []string
	for source, stats := range c.JudgmentStats {
		if stats.DefectRate() >= threshold && stats.Flagged > 0 {
			sources = append(sources, source)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		ri := c.JudgmentStats[sources[i]].DefectRate()
		rj := c.JudgmentStats[sources[j]].DefectRate()
		if ri != rj {
			return ri > rj
		}
		return sources[i] < sources[j]
	})
	return sources
}

// SnapshotJSON serializes the context for storage on the completed run.
func (c *Context) SnapshotJSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}
