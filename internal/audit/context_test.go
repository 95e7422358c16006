package audit_test

import (
	"encoding/json"
	"testing"

	"marsad/internal/audit"
)

func TestContextDefectRates(t *testing.T) {
	shared := audit.NewContext()
	shared.RecordLaw("وزارة العدل", false)
	shared.RecordLaw("وزارة العدل", true)
	shared.RecordLaw("", true)

	stats := shared.LawStats["وزارة العدل"]
	if stats == nil || stats.Scanned != 2 || stats.Flagged != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if rate := stats.DefectRate(); rate != 0.5 {
		t.Fatalf("expected defect rate 0.5, got %v", rate)
	}
	if shared.LawStats["unknown"] == nil {
		t.Fatal("empty source must be recorded as unknown")
	}
	if (audit.SourceStats{}).DefectRate() != 0 {
		t.Fatal("zero scans must yield zero rate")
	}
}

func TestContextPatternDeduplication(t *testing.T) {
	shared := audit.NewContext()
	shared.AddOCRPattern("tatweel_run")
	shared.AddOCRPattern("tatweel_run")
	shared.AddOCRPattern("")
	shared.AddOCRPattern("page_break")
	if len(shared.OCRPatterns) != 2 {
		t.Fatalf("expected 2 deduplicated patterns, got %v", shared.OCRPatterns)
	}

	shared.AddBrokenRefLaw("law-1")
	shared.AddBrokenRefLaw("law-1")
	if len(shared.BrokenRefLaws) != 1 {
		t.Fatalf("expected 1 broken-ref law, got %v", shared.BrokenRefLaws)
	}
	if !shared.HasBrokenRefs("law-1") {
		t.Fatal("expected law-1 to be marked broken")
	}
	if shared.HasBrokenRefs("law-2") {
		t.Fatal("law-2 must not be marked broken")
	}

	shared.AddAIPattern("حشو متكرر")
	shared.AddAIPattern("حشو متكرر")
	if len(shared.AIPatterns) != 1 {
		t.Fatalf("expected 1 AI pattern, got %v", shared.AIPatterns)
	}
}

func TestDefectHeavyJudgmentSourcesWorstFirst(t *testing.T) {
	shared := audit.NewContext()
	record := func(source string, scanned, flagged int) {
		for i := 0; i < scanned; i++ {
			shared.RecordJudgment(source, i < flagged)
		}
	}
	record("alpha", 10, 2) // 0.2
	record("beta", 10, 8)  // 0.8
	record("gamma", 10, 5) // 0.5
	record("delta", 10, 0) // clean

	heavy := shared.DefectHeavyJudgmentSources(0.2)
	want := []string{"beta", "gamma", "alpha"}
	if len(heavy) != len(want) {
		t.Fatalf("expected %v, got %v", want, heavy)
	}
	for i := range want {
		if heavy[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, heavy)
		}
	}
}

func TestContextSnapshotJSON(t *testing.T) {
	shared := audit.NewContext()
	shared.RecordJudgment("محكمة الاستئناف", true)
	shared.AddOCRPattern("mixed_script")

	var decoded struct {
		JudgmentStats map[string]audit.SourceStats `json:"judgment_stats"`
		OCRPatterns   []string                     `json:"ocr_patterns"`
	}
	if err := json.Unmarshal([]byte(shared.SnapshotJSON()), &decoded); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if decoded.JudgmentStats["محكمة الاستئناف"].Flagged != 1 {
		t.Fatalf("unexpected snapshot stats: %#v", decoded.JudgmentStats)
	}
	if len(decoded.OCRPatterns) != 1 || decoded.OCRPatterns[0] != "mixed_script" {
		t.Fatalf("unexpected snapshot patterns: %#v", decoded.OCRPatterns)
	}
}
