package scan

import (
	"context"
	"testing"

	"marsad/internal/audit"
	"marsad/internal/corpus"
	"marsad/internal/findings"
	"marsad/internal/testsupport"
)

func TestHealthStageEmptyIndex(t *testing.T) {
	repo := testsupport.NewCorpus().AddLaw(wellFormedLaw("law-1"))
	repo.Indexes = []corpus.IndexStat{
		{Name: "laws_fts", Table: "laws", IndexRows: 0, SourceRows: 1200},
	}

	result, err := healthStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("health stage failed: %v", err)
	}
	empty := findByCode(result.Findings, "FTS_EMPTY")
	if len(empty) != 1 {
		t.Fatalf("expected FTS_EMPTY finding, got %v", codesOf(result.Findings))
	}
	if empty[0].Severity != findings.SeverityCritical {
		t.Fatalf("unexpected severity %s", empty[0].Severity)
	}
	if empty[0].EntityType != findings.EntityIndex {
		t.Fatalf("unexpected entity type %s", empty[0].EntityType)
	}
}

func TestHealthStageMismatchTolerance(t *testing.T) {
	repo := testsupport.NewCorpus().AddLaw(wellFormedLaw("law-1"))
	repo.Indexes = []corpus.IndexStat{
		// 0.5% drift: inside the default 1% tolerance.
		{Name: "laws_fts", Table: "laws", IndexRows: 995, SourceRows: 1000},
		// 5% drift: outside tolerance.
		{Name: "judgments_fts", Table: "judgments", IndexRows: 950, SourceRows: 1000},
	}

	result, err := healthStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("health stage failed: %v", err)
	}
	mismatches := findByCode(result.Findings, "FTS_MISMATCH")
	if len(mismatches) != 1 {
		t.Fatalf("expected exactly 1 mismatch, got %d: %v", len(mismatches), codesOf(result.Findings))
	}
	if mismatches[0].EntityID != "judgments_fts" {
		t.Fatalf("wrong index flagged: %q", mismatches[0].EntityID)
	}
}

func TestHealthStageTableBelowMinimum(t *testing.T) {
	repo := testsupport.NewCorpus() // no laws, no judgments
	deps := testDeps(repo)
	deps.Cfg.MinLawRecords = 10
	deps.Cfg.MinJudgmentRecords = 10

	result, err := healthStage(deps)(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("health stage failed: %v", err)
	}
	below := findByCode(result.Findings, "TABLE_BELOW_MINIMUM")
	if len(below) != 2 {
		t.Fatalf("expected both tables flagged, got %d", len(below))
	}
	if result.ItemsScanned != 2 {
		t.Fatalf("expected 2 checks counted, got %d", result.ItemsScanned)
	}
}

func TestHealthStageHealthyCorpus(t *testing.T) {
	repo := testsupport.NewCorpus().
		AddLaw(wellFormedLaw("law-1")).
		AddJudgment(&corpus.Judgment{ID: "j-1", Source: "س", Court: "محكمة", Text: longJudgmentText()})
	repo.Indexes = []corpus.IndexStat{
		{Name: "laws_fts", Table: "laws", IndexRows: 100, SourceRows: 100},
	}

	result, err := healthStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("health stage failed: %v", err)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("healthy corpus produced findings: %v", codesOf(result.Findings))
	}
	if result.ItemsScanned != 3 {
		t.Fatalf("expected 3 checks (1 index + 2 tables), got %d", result.ItemsScanned)
	}
}

func TestExceedsTolerance(t *testing.T) {
	cases := []struct {
		index, source, pct int
		want               bool
	}{
		{1000, 1000, 1, false},
		{990, 1000, 1, false},
		{989, 1000, 1, true},
		{0, 0, 1, false},
		{5, 0, 1, true},
	}
	for _, tc := range cases {
		if got := exceedsTolerance(tc.index, tc.source, tc.pct); got != tc.want {
			t.Fatalf("exceedsTolerance(%d, %d, %d) = %v, want %v", tc.index, tc.source, tc.pct, got, tc.want)
		}
	}
}
