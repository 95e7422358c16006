package scan

import (
	"context"
	"errors"
	"testing"

	"marsad/internal/audit"
	"marsad/internal/config"
	"marsad/internal/corpus"
	"marsad/internal/findings"
	"marsad/internal/testsupport"
)

func testDeps(repo corpus.Repository) Deps {
	cfg := config.Default()
	cfg.Audit.AIBatchDelaySeconds = 0
	return Deps{Repo: repo, Cfg: cfg.Audit}
}

func codesOf(items []findings.Finding) map[string]int {
	out := make(map[string]int)
	for _, f := range items {
		out[f.Code]++
	}
	return out
}

func findByCode(items []findings.Finding, code string) []findings.Finding {
	var out []findings.Finding
	for _, f := range items {
		if f.Code == code {
			out = append(out, f)
		}
	}
	return out
}

func wellFormedLaw(id string) *corpus.Law {
	return &corpus.Law{
		ID:               id,
		Name:             "نظام المعاملات المدنية",
		Title:            "نظام المعاملات المدنية",
		IssuingAuthority: "مجلس الوزراء",
		IssueDateHijri:   "1444/11/29",
		TotalArticles:    2,
		Articles: []corpus.Article{
			{Number: 1, Text: "يُسمى هذا النظام نظام المعاملات المدنية."},
			{Number: 2, Text: "يُعمل بهذا النظام بعد مئة وثمانين يومًا من نشره."},
		},
	}
}

func TestStructuralStageCleanLaw(t *testing.T) {
	repo := testsupport.NewCorpus().AddLaw(wellFormedLaw("law-1"))
	shared := audit.NewContext()

	result, err := structuralStage(testDeps(repo))(context.Background(), shared)
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	if result.Category != findings.CategoryStructural {
		t.Fatalf("unexpected category %s", result.Category)
	}
	if result.ItemsScanned != 1 {
		t.Fatalf("expected 1 scanned law, got %d", result.ItemsScanned)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("clean law produced findings: %#v", result.Findings)
	}
	stats := shared.LawStats["مجلس الوزراء"]
	if stats == nil || stats.Scanned != 1 || stats.Flagged != 0 {
		t.Fatalf("unexpected source stats: %#v", stats)
	}
}

func TestStructuralStageMissingMandatoryField(t *testing.T) {
	law := wellFormedLaw("law-1")
	law.IssuingAuthority = ""
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := structuralStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	missing := findByCode(result.Findings, "MISSING_MANDATORY_FIELD")
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing-field finding, got %d", len(missing))
	}
	if missing[0].Location != "issuing_authority" {
		t.Fatalf("unexpected location %q", missing[0].Location)
	}
	if missing[0].Severity != findings.SeverityHigh {
		t.Fatalf("unexpected severity %s", missing[0].Severity)
	}
}

func TestStructuralStageTotalArticlesMismatch(t *testing.T) {
	law := wellFormedLaw("law-1")
	law.TotalArticles = 5
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := structuralStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	mismatches := findByCode(result.Findings, "TOTAL_ARTICLES_MISMATCH")
	if len(mismatches) != 1 {
		t.Fatalf("expected 1 mismatch finding, got %d", len(mismatches))
	}
	details, ok := mismatches[0].Details.(findings.StructuralDetails)
	if !ok || details.DeclaredTotal != 5 || details.ActualTotal != 2 {
		t.Fatalf("unexpected details: %#v", mismatches[0].Details)
	}
}

func TestStructuralStageMissingArticleNumbers(t *testing.T) {
	law := wellFormedLaw("law-1")
	law.TotalArticles = 4
	law.Articles = []corpus.Article{
		{Number: 1, Text: "نص"},
		{Number: 2, Text: "نص"},
		{Number: 4, Text: "نص"},
		{Number: 5, Text: "نص"},
	}
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := structuralStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	gaps := findByCode(result.Findings, "MISSING_ARTICLE_NUMBERS")
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap finding, got %d: %v", len(gaps), codesOf(result.Findings))
	}
	details := gaps[0].Details.(findings.StructuralDetails)
	if len(details.MissingNumbers) != 1 || details.MissingNumbers[0] != 3 {
		t.Fatalf("expected missing article 3, got %v", details.MissingNumbers)
	}
}

func TestStructuralStageLeadingGap(t *testing.T) {
	law := wellFormedLaw("law-1")
	law.TotalArticles = 2
	law.Articles = []corpus.Article{
		{Number: 3, Text: "نص"},
		{Number: 4, Text: "نص"},
	}
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := structuralStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	// Numbering starts at 1, so a law opening at article 3 is missing 1 and 2.
	gaps := findByCode(result.Findings, "MISSING_ARTICLE_NUMBERS")
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap finding, got %d: %v", len(gaps), codesOf(result.Findings))
	}
	details := gaps[0].Details.(findings.StructuralDetails)
	if len(details.MissingNumbers) != 2 || details.MissingNumbers[0] != 1 || details.MissingNumbers[1] != 2 {
		t.Fatalf("expected missing articles [1 2], got %v", details.MissingNumbers)
	}
}

func TestStructuralStageDuplicateArticle(t *testing.T) {
	law := wellFormedLaw("law-1")
	law.TotalArticles = 3
	law.Articles = []corpus.Article{
		{Number: 1, Text: "نص"},
		{Number: 3, Text: "نص"},
		{Number: 3, Text: "نص مكرر"},
	}
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := structuralStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	duplicates := findByCode(result.Findings, "DUPLICATE_ARTICLE")
	if len(duplicates) != 1 {
		t.Fatalf("expected 1 duplicate finding, got %d", len(duplicates))
	}
	if duplicates[0].Location != "Article 3" {
		t.Fatalf("unexpected location %q", duplicates[0].Location)
	}
	// The duplicate must not be counted as a gap: {1,3} yields 2, not 3.
	gaps := findByCode(result.Findings, "MISSING_ARTICLE_NUMBERS")
	if len(gaps) != 1 {
		t.Fatalf("expected gap finding for article 2, got %d", len(gaps))
	}
	details := gaps[0].Details.(findings.StructuralDetails)
	if len(details.MissingNumbers) != 1 || details.MissingNumbers[0] != 2 {
		t.Fatalf("expected missing article 2, got %v", details.MissingNumbers)
	}
}

func TestStructuralStageArticleTextQuality(t *testing.T) {
	law := wellFormedLaw("law-1")
	law.TotalArticles = 3
	law.Articles = []corpus.Article{
		{Number: 1, Text: "   "},
		{Number: 2, Text: "النص يُضاف لاحقًا"},
		{Number: 0, Text: "مادة بلا رقم"},
	}
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := structuralStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	codes := codesOf(result.Findings)
	if codes["EMPTY_ARTICLE_TEXT"] != 1 {
		t.Fatalf("expected empty-text finding, got %v", codes)
	}
	if codes["PLACEHOLDER_TEXT"] != 1 {
		t.Fatalf("expected placeholder finding, got %v", codes)
	}
	if codes["INVALID_ARTICLE_NUMBER"] != 1 {
		t.Fatalf("expected invalid-number finding, got %v", codes)
	}
	invalid := findByCode(result.Findings, "INVALID_ARTICLE_NUMBER")
	if invalid[0].Location != "Position 3" {
		t.Fatalf("unexpected location %q for invalid article", invalid[0].Location)
	}
}

func TestStructuralStageNestingJump(t *testing.T) {
	law := wellFormedLaw("law-1")
	law.Articles[0].Paragraphs = []corpus.Paragraph{
		{Level: 1, Text: "أولًا"},
		{Level: 3, Text: "قفزة"},
		{Level: 5, Text: "قفزة أخرى"},
	}
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := structuralStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	jumps := findByCode(result.Findings, "PARAGRAPH_NESTING_JUMP")
	if len(jumps) != 1 {
		t.Fatalf("expected one jump finding per article, got %d", len(jumps))
	}
	details := jumps[0].Details.(findings.StructuralDetails)
	if details.FromLevel != 1 || details.ToLevel != 3 {
		t.Fatalf("unexpected jump details: %#v", details)
	}
}

func TestStructuralStageCorruptDocument(t *testing.T) {
	parseErr := &corpus.ParseError{EntityID: "law-bad", Path: "laws/law-bad.json", Err: errors.New("unexpected end of JSON input")}
	repo := testsupport.NewCorpus().
		AddLaw(wellFormedLaw("law-1")).
		FailRead("law-bad", parseErr)
	shared := audit.NewContext()

	result, err := structuralStage(testDeps(repo))(context.Background(), shared)
	if err != nil {
		t.Fatalf("structural stage failed: %v", err)
	}
	if result.ItemsScanned != 2 {
		t.Fatalf("expected both documents counted, got %d", result.ItemsScanned)
	}
	corrupt := findByCode(result.Findings, "CORRUPT_LAW_JSON")
	if len(corrupt) != 1 {
		t.Fatalf("expected 1 corrupt finding, got %d", len(corrupt))
	}
	if corrupt[0].Severity != findings.SeverityCritical {
		t.Fatalf("unexpected severity %s", corrupt[0].Severity)
	}
	if corrupt[0].EntityID != "law-bad" {
		t.Fatalf("unexpected entity %q", corrupt[0].EntityID)
	}
	if shared.LawStats["unknown"] == nil || shared.LawStats["unknown"].Flagged != 1 {
		t.Fatalf("corrupt law must count against unknown source: %#v", shared.LawStats)
	}
}
