package scan

import (
	"context"
	"errors"
	"testing"

	"marsad/internal/audit"
	"marsad/internal/corpus"
	"marsad/internal/findings"
	"marsad/internal/testsupport"
)

func lawWithArticles(id string, articles ...corpus.Article) *corpus.Law {
	return &corpus.Law{
		ID:               id,
		Name:             "نظام تجريبي",
		IssuingAuthority: "مجلس الوزراء",
		IssueDateHijri:   "1445/01/01",
		TotalArticles:    len(articles),
		Articles:         articles,
	}
}

func TestReferenceStageFlagsDanglingReference(t *testing.T) {
	law := lawWithArticles("law-1",
		corpus.Article{Number: 1, Text: "المادة الافتتاحية."},
		corpus.Article{Number: 2, Text: "مع مراعاة أحكام المادة الخامسة يلتزم الجميع."},
		corpus.Article{Number: 3, Text: "نص عادي."},
	)
	repo := testsupport.NewCorpus().AddLaw(law)
	shared := audit.NewContext()

	result, err := referenceStage(testDeps(repo))(context.Background(), shared)
	if err != nil {
		t.Fatalf("reference stage failed: %v", err)
	}
	broken := findByCode(result.Findings, "BROKEN_REFERENCE")
	if len(broken) != 1 {
		t.Fatalf("expected exactly 1 broken reference, got %d: %#v", len(broken), result.Findings)
	}
	f := broken[0]
	if f.Location != "Article 2" {
		t.Fatalf("expected location of the containing article, got %q", f.Location)
	}
	details := f.Details.(findings.ReferenceDetails)
	if details.ReferencedArticle != 5 {
		t.Fatalf("expected dangling reference to article 5, got %d", details.ReferencedArticle)
	}
	if !shared.HasBrokenRefs("law-1") {
		t.Fatal("law must be recorded in shared context for AI prioritization")
	}
}

func TestReferenceStageResolvableReferences(t *testing.T) {
	law := lawWithArticles("law-1",
		corpus.Article{Number: 1, Text: "يُعمل بما ورد في المادة الثالثة."},
		corpus.Article{Number: 2, Text: "مع مراعاة المادة (1)."},
		corpus.Article{Number: 3, Text: "نص."},
	)
	repo := testsupport.NewCorpus().AddLaw(law)
	shared := audit.NewContext()

	result, err := referenceStage(testDeps(repo))(context.Background(), shared)
	if err != nil {
		t.Fatalf("reference stage failed: %v", err)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("resolvable references flagged: %#v", result.Findings)
	}
	if shared.HasBrokenRefs("law-1") {
		t.Fatal("clean law wrongly recorded as broken")
	}
}

func TestReferenceStageDeduplicatesRepeatedReference(t *testing.T) {
	law := lawWithArticles("law-1",
		corpus.Article{Number: 1, Text: "انظر المادة 9. كما تنص المادة 9 على ذلك أيضًا."},
	)
	repo := testsupport.NewCorpus().AddLaw(law)

	result, err := referenceStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("reference stage failed: %v", err)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected repeated reference reported once, got %d", len(result.Findings))
	}
}

func TestReferenceStageSkipsUnreadableLaws(t *testing.T) {
	repo := testsupport.NewCorpus().
		AddLaw(lawWithArticles("law-1", corpus.Article{Number: 1, Text: "نص."})).
		FailRead("law-bad", errors.New("parse failure"))

	result, err := referenceStage(testDeps(repo))(context.Background(), audit.NewContext())
	if err != nil {
		t.Fatalf("reference stage failed: %v", err)
	}
	// The unreadable document was already reported by the structural stage.
	if result.ItemsScanned != 1 {
		t.Fatalf("expected only the readable law counted, got %d", result.ItemsScanned)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("unexpected findings: %#v", result.Findings)
	}
}
