package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"marsad/internal/audit"
	"marsad/internal/findings"
	"marsad/internal/logging"
	"marsad/internal/testsupport"
)

type staticSummarizer struct{ text string }

func (s staticSummarizer) Summarize(context.Context, *findings.Run, *audit.Context) (string, error) {
	return s.text, nil
}

func stageFinding(code, entityID string, severity findings.Severity) findings.Finding {
	return findings.Finding{
		Severity:   severity,
		Code:       code,
		Category:   findings.CategoryStructural,
		EntityType: findings.EntityLaw,
		EntityID:   entityID,
		Message:    "ملاحظة",
	}
}

func newRunner(t *testing.T, stages []audit.Stage) (*audit.Runner, *findings.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := audit.NewRunner(store, stages, staticSummarizer{text: "ملخص تجريبي"}, cfg.Audit, logging.NewNop())
	return runner, store
}

func waitForRun(t *testing.T, runner *audit.Runner, store *findings.Store, runID int64) *findings.Run {
	t.Helper()
	runner.Wait()
	run, err := store.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	return run
}

func TestRunnerCompletesPipeline(t *testing.T) {
	var checkpoints []int
	stages := []audit.Stage{
		{
			Name:       "structural",
			Label:      "الفحص البنيوي",
			Checkpoint: 30,
			Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
				checkpoints = append(checkpoints, 30)
				return audit.Result{
					Category:     findings.CategoryStructural,
					ItemsScanned: 4,
					Findings: []findings.Finding{
						stageFinding("MISSING_MANDATORY_FIELD", "law-1", findings.SeverityHigh),
					},
				}, nil
			},
		},
		{
			Name:       "content",
			Label:      "فحص المحتوى",
			Checkpoint: 50,
			Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
				checkpoints = append(checkpoints, 50)
				return audit.Result{
					Category:     findings.CategoryContent,
					ItemsScanned: 7,
					Findings: []findings.Finding{{
						Severity:   findings.SeverityMedium,
						Code:       "TRUNCATED_TEXT",
						Category:   findings.CategoryContent,
						EntityType: findings.EntityJudgment,
						EntityID:   "j-1",
						Message:    "نص مبتور",
					}},
				}, nil
			},
		},
	}
	runner, store := newRunner(t, stages)

	run, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	final := waitForRun(t, runner, store, run.ID)

	if final.Status != findings.RunCompleted {
		t.Fatalf("expected completed run, got %s (error %q)", final.Status, final.ErrorMessage)
	}
	if final.ProgressPct != 100 {
		t.Fatalf("expected progress 100, got %d", final.ProgressPct)
	}
	if final.TotalLawsScanned != 4 || final.TotalJudgmentsScanned != 7 {
		t.Fatalf("unexpected scan totals: laws=%d judgments=%d", final.TotalLawsScanned, final.TotalJudgmentsScanned)
	}
	if final.Summary != "ملخص تجريبي" {
		t.Fatalf("unexpected summary %q", final.Summary)
	}
	if final.ContextJSON == "" {
		t.Fatal("expected shared context snapshot on completed run")
	}
	if len(checkpoints) != 2 || checkpoints[0] != 30 || checkpoints[1] != 50 {
		t.Fatalf("stages ran out of order: %v", checkpoints)
	}

	counts, err := store.CountBySeverity(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("CountBySeverity failed: %v", err)
	}
	if final.Counts != counts || final.TotalFindings != counts.Total() {
		t.Fatalf("run aggregates %+v diverge from findings %+v", final.Counts, counts)
	}
}

func TestRunnerSingleFlight(t *testing.T) {
	release := make(chan struct{})
	stages := []audit.Stage{{
		Name:       "slow",
		Label:      "مرحلة بطيئة",
		Checkpoint: 50,
		Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return audit.Result{}, ctx.Err()
			}
			return audit.Result{Category: findings.CategoryHealth}, nil
		},
	}}
	runner, store := newRunner(t, stages)

	run, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := runner.Start(context.Background()); !errors.Is(err, audit.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	close(release)
	final := waitForRun(t, runner, store, run.ID)
	if final.Status != findings.RunCompleted {
		t.Fatalf("expected completed run, got %s", final.Status)
	}

	// Once the first run has finished a new one may start.
	second, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if second.ID == run.ID {
		t.Fatal("expected a fresh run id")
	}
	runner.Wait()
}

func TestRunnerStageErrorFailsRun(t *testing.T) {
	stages := []audit.Stage{
		{
			Name:       "structural",
			Label:      "الفحص البنيوي",
			Checkpoint: 30,
			Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
				return audit.Result{
					Category: findings.CategoryStructural,
					Findings: []findings.Finding{
						stageFinding("CORRUPT_LAW_JSON", "law-1", findings.SeverityCritical),
					},
				}, nil
			},
		},
		{
			Name:       "reference",
			Label:      "فحص الإحالات",
			Checkpoint: 60,
			Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
				return audit.Result{}, errors.New("corpus unavailable")
			},
		},
	}
	runner, store := newRunner(t, stages)

	run, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	final := waitForRun(t, runner, store, run.ID)
	if final.Status != findings.RunFailed {
		t.Fatalf("expected failed run, got %s", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected error message on failed run")
	}

	// Findings from the completed stage survive the failure.
	_, total, err := store.GetFindings(context.Background(), findings.Filters{RunID: run.ID})
	if err != nil {
		t.Fatalf("GetFindings failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 retained finding, got %d", total)
	}
}

func TestRunnerStagePanicFailsRun(t *testing.T) {
	stages := []audit.Stage{{
		Name:       "health",
		Label:      "فحص السلامة",
		Checkpoint: 5,
		Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
			panic("corrupted index iterator")
		},
	}}
	runner, store := newRunner(t, stages)

	run, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	final := waitForRun(t, runner, store, run.ID)
	if final.Status != findings.RunFailed {
		t.Fatalf("expected failed run after panic, got %s", final.Status)
	}
}

func TestRunnerCancellationFailsRun(t *testing.T) {
	started := make(chan struct{})
	stages := []audit.Stage{{
		Name:       "slow",
		Label:      "مرحلة بطيئة",
		Checkpoint: 50,
		Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
			close(started)
			<-ctx.Done()
			return audit.Result{}, ctx.Err()
		},
	}}
	runner, store := newRunner(t, stages)

	ctx, cancel := context.WithCancel(context.Background())
	run, err := runner.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("stage never started")
	}
	cancel()

	final := waitForRun(t, runner, store, run.ID)
	if final.Status != findings.RunFailed {
		t.Fatalf("expected failed run after cancellation, got %s", final.Status)
	}
}

func TestRunnerDeduplicatesAcrossStages(t *testing.T) {
	duplicate := stageFinding("EMPTY_ARTICLE_TEXT", "law-1", findings.SeverityHigh)
	duplicate.Location = "Article 2"
	stage := func(name string, checkpoint int) audit.Stage {
		return audit.Stage{
			Name:       name,
			Label:      name,
			Checkpoint: checkpoint,
			Scan: func(ctx context.Context, shared *audit.Context) (audit.Result, error) {
				return audit.Result{
					Category: findings.CategoryStructural,
					Findings: []findings.Finding{duplicate},
				}, nil
			},
		}
	}
	runner, store := newRunner(t, []audit.Stage{stage("first", 30), stage("second", 60)})

	run, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	final := waitForRun(t, runner, store, run.ID)
	if final.Status != findings.RunCompleted {
		t.Fatalf("expected completed run, got %s", final.Status)
	}
	if final.TotalFindings != 1 {
		t.Fatalf("expected duplicate suppressed, total=%d", final.TotalFindings)
	}
}
