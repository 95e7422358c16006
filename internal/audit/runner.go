package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marsad/internal/config"
	"marsad/internal/findings"
	"marsad/internal/logging"
)

// ErrAlreadyRunning is returned by Start when an audit run is in flight.
var ErrAlreadyRunning = errors.New("an audit run is already in progress")

// Runner executes the audit pipeline. At most one run is active per process;
// the guard is derived from the durable store rather than process memory, so
// a restarted daemon sees runs abandoned by a crashed predecessor and
// reclaims them before starting fresh.
type Runner struct {
	store      *findings.Store
	stages     []Stage
	summarizer Summarizer
	cfg        config.Audit
	logger     *slog.Logger

	mu          sync.Mutex
	activeRunID int64

	// wg tracks the background run goroutine so Close can drain it.
	wg sync.WaitGroup
}

// Summarizer produces the executive summary for a completed run.
type Summarizer interface {
	Summarize(ctx context.Context, run *findings.Run, shared *Context) (string, error)
}

// NewRunner wires the pipeline stages to the findings store.
func NewRunner(store *findings.Store, stages []Stage, summarizer Summarizer, cfg config.Audit, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:      store,
		stages:     stages,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger.With(logging.String(logging.FieldComponent, "audit-runner")),
	}
}

// Start begins a new audit run in the background and returns its run record.
// The supplied context must outlive the run; the daemon passes its root
// context so shutdown cancels in-flight scans. Returns ErrAlreadyRunning if
// the store shows a live run that is not stale.
func (r *Runner) Start(ctx context.Context) (*findings.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	staleAfter := time.Duration(r.cfg.StaleRunMinutes) * time.Minute
	reclaimed, err := r.store.ReclaimStaleRuns(ctx, staleAfter)
	if err != nil {
		return nil, fmt.Errorf("reclaiming stale runs: %w", err)
	}
	if reclaimed > 0 {
		r.logger.Warn("reclaimed abandoned audit runs",
			logging.Int64("count", reclaimed),
			logging.Duration("stale_after", staleAfter))
	}

	active, err := r.store.ActiveRun(ctx)
	if err != nil && !errors.Is(err, findings.ErrNotFound) {
		return nil, fmt.Errorf("checking for active run: %w", err)
	}
	if active != nil {
		return nil, ErrAlreadyRunning
	}

	run, err := r.store.CreateRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating audit run: %w", err)
	}
	r.activeRunID = run.ID

	r.wg.Add(1)
	go r.execute(ctx, run.ID)

	r.logger.Info("audit run started", logging.Int64(logging.FieldRunID, run.ID))
	return run, nil
}

// Wait blocks until any in-flight run goroutine finishes. Intended for
// shutdown and tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, runID int64) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		r.activeRunID = 0
		r.mu.Unlock()
	}()
	defer func() {
		if rec := recover(); rec != nil {
			r.failRun(runID, fmt.Sprintf("audit panicked: %v", rec))
		}
	}()

	logger := r.logger.With(logging.Int64(logging.FieldRunID, runID))
	shared := NewContext()
	var lawsScanned, judgmentsScanned int

	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			r.failRun(runID, fmt.Sprintf("audit canceled during %s", stage.Name))
			return
		}

		stageLogger := logger.With(logging.String(logging.FieldStage, stage.Name))
		stageLogger.Info("stage started")
		started := time.Now()

		result, err := stage.Scan(ctx, shared)
		if err != nil {
			stageLogger.Error("stage failed", logging.Error(err))
			r.failRun(runID, fmt.Sprintf("%s: %v", stage.Name, err))
			return
		}

		inserted, err := r.store.InsertFindings(ctx, runID, result.Findings)
		if err != nil {
			stageLogger.Error("persisting findings failed", logging.Error(err))
			r.failRun(runID, fmt.Sprintf("%s: persisting findings: %v", stage.Name, err))
			return
		}

		switch result.Category {
		case findings.CategoryStructural:
			lawsScanned = result.ItemsScanned
		case findings.CategoryContent:
			judgmentsScanned = result.ItemsScanned
		}

		counts, err := r.store.CountBySeverity(ctx, runID)
		if err != nil {
			r.failRun(runID, fmt.Sprintf("%s: counting findings: %v", stage.Name, err))
			return
		}
		total := counts.Total()
		update := findings.ProgressUpdate{
			Pct:              stage.Checkpoint,
			Step:             stage.Label,
			LawsScanned:      findings.IntPtr(lawsScanned),
			JudgmentsScanned: findings.IntPtr(judgmentsScanned),
			TotalFindings:    findings.IntPtr(total),
			Counts:           &counts,
		}
		if err := r.store.UpdateProgress(ctx, runID, update); err != nil {
			r.failRun(runID, fmt.Sprintf("%s: recording progress: %v", stage.Name, err))
			return
		}

		stageLogger.Info("stage completed",
			logging.Int("items_scanned", result.ItemsScanned),
			logging.Int("findings", len(result.Findings)),
			logging.Int("inserted", inserted),
			logging.Duration("elapsed", time.Since(started)))
	}

	summary := r.buildSummary(ctx, runID, shared)
	if err := r.store.CompleteRun(ctx, runID, summary, shared.SnapshotJSON()); err != nil {
		logger.Error("completing run failed", logging.Error(err))
		r.failRun(runID, fmt.Sprintf("completing run: %v", err))
		return
	}
	logger.Info("audit run completed")
}

func (r *Runner) buildSummary(ctx context.Context, runID int64, shared *Context) string {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		r.logger.Warn("loading run for summary failed", logging.Error(err))
		return ""
	}
	summary, err := r.summarizer.Summarize(ctx, run, shared)
	if err != nil {
		r.logger.Warn("summary generation failed", logging.Error(err))
		return ""
	}
	return summary
}

// failRun marks the run failed using a fresh context so cancellation of the
// run context cannot lose the failure record.
func (r *Runner) failRun(runID int64, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.FailRun(ctx, runID, message); err != nil {
		r.logger.Error("marking run failed",
			logging.Int64(logging.FieldRunID, runID),
			logging.Error(err))
	}
}
