package findings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = "id, status, started_at, finished_at, progress_pct, current_step, total_laws_scanned, total_judgments_scanned, total_findings, critical_count, high_count, medium_count, low_count, summary, error_message, context_json, updated_at"

// CreateRun inserts a new audit run in running status with zero counts.
func (s *Store) CreateRun(ctx context.Context) (*Run, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx,
		`INSERT INTO audit_runs (status, started_at, progress_pct, current_step, updated_at)
         VALUES (?, ?, 0, '', ?)`,
		RunRunning, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRun(ctx, id)
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM audit_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return run, nil
}

// ActiveRun returns the run currently in running status, or nil when idle.
// The single-flight guard is derived from this query rather than process
// memory so it survives restarts.
func (s *Store) ActiveRun(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM audit_runs WHERE status = ? ORDER BY id DESC LIMIT 1", RunRunning)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent run regardless of status, or nil when
// no audit has ever executed.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM audit_runs ORDER BY id DESC LIMIT 1")
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// UpdateProgress applies a partial update to a running run. Only supplied
// count fields are overwritten; updated_at always advances so staleness
// detection can use it as a heartbeat.
func (s *Store) UpdateProgress(ctx context.Context, id int64, update ProgressUpdate) error {
	sets := []string{"progress_pct = ?", "current_step = ?", "updated_at = ?"}
	args := []any{update.Pct, update.Step, time.Now().UTC().Format(time.RFC3339Nano)}

	if update.LawsScanned != nil {
		sets = append(sets, "total_laws_scanned = ?")
		args = append(args, *update.LawsScanned)
	}
	if update.JudgmentsScanned != nil {
		sets = append(sets, "total_judgments_scanned = ?")
		args = append(args, *update.JudgmentsScanned)
	}
	if update.TotalFindings != nil {
		sets = append(sets, "total_findings = ?")
		args = append(args, *update.TotalFindings)
	}
	if update.Counts != nil {
		sets = append(sets, "critical_count = ?", "high_count = ?", "medium_count = ?", "low_count = ?")
		args = append(args, update.Counts.Critical, update.Counts.High, update.Counts.Medium, update.Counts.Low)
	}
	args = append(args, id)

	res, err := s.execWithRetry(ctx,
		"UPDATE audit_runs SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update progress rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update progress run %d: %w", id, ErrNotFound)
	}
	return nil
}

// CompleteRun marks the run completed at 100% with the supplied summary and
// shared-context snapshot. Final severity counts are recomputed from the
// persisted findings rather than trusted from the caller, because duplicate
// findings may have been silently suppressed at insert time.
func (s *Store) CompleteRun(ctx context.Context, id int64, summary, contextJSON string) error {
	counts, err := s.CountBySeverity(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE audit_runs
         SET status = ?, finished_at = ?, progress_pct = 100, current_step = ?,
             total_findings = ?, critical_count = ?, high_count = ?, medium_count = ?, low_count = ?,
             summary = ?, context_json = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		RunCompleted, now, "completed",
		counts.Total(), counts.Critical, counts.High, counts.Medium, counts.Low,
		nullableString(summary), nullableString(contextJSON), now,
		id, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete run rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("complete run %d: not running: %w", id, ErrNotFound)
	}
	return nil
}

// FailRun marks the run failed with the captured error message. Findings
// already persisted by completed stages are retained.
func (s *Store) FailRun(ctx context.Context, id int64, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE audit_runs
         SET status = ?, finished_at = ?, current_step = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		RunFailed, now, "failed", nullableString(errorMessage), now,
		id, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail run rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fail run %d: not running: %w", id, ErrNotFound)
	}
	return nil
}

// ReclaimStaleRuns fails running rows whose last progress update is older
// than staleAfter. A crashed process leaves its run stuck in running status;
// reclaiming it here keeps the durable single-flight check from wedging
// forever. Returns the number of reclaimed runs.
func (s *Store) ReclaimStaleRuns(ctx context.Context, staleAfter time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-staleAfter).Format(time.RFC3339Nano)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE audit_runs
         SET status = ?, finished_at = ?, error_message = ?, updated_at = ?
         WHERE status = ? AND updated_at < ?`,
		RunFailed, now, "audit abandoned: no progress within staleness window", now,
		RunRunning, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id               int64
		status           string
		startedRaw       string
		finishedRaw      sql.NullString
		progressPct      int
		currentStep      string
		lawsScanned      int
		judgmentsScanned int
		totalFindings    int
		counts           SeverityCounts
		summary          sql.NullString
		errorMessage     sql.NullString
		contextJSON      sql.NullString
		updatedRaw       string
	)

	if err := scanner.Scan(
		&id, &status, &startedRaw, &finishedRaw, &progressPct, &currentStep,
		&lawsScanned, &judgmentsScanned, &totalFindings,
		&counts.Critical, &counts.High, &counts.Medium, &counts.Low,
		&summary, &errorMessage, &contextJSON, &updatedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:                    id,
		Status:                RunStatus(status),
		ProgressPct:           progressPct,
		CurrentStep:           currentStep,
		TotalLawsScanned:      lawsScanned,
		TotalJudgmentsScanned: judgmentsScanned,
		TotalFindings:         totalFindings,
		Counts:                counts,
		Summary:               summary.String,
		ErrorMessage:          errorMessage.String,
		ContextJSON:           contextJSON.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}
