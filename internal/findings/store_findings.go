package findings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const findingColumns = "id, audit_run_id, severity, code, category, entity_type, entity_id, entity_name, message, location, details_json, status, fingerprint, created_at"

// InsertFindings persists a batch of findings for a run. Fingerprints are
// computed here when absent and the insert uses INSERT OR IGNORE semantics,
// so a defect already recorded by an earlier run (or an earlier batch of the
// same run) is silently skipped. Returns how many rows were newly inserted.
func (s *Store) InsertFindings(ctx context.Context, runID int64, items []Finding) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO audit_findings (
            audit_run_id, severity, code, category, entity_type, entity_id,
            entity_name, message, location, details_json, status, fingerprint, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	inserted := 0
	for i := range items {
		f := &items[i]
		if !ValidSeverity(f.Severity) {
			return inserted, fmt.Errorf("insert finding %q: invalid severity %q", f.Code, f.Severity)
		}
		if f.Status == "" {
			f.Status = StatusOpen
		}
		if f.Fingerprint == "" {
			f.ComputeFingerprint()
		}
		detailsJSON, err := MarshalDetails(f.Details)
		if err != nil {
			return inserted, fmt.Errorf("insert finding %q: %w", f.Code, err)
		}
		res, err := stmt.ExecContext(ctx,
			runID, f.Severity, f.Code, f.Category, f.EntityType, f.EntityID,
			nullableString(f.EntityName), f.Message, nullableString(f.Location),
			nullableString(detailsJSON), f.Status, f.Fingerprint, now,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert finding %q: %w", f.Code, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("insert finding rows: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

// Filters narrows GetFindings results. Zero values mean "any".
type Filters struct {
	RunID      int64
	Severity   Severity
	Category   Category
	Status     Status
	EntityType EntityType
	Page       int
	Limit      int
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// GetFindings returns filtered, paginated findings ordered by severity rank
// (critical first) then recency, plus the total row count for the filter.
func (s *Store) GetFindings(ctx context.Context, filters Filters) ([]Finding, int, error) {
	ctx = ensureContext(ctx)

	var conds []string
	var args []any
	if filters.RunID > 0 {
		conds = append(conds, "audit_run_id = ?")
		args = append(args, filters.RunID)
	}
	if filters.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, filters.Severity)
	}
	if filters.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filters.Category)
	}
	if filters.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filters.Status)
	}
	if filters.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, filters.EntityType)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM audit_findings"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count findings: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	page := filters.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := "SELECT " + findingColumns + " FROM audit_findings" + where + `
        ORDER BY CASE severity
            WHEN 'critical' THEN 0
            WHEN 'high' THEN 1
            WHEN 'medium' THEN 2
            ELSE 3
        END, created_at DESC, id DESC
        LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var results []Finding
	for rows.Next() {
		finding, err := scanFinding(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan finding: %w", err)
		}
		results = append(results, *finding)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate findings: %w", err)
	}
	return results, total, nil
}

// GetFinding fetches one finding by id.
func (s *Store) GetFinding(ctx context.Context, id int64) (*Finding, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+findingColumns+" FROM audit_findings WHERE id = ?", id)
	finding, err := scanFinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get finding %d: %w", id, err)
	}
	return finding, nil
}

// UpdateFindingStatus records a human-triage decision. It never touches the
// owning run's aggregate counts; those are snapshots taken at run time.
func (s *Store) UpdateFindingStatus(ctx context.Context, id int64, status Status) (bool, error) {
	if !ValidStatus(status) {
		return false, fmt.Errorf("invalid finding status %q", status)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE audit_findings SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return false, fmt.Errorf("update finding status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update finding status rows: %w", err)
	}
	return affected > 0, nil
}

// CountBySeverity aggregates persisted findings for a run grouped by severity.
func (s *Store) CountBySeverity(ctx context.Context, runID int64) (SeverityCounts, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT severity, COUNT(1) FROM audit_findings WHERE audit_run_id = ? GROUP BY severity", runID)
	if err != nil {
		return SeverityCounts{}, fmt.Errorf("count by severity: %w", err)
	}
	defer rows.Close()

	var counts SeverityCounts
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return SeverityCounts{}, fmt.Errorf("scan severity count: %w", err)
		}
		switch Severity(severity) {
		case SeverityCritical:
			counts.Critical = count
		case SeverityHigh:
			counts.High = count
		case SeverityMedium:
			counts.Medium = count
		case SeverityLow:
			counts.Low = count
		}
	}
	if err := rows.Err(); err != nil {
		return SeverityCounts{}, fmt.Errorf("iterate severity counts: %w", err)
	}
	return counts, nil
}

func scanFinding(scanner interface{ Scan(dest ...any) error }) (*Finding, error) {
	var (
		id          int64
		runID       int64
		severity    string
		code        string
		category    string
		entityType  string
		entityID    string
		entityName  sql.NullString
		message     string
		location    sql.NullString
		detailsJSON sql.NullString
		status      string
		fingerprint string
		createdRaw  string
	)

	if err := scanner.Scan(
		&id, &runID, &severity, &code, &category, &entityType, &entityID,
		&entityName, &message, &location, &detailsJSON, &status, &fingerprint, &createdRaw,
	); err != nil {
		return nil, err
	}

	finding := &Finding{
		ID:          id,
		AuditRunID:  runID,
		Severity:    Severity(severity),
		Code:        code,
		Category:    Category(category),
		EntityType:  EntityType(entityType),
		EntityID:    entityID,
		EntityName:  entityName.String,
		Message:     message,
		Location:    location.String,
		Status:      Status(status),
		Fingerprint: fingerprint,
	}
	if detailsJSON.Valid {
		details, err := UnmarshalDetails(detailsJSON.String)
		if err != nil {
			return nil, err
		}
		finding.Details = details
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		finding.CreatedAt = created
	}
	return finding, nil
}
