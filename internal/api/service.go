package api

import (
	"context"
	"errors"
	"fmt"

	"marsad/internal/findings"
)

// ErrUnknownStatus rejects triage requests with an unrecognized status value.
var ErrUnknownStatus = errors.New("unknown finding status")

// AuditService exposes run status and findings triage over the store. Run
// control stays with the orchestrator; this service is read-mostly.
type AuditService struct {
	store *findings.Store
}

// NewAuditService wires the service to the findings store.
func NewAuditService(store *findings.Store) *AuditService {
	return &AuditService{store: store}
}

// LatestRun returns the most recent run, or nil when no run exists yet.
func (s *AuditService) LatestRun(ctx context.Context) (*Run, error) {
	run, err := s.store.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, findings.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading latest run: %w", err)
	}
	return FromRun(run), nil
}

// Findings returns one filtered page plus the total match count.
func (s *AuditService) Findings(ctx context.Context, filters findings.Filters) (FindingsListResponse, error) {
	items, total, err := s.store.GetFindings(ctx, filters)
	if err != nil {
		return FindingsListResponse{}, fmt.Errorf("listing findings: %w", err)
	}
	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 50
	}
	return FindingsListResponse{
		Findings: FromFindings(items),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

// UpdateFindingStatus applies a reviewer triage action. It reports false when
// the finding does not exist and never touches run aggregates.
func (s *AuditService) UpdateFindingStatus(ctx context.Context, id int64, status string) (bool, error) {
	parsed := findings.Status(status)
	if !findings.ValidStatus(parsed) {
		return false, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	updated, err := s.store.UpdateFindingStatus(ctx, id, parsed)
	if err != nil {
		return false, fmt.Errorf("updating finding %d: %w", id, err)
	}
	return updated, nil
}
