package audit

import (
	"context"

	"marsad/internal/findings"
)

// Result carries the outcome of one scan stage.
type Result struct {
	Category findings.Category
	// ItemsScanned counts the corpus records the stage examined, used for
	// the run's laws/judgments scanned totals.
	ItemsScanned int
	Findings     []findings.Finding
}

// Stage is one step of the audit pipeline. Stages run sequentially in slice
// order; each persists its findings before the next begins, and Checkpoint
// is the run's progress percentage once the stage finishes.
type Stage struct {
	Name       string
	Label      string
	Checkpoint int
	Scan       func(ctx context.Context, shared *Context) (Result, error)
}
