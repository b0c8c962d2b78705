package casereport

import (
	"context"

	"github.com/google/uuid"
)

// Filter widens a listing beyond the default of open, non-voided reports.
// Typically only data-migration callers set all three.
type Filter struct {
	IncludeVoided    bool
	IncludeSubmitted bool
	IncludeDismissed bool
}

type Repository interface {
	// Create inserts the report and its triggers. It returns
	// ErrDuplicateOpenReport when the patient already has an open report.
	Create(ctx context.Context, r *CaseReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*CaseReport, error)
	// GetOpenByPatient returns the patient's open (non-voided, non-terminal)
	// report, or nil when there is none. Inside a transaction the row is
	// locked for update.
	GetOpenByPatient(ctx context.Context, patientID uuid.UUID) (*CaseReport, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*CaseReport, int, error)
	// Update writes the report's status, form and void fields.
	Update(ctx context.Context, r *CaseReport) error
	// UpdateStatus performs a compare-and-swap on the status column and
	// reports whether the swap took effect.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	SetVoided(ctx context.Context, id uuid.UUID, voided bool, reason *string) error
	// AddTrigger attaches a trigger to a report. Adding a name the report
	// already carries is a no-op, so concurrent runs of the same trigger
	// cannot fail each other.
	AddTrigger(ctx context.Context, t *CaseReportTrigger) error
}
