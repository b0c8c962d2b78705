package casereport

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDuplicateOpenReport is returned by repositories when an insert would
// create a second open report for the same patient.
var ErrDuplicateOpenReport = errors.New("patient already has an open case report")

// MissingRequiredDataError reports that mandatory clinical identity data was
// absent while building a report form.
type MissingRequiredDataError struct {
	PatientID uuid.UUID
	Field     string
}

func (e *MissingRequiredDataError) Error() string {
	return fmt.Sprintf("patient %s has no %s, required to form a case report", e.PatientID, e.Field)
}

// DateComparisonError reports that a most-recent selection encountered an
// entry with no usable date. Dropping such an entry silently would corrupt
// the ordering guarantee, so the whole selection fails.
type DateComparisonError struct {
	UUID string
}

func (e *DateComparisonError) Error() string {
	return fmt.Sprintf("entry %s has no date, required for most-recent ordering", e.UUID)
}

// VoidedEntityError reports an operation attempted on a voided report.
// Recoverable: unvoid the report first.
type VoidedEntityError struct {
	ReportID  uuid.UUID
	Operation string
}

func (e *VoidedEntityError) Error() string {
	return fmt.Sprintf("cannot %s voided case report %s", e.Operation, e.ReportID)
}

// StatusConflictError reports a guarded status transition that lost a
// compare-and-swap race or was attempted from an invalid state.
type StatusConflictError struct {
	ReportID uuid.UUID
	From     Status
	To       Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("case report %s: cannot move from %s to %s", e.ReportID, e.From, e.To)
}
