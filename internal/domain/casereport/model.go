package casereport

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the review state of a case report. The voided flag is a separate
// axis; a voided report keeps its status but is excluded from active
// processing.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusDismissed Status = "DISMISSED"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusDraft, StatusSubmitted, StatusDismissed:
		return true
	}
	return false
}

// Terminal reports whether s admits no further automatic transitions.
func (s Status) Terminal() bool {
	return s == StatusSubmitted || s == StatusDismissed
}

// CaseReport maps to the case_report table: one pending or resolved report
// for one patient.
type CaseReport struct {
	ID         uuid.UUID           `db:"id" json:"id"`
	PatientID  uuid.UUID           `db:"patient_id" json:"patient_id"`
	Status     Status              `db:"status" json:"status"`
	Voided     bool                `db:"voided" json:"voided"`
	VoidReason *string             `db:"void_reason" json:"void_reason,omitempty"`
	Form       *CaseReportForm     `db:"form" json:"form,omitempty"`
	Triggers   []CaseReportTrigger `db:"-" json:"triggers"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}

// CaseReportTrigger maps to the case_report_trigger table: a named clinical
// event detected for the report's patient. Immutable once created.
type CaseReportTrigger struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ReportID   uuid.UUID `db:"case_report_id" json:"case_report_id"`
	Name       string    `db:"name" json:"name"`
	DetectedAt time.Time `db:"detected_at" json:"detected_at"`
}

// Open reports whether the report is still subject to trigger processing:
// not voided and not in a terminal status.
func (r *CaseReport) Open() bool {
	return !r.Voided && !r.Status.Terminal()
}

// Trigger returns the attached trigger with the given name, matched
// case-insensitively, or nil.
func (r *CaseReport) Trigger(name string) *CaseReportTrigger {
	for i := range r.Triggers {
		if strings.EqualFold(r.Triggers[i].Name, name) {
			return &r.Triggers[i]
		}
	}
	return nil
}

// HasFormData reports whether a generated snapshot is attached.
func (r *CaseReport) HasFormData() bool {
	return r.Form != nil
}
