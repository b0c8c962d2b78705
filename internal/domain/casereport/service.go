package casereport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CohortResolver yields the patients currently matching a named clinical
// trigger. Implementations return cohort.ResolutionError or
// cohort.AmbiguousTriggerError when the trigger name cannot be resolved to
// exactly one active definition.
type CohortResolver interface {
	MatchedPatients(ctx context.Context, triggerName string) ([]uuid.UUID, error)
}

// TxRunner runs fn inside an exclusive update scope. The database-backed
// runner wraps fn in a transaction; the default runs fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service owns the case-report state machine and the trigger-deduplication
// algorithm.
type Service struct {
	reports  Repository
	cohorts  CohortResolver
	builder  *FormBuilder
	listener PostSubmitListener
	logger   zerolog.Logger
	runTx    TxRunner
	now      func() time.Time

	patientLocks sync.Map // uuid.UUID -> *sync.Mutex
}

func NewService(reports Repository, cohorts CohortResolver, builder *FormBuilder, listener PostSubmitListener, logger zerolog.Logger) *Service {
	return &Service{
		reports:  reports,
		cohorts:  cohorts,
		builder:  builder,
		listener: listener,
		logger:   logger,
		runTx:    func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		now:      time.Now,
	}
}

// SetTxRunner installs the exclusive update scope used by trigger processing
// and by submission.
func (s *Service) SetTxRunner(runTx TxRunner) {
	s.runTx = runTx
}

func (s *Service) GetCaseReport(ctx context.Context, id uuid.UUID) (*CaseReport, error) {
	return s.reports.GetByID(ctx, id)
}

func (s *Service) GetOpenReportByPatient(ctx context.Context, patientID uuid.UUID) (*CaseReport, error) {
	return s.reports.GetOpenByPatient(ctx, patientID)
}

func (s *Service) ListCaseReports(ctx context.Context, f Filter, limit, offset int) ([]*CaseReport, int, error) {
	return s.reports.List(ctx, f, limit, offset)
}

// Save persists the report's editable content and applies the save
// transition: a NEW report whose form became non-blank moves to DRAFT, and a
// DRAFT report whose form became blank moves back to NEW. Terminal statuses
// are never changed by a save.
func (s *Service) Save(ctx context.Context, r *CaseReport) (*CaseReport, error) {
	if !r.Status.Valid() {
		return nil, fmt.Errorf("invalid status: %s", r.Status)
	}
	switch {
	case r.Status == StatusNew && r.HasFormData():
		r.Status = StatusDraft
	case r.Status == StatusDraft && !r.HasFormData():
		r.Status = StatusNew
	}
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GenerateReportForm builds the patient's clinical snapshot and attaches it
// to the report, overwriting any prior form. Regeneration is only valid
// before submission.
func (s *Service) GenerateReportForm(ctx context.Context, r *CaseReport) (*CaseReport, error) {
	if r.Status == StatusSubmitted {
		return nil, fmt.Errorf("case report %s is submitted, its form can no longer be regenerated", r.ID)
	}
	form, err := s.builder.Build(ctx, r)
	if err != nil {
		return nil, err
	}
	r.Form = form
	return s.Save(ctx, r)
}

// Submit marks the report submitted and notifies the post-submit listener
// exactly once after the status change is durably applied. A report without
// a form gets one generated as part of submission; submitter and comments
// are recorded on the form.
func (s *Service) Submit(ctx context.Context, r *CaseReport, submitter *UuidAndValue, comments string) (*CaseReport, error) {
	if r.Voided {
		return nil, &VoidedEntityError{ReportID: r.ID, Operation: "submit"}
	}
	if r.Status.Terminal() {
		return nil, &StatusConflictError{ReportID: r.ID, From: r.Status, To: StatusSubmitted}
	}

	if r.Form == nil {
		form, err := s.builder.Build(ctx, r)
		if err != nil {
			return nil, err
		}
		r.Form = form
	}
	if submitter != nil {
		r.Form.Submitter = submitter
	}
	if comments != "" {
		r.Form.Comments = comments
	}

	// The compare-and-swap settles any race before the form is persisted; a
	// report another writer already resolved is left untouched. Swap and form
	// write commit together so a failed write cannot leave the report
	// submitted without its snapshot.
	from := r.Status
	err := s.runTx(ctx, func(ctx context.Context) error {
		swapped, err := s.reports.UpdateStatus(ctx, r.ID, from, StatusSubmitted)
		if err != nil {
			return err
		}
		if !swapped {
			return &StatusConflictError{ReportID: r.ID, From: from, To: StatusSubmitted}
		}
		r.Status = StatusSubmitted
		return s.reports.Update(ctx, r)
	})
	if err != nil {
		r.Status = from
		return nil, err
	}

	if s.listener != nil {
		if err := s.listener.AfterSubmit(ctx, r.Form); err != nil {
			// The submission itself is durable; listener failures are not
			// surfaced to the submitter.
			s.logger.Warn().Err(err).
				Str("case_report_id", r.ID.String()).
				Msg("post-submit listener failed")
		}
	}
	return r, nil
}

// Dismiss marks the report dismissed without submitting it anywhere.
func (s *Service) Dismiss(ctx context.Context, r *CaseReport) (*CaseReport, error) {
	if r.Voided {
		return nil, &VoidedEntityError{ReportID: r.ID, Operation: "dismiss"}
	}
	if r.Status.Terminal() {
		return nil, &StatusConflictError{ReportID: r.ID, From: r.Status, To: StatusDismissed}
	}
	swapped, err := s.reports.UpdateStatus(ctx, r.ID, r.Status, StatusDismissed)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, &StatusConflictError{ReportID: r.ID, From: r.Status, To: StatusDismissed}
	}
	r.Status = StatusDismissed
	return r, nil
}

// Void soft-deletes the report. The status is untouched; a voided report is
// simply excluded from active processing.
func (s *Service) Void(ctx context.Context, r *CaseReport, reason string) (*CaseReport, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("a void reason is required")
	}
	if err := s.reports.SetVoided(ctx, r.ID, true, &reason); err != nil {
		return nil, err
	}
	r.Voided = true
	r.VoidReason = &reason
	return r, nil
}

// Unvoid restores a voided report and clears its void reason.
func (s *Service) Unvoid(ctx context.Context, r *CaseReport) (*CaseReport, error) {
	if err := s.reports.SetVoided(ctx, r.ID, false, nil); err != nil {
		return nil, err
	}
	r.Voided = false
	r.VoidReason = nil
	return r, nil
}

// RunTrigger evaluates the named trigger's cohort and, per matched patient,
// creates a report or attaches the trigger to the existing open one.
// Re-firing an already-attached trigger is a no-op. The batch is abandoned
// on the first failing patient; other trigger names are unaffected.
func (s *Service) RunTrigger(ctx context.Context, triggerName string) error {
	patients, err := s.cohorts.MatchedPatients(ctx, triggerName)
	if err != nil {
		return err
	}

	for _, patientID := range patients {
		if err := s.createOrAttach(ctx, triggerName, patientID); err != nil {
			return fmt.Errorf("trigger %q, patient %s: %w", triggerName, patientID, err)
		}
	}
	s.logger.Info().
		Str("trigger", triggerName).
		Int("matched_patients", len(patients)).
		Msg("trigger run complete")
	return nil
}

// createOrAttach is the per-patient serialization point: the lookup and the
// create/attach write happen under a per-patient lock and inside one
// exclusive update scope, so concurrent trigger runs cannot both create a
// report for the same patient.
func (s *Service) createOrAttach(ctx context.Context, triggerName string, patientID uuid.UUID) error {
	mu := s.patientLock(patientID)
	mu.Lock()
	defer mu.Unlock()

	attach := func(ctx context.Context) error {
		report, err := s.reports.GetOpenByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if report == nil {
			return s.reports.Create(ctx, &CaseReport{
				PatientID: patientID,
				Status:    StatusNew,
				Triggers:  []CaseReportTrigger{{Name: triggerName, DetectedAt: s.now()}},
			})
		}
		if report.Trigger(triggerName) != nil {
			return nil
		}
		return s.reports.AddTrigger(ctx, &CaseReportTrigger{
			ReportID:   report.ID,
			Name:       triggerName,
			DetectedAt: s.now(),
		})
	}

	err := s.runTx(ctx, attach)
	if errors.Is(err, ErrDuplicateOpenReport) {
		// Another writer created the report between our lookup and insert;
		// re-run the sequence, which now attaches instead.
		return s.runTx(ctx, attach)
	}
	return err
}

func (s *Service) patientLock(patientID uuid.UUID) *sync.Mutex {
	v, _ := s.patientLocks.LoadOrStore(patientID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
