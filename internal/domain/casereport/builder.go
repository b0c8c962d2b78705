package casereport

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/casereport/internal/domain/ehr"
)

// CIEL/HL7 reference-term codes for the clinical concepts a report form
// aggregates.
const (
	TermCodeViralLoad     = "856"
	TermCodeCD4Count      = "5497"
	TermCodeHIVTest       = "1040"
	TermCodeWHOStage      = "5356"
	TermCodeARVMedSet     = "1085"
	TermCodeARVStopReason = "1252"
)

// mostRecentLimit bounds the per-series observation history on a form.
const mostRecentLimit = 3

// FormBuilder projects a patient's clinical history into a CaseReportForm.
// Building is read-only against the record and side-effect free.
type FormBuilder struct {
	gateway ehr.Gateway
	now     func() time.Time
}

func NewFormBuilder(gateway ehr.Gateway) *FormBuilder {
	return &FormBuilder{gateway: gateway, now: time.Now}
}

// Build materializes the snapshot for the report's patient. It fails with a
// MissingRequiredDataError when the patient has no active identifier; a
// report cannot be formed without one.
func (b *FormBuilder) Build(ctx context.Context, report *CaseReport) (*CaseReportForm, error) {
	patient, err := b.gateway.GetPatient(ctx, report.PatientID)
	if err != nil {
		return nil, err
	}

	identifier, err := b.gateway.ActiveIdentifier(ctx, report.PatientID)
	if err != nil {
		return nil, err
	}
	if identifier == nil {
		return nil, &MissingRequiredDataError{PatientID: report.PatientID, Field: "active identifier"}
	}

	form := &CaseReportForm{
		ReportUUID: report.ID.String(),
		ReportDate: report.CreatedAt,
		Dead:       patient.Dead,
		PatientIdentifier: &UuidAndValue{
			UUID:  identifier.UUID.String(),
			Value: identifier.Value,
		},
		IdentifierType: &UuidAndValue{
			UUID:  identifier.TypeUUID.String(),
			Value: identifier.TypeName,
		},
	}

	if patient.Gender != nil {
		form.Gender = *patient.Gender
	}
	if patient.BirthDate != nil {
		form.Birthdate = patient.BirthDate.Format(DateFormat)
	}
	if patient.GivenName != nil {
		form.GivenName = *patient.GivenName
	}
	if patient.MiddleName != nil {
		form.MiddleName = *patient.MiddleName
	}
	if patient.FamilyName != nil {
		form.FamilyName = *patient.FamilyName
	}
	form.FullName = patient.FullName()

	// Death fields are emitted only for a deceased patient; stale death data
	// on a living record never reaches the form.
	if patient.Dead {
		if patient.CauseOfDeath != nil {
			form.CauseOfDeath = &UuidAndValue{
				UUID:  patient.CauseOfDeath.UUID.String(),
				Value: patient.CauseOfDeath.Display,
			}
		}
		if patient.DeathDate != nil {
			form.Deathdate = patient.DeathDate.Format(DateFormat)
		}
	}

	for _, tr := range report.Triggers {
		form.Triggers = append(form.Triggers, NewDatedValue(tr.ID.String(), tr.Name, tr.DetectedAt))
	}

	if form.MostRecentCd4Counts, err = b.mostRecent(ctx, report.PatientID, TermCodeCD4Count); err != nil {
		return nil, err
	}
	if form.MostRecentHivTests, err = b.mostRecent(ctx, report.PatientID, TermCodeHIVTest); err != nil {
		return nil, err
	}
	if form.MostRecentViralLoads, err = b.mostRecent(ctx, report.PatientID, TermCodeViralLoad); err != nil {
		return nil, err
	}

	if form.CurrentHivMedications, err = b.currentArvMedications(ctx, report.PatientID); err != nil {
		return nil, err
	}

	if form.CurrentHivWhoStage, err = b.singleton(ctx, report.PatientID, TermCodeWHOStage); err != nil {
		return nil, err
	}
	if form.MostRecentArvStopReason, err = b.singleton(ctx, report.PatientID, TermCodeARVStopReason); err != nil {
		return nil, err
	}

	visit, err := b.gateway.LastVisit(ctx, report.PatientID)
	if err != nil {
		return nil, err
	}
	if visit != nil {
		form.LastVisitDate = &UuidAndValue{
			UUID:  visit.UUID.String(),
			Value: visit.StartedAt.Format(DateFormat),
		}
	}

	return form, nil
}

// mostRecent maps up to mostRecentLimit gateway observations into dated
// entries, preserving the gateway's most-recent-first ordering.
func (b *FormBuilder) mostRecent(ctx context.Context, patientID uuid.UUID, conceptCode string) ([]DatedUuidAndValue, error) {
	observations, err := b.gateway.MostRecentObservations(ctx, patientID, conceptCode, mostRecentLimit)
	if err != nil {
		return nil, err
	}
	var entries []DatedUuidAndValue
	for _, o := range observations {
		entries = append(entries, NewDatedValue(o.UUID.String(), obsValue(o), o.EffectiveAt))
	}
	return entries, nil
}

// singleton returns the most recent single observation for a concept as an
// undated value pair, or nil when the patient has none.
func (b *FormBuilder) singleton(ctx context.Context, patientID uuid.UUID, conceptCode string) (*UuidAndValue, error) {
	observations, err := b.gateway.MostRecentObservations(ctx, patientID, conceptCode, 1)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, nil
	}
	return &UuidAndValue{UUID: observations[0].UUID.String(), Value: obsValue(observations[0])}, nil
}

// currentArvMedications intersects the patient's active drug orders with the
// ARV medication concept set, de-duplicated by drug.
func (b *FormBuilder) currentArvMedications(ctx context.Context, patientID uuid.UUID) ([]DatedUuidAndValue, error) {
	orders, err := b.gateway.ActiveDrugOrders(ctx, patientID, b.now())
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	members, err := b.gateway.ConceptSetMembers(ctx, TermCodeARVMedSet)
	if err != nil {
		return nil, err
	}
	arvConcepts := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		arvConcepts[m.UUID] = true
	}

	seen := make(map[uuid.UUID]bool)
	var meds []DatedUuidAndValue
	for _, order := range orders {
		if !arvConcepts[order.Concept.UUID] || seen[order.DrugUUID] {
			continue
		}
		seen[order.DrugUUID] = true
		meds = append(meds, NewDatedValue(order.DrugUUID.String(), arvDisplayName(order), order.ActivatedAt))
	}
	return meds, nil
}

// arvDisplayName composes the medication display as the ordered concept's
// display, with the drug's own name appended when it differs.
func arvDisplayName(order ehr.DrugOrder) string {
	display := order.Concept.Display
	if order.DrugName != "" && !strings.EqualFold(display, order.DrugName) {
		display += " (" + order.DrugName + ")"
	}
	return display
}

func obsValue(o ehr.Observation) interface{} {
	if o.ValueNumeric != nil {
		return *o.ValueNumeric
	}
	if o.Value != nil {
		return *o.Value
	}
	return ""
}
