package casereport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/casereport/internal/domain/ehr"
)

type mockGateway struct {
	patients     map[uuid.UUID]*ehr.Patient
	identifiers  map[uuid.UUID]*ehr.Identifier
	observations map[string][]ehr.Observation
	drugOrders   []ehr.DrugOrder
	setMembers   map[string][]ehr.Concept
	visits       map[uuid.UUID]*ehr.Visit
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		patients:     make(map[uuid.UUID]*ehr.Patient),
		identifiers:  make(map[uuid.UUID]*ehr.Identifier),
		observations: make(map[string][]ehr.Observation),
		setMembers:   make(map[string][]ehr.Concept),
		visits:       make(map[uuid.UUID]*ehr.Visit),
	}
}

func (m *mockGateway) GetPatient(ctx context.Context, patientID uuid.UUID) (*ehr.Patient, error) {
	p, ok := m.patients[patientID]
	if !ok {
		return nil, errors.New("patient not found")
	}
	return p, nil
}

func (m *mockGateway) ActiveIdentifier(ctx context.Context, patientID uuid.UUID) (*ehr.Identifier, error) {
	return m.identifiers[patientID], nil
}

func (m *mockGateway) MostRecentObservations(ctx context.Context, patientID uuid.UUID, conceptCode string, limit int) ([]ehr.Observation, error) {
	obs := m.observations[conceptCode]
	if len(obs) > limit {
		obs = obs[:limit]
	}
	return obs, nil
}

func (m *mockGateway) ActiveDrugOrders(ctx context.Context, patientID uuid.UUID, asOf time.Time) ([]ehr.DrugOrder, error) {
	return m.drugOrders, nil
}

func (m *mockGateway) ConceptSetMembers(ctx context.Context, setCode string) ([]ehr.Concept, error) {
	return m.setMembers[setCode], nil
}

func (m *mockGateway) LastVisit(ctx context.Context, patientID uuid.UUID) (*ehr.Visit, error) {
	return m.visits[patientID], nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func testPatient(id uuid.UUID) *ehr.Patient {
	return &ehr.Patient{
		ID:         id,
		GivenName:  strPtr("Horatio"),
		FamilyName: strPtr("Hornblower"),
		Gender:     strPtr("M"),
	}
}

func testIdentifier() *ehr.Identifier {
	return &ehr.Identifier{
		UUID:     uuid.New(),
		Value:    "M-1001",
		TypeUUID: uuid.New(),
		TypeName: "National Health ID",
	}
}

func TestBuild_MissingIdentifierFails(t *testing.T) {
	gw := newMockGateway()
	patientID := uuid.New()
	gw.patients[patientID] = testPatient(patientID)

	builder := NewFormBuilder(gw)
	_, err := builder.Build(context.Background(), &CaseReport{ID: uuid.New(), PatientID: patientID})

	var missing *MissingRequiredDataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRequiredDataError, got %v", err)
	}
	if missing.PatientID != patientID {
		t.Errorf("error names wrong patient: %s", missing.PatientID)
	}
}

func TestBuild_DemographicsAndIdentifier(t *testing.T) {
	gw := newMockGateway()
	patientID := uuid.New()
	gw.patients[patientID] = testPatient(patientID)
	ident := testIdentifier()
	gw.identifiers[patientID] = ident

	builder := NewFormBuilder(gw)
	form, err := builder.Build(context.Background(), &CaseReport{ID: uuid.New(), PatientID: patientID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if form.FullName != "Horatio Hornblower" {
		t.Errorf("full name = %q", form.FullName)
	}
	if form.Gender != "M" {
		t.Errorf("gender = %q", form.Gender)
	}
	if form.PatientIdentifier == nil || form.PatientIdentifier.Value != "M-1001" {
		t.Errorf("patient identifier = %+v", form.PatientIdentifier)
	}
	if form.IdentifierType == nil || form.IdentifierType.Value != "National Health ID" {
		t.Errorf("identifier type = %+v", form.IdentifierType)
	}
}

func TestBuild_DeathFieldsOnlyWhenDead(t *testing.T) {
	gw := newMockGateway()
	patientID := uuid.New()
	deathDate := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	p := testPatient(patientID)
	p.DeathDate = &deathDate
	p.CauseOfDeath = &ehr.Concept{UUID: uuid.New(), Code: "5089", Display: "UNKNOWN"}
	gw.patients[patientID] = p
	gw.identifiers[patientID] = testIdentifier()

	builder := NewFormBuilder(gw)

	// Alive: stale death data stays off the form.
	form, err := builder.Build(context.Background(), &CaseReport{ID: uuid.New(), PatientID: patientID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if form.Dead || form.Deathdate != "" || form.CauseOfDeath != nil {
		t.Errorf("living patient leaked death fields: dead=%v deathdate=%q cause=%+v",
			form.Dead, form.Deathdate, form.CauseOfDeath)
	}

	// Dead: both fields come through.
	p.Dead = true
	form, err = builder.Build(context.Background(), &CaseReport{ID: uuid.New(), PatientID: patientID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !form.Dead || form.Deathdate == "" || form.CauseOfDeath == nil {
		t.Errorf("deceased patient missing death fields: dead=%v deathdate=%q cause=%+v",
			form.Dead, form.Deathdate, form.CauseOfDeath)
	}
}

func TestBuild_MostRecentSeriesCappedAndOrdered(t *testing.T) {
	gw := newMockGateway()
	patientID := uuid.New()
	gw.patients[patientID] = testPatient(patientID)
	gw.identifiers[patientID] = testIdentifier()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		gw.observations[TermCodeCD4Count] = append(gw.observations[TermCodeCD4Count], ehr.Observation{
			UUID:         uuid.New(),
			ConceptCode:  TermCodeCD4Count,
			ValueNumeric: floatPtr(float64(500 - i*10)),
			EffectiveAt:  base.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}

	builder := NewFormBuilder(gw)
	form, err := builder.Build(context.Background(), &CaseReport{ID: uuid.New(), PatientID: patientID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(form.MostRecentCd4Counts) != 3 {
		t.Fatalf("expected 3 CD4 entries, got %d", len(form.MostRecentCd4Counts))
	}
	for i := 1; i < len(form.MostRecentCd4Counts); i++ {
		prev, cur := form.MostRecentCd4Counts[i-1], form.MostRecentCd4Counts[i]
		if cur.When.After(*prev.When) {
			t.Errorf("entries out of order at %d: %s after %s", i, cur.Date, prev.Date)
		}
	}

	latest, err := form.MostRecentCd4Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Value != 500.0 {
		t.Errorf("most recent CD4 value = %v, want 500", latest.Value)
	}
}

func TestBuild_ArvMedications(t *testing.T) {
	gw := newMockGateway()
	patientID := uuid.New()
	gw.patients[patientID] = testPatient(patientID)
	gw.identifiers[patientID] = testIdentifier()

	tdf := ehr.Concept{UUID: uuid.New(), Code: "84795", Display: "TENOFOVIR"}
	efv := ehr.Concept{UUID: uuid.New(), Code: "75523", Display: "EFAVIRENZ"}
	aspirin := ehr.Concept{UUID: uuid.New(), Code: "71617", Display: "ASPIRIN"}
	gw.setMembers[TermCodeARVMedSet] = []ehr.Concept{tdf, efv}

	tdfDrug := uuid.New()
	activated := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	gw.drugOrders = []ehr.DrugOrder{
		{UUID: uuid.New(), DrugUUID: tdfDrug, DrugName: "Tenofovir 300mg", Concept: tdf, ActivatedAt: activated},
		// Duplicate order for the same drug, must be collapsed.
		{UUID: uuid.New(), DrugUUID: tdfDrug, DrugName: "Tenofovir 300mg", Concept: tdf, ActivatedAt: activated.Add(time.Hour)},
		// Same name as the concept display, no parenthetical.
		{UUID: uuid.New(), DrugUUID: uuid.New(), DrugName: "efavirenz", Concept: efv, ActivatedAt: activated},
		// Not an ARV, must be filtered out.
		{UUID: uuid.New(), DrugUUID: uuid.New(), DrugName: "Aspirin 75mg", Concept: aspirin, ActivatedAt: activated},
	}

	builder := NewFormBuilder(gw)
	form, err := builder.Build(context.Background(), &CaseReport{ID: uuid.New(), PatientID: patientID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(form.CurrentHivMedications) != 2 {
		t.Fatalf("expected 2 medications, got %d: %+v", len(form.CurrentHivMedications), form.CurrentHivMedications)
	}
	if form.CurrentHivMedications[0].Value != "TENOFOVIR (Tenofovir 300mg)" {
		t.Errorf("tenofovir display = %v", form.CurrentHivMedications[0].Value)
	}
	if form.CurrentHivMedications[1].Value != "EFAVIRENZ" {
		t.Errorf("efavirenz display = %v", form.CurrentHivMedications[1].Value)
	}
}

func TestBuild_SingletonsAndLastVisit(t *testing.T) {
	gw := newMockGateway()
	patientID := uuid.New()
	gw.patients[patientID] = testPatient(patientID)
	gw.identifiers[patientID] = testIdentifier()

	gw.observations[TermCodeWHOStage] = []ehr.Observation{
		{UUID: uuid.New(), ConceptCode: TermCodeWHOStage, Value: strPtr("WHO STAGE 2 ADULT"), EffectiveAt: time.Now()},
	}
	visitStart := time.Date(2024, 4, 2, 11, 30, 0, 0, time.UTC)
	gw.visits[patientID] = &ehr.Visit{UUID: uuid.New(), StartedAt: visitStart}

	builder := NewFormBuilder(gw)
	form, err := builder.Build(context.Background(), &CaseReport{ID: uuid.New(), PatientID: patientID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if form.CurrentHivWhoStage == nil || form.CurrentHivWhoStage.Value != "WHO STAGE 2 ADULT" {
		t.Errorf("who stage = %+v", form.CurrentHivWhoStage)
	}
	if form.MostRecentArvStopReason != nil {
		t.Errorf("expected no ARV stop reason, got %+v", form.MostRecentArvStopReason)
	}
	if form.LastVisitDate == nil || form.LastVisitDate.Value != visitStart.Format(DateFormat) {
		t.Errorf("last visit = %+v", form.LastVisitDate)
	}
}

func TestBuild_TriggersCarriedOntoForm(t *testing.T) {
	gw := newMockGateway()
	patientID := uuid.New()
	gw.patients[patientID] = testPatient(patientID)
	gw.identifiers[patientID] = testIdentifier()

	detected := time.Date(2024, 3, 20, 7, 0, 0, 0, time.UTC)
	report := &CaseReport{
		ID:        uuid.New(),
		PatientID: patientID,
		Triggers: []CaseReportTrigger{
			{ID: uuid.New(), Name: "New HIV Case", DetectedAt: detected},
		},
	}

	builder := NewFormBuilder(gw)
	form, err := builder.Build(context.Background(), report)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if form.TriggerByName("new hiv case") == nil {
		t.Error("trigger not carried onto the form")
	}
}
