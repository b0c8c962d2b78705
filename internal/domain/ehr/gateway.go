package ehr

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Gateway is the read-only window into the longitudinal clinical record.
// Implementations are responsible for concept-mapping resolution and for the
// ordering contract of MostRecentObservations: results come back
// most-recent-first, never longer than limit.
type Gateway interface {
	// GetPatient returns the patient's demographic record.
	GetPatient(ctx context.Context, patientID uuid.UUID) (*Patient, error)

	// ActiveIdentifier returns the patient's active identifier, or nil when
	// the patient has none.
	ActiveIdentifier(ctx context.Context, patientID uuid.UUID) (*Identifier, error)

	// MostRecentObservations returns up to limit observations for the concept
	// resolved by the given reference-term code, most recent first.
	MostRecentObservations(ctx context.Context, patientID uuid.UUID, conceptCode string, limit int) ([]Observation, error)

	// ActiveDrugOrders returns the drug orders active for the patient as of
	// the given instant.
	ActiveDrugOrders(ctx context.Context, patientID uuid.UUID, asOf time.Time) ([]DrugOrder, error)

	// ConceptSetMembers resolves a concept-set reference-term code to the
	// member concepts of that set.
	ConceptSetMembers(ctx context.Context, setCode string) ([]Concept, error)

	// LastVisit returns the patient's most recent visit by start time, or nil
	// when the patient has never visited.
	LastVisit(ctx context.Context, patientID uuid.UUID) (*Visit, error)
}
