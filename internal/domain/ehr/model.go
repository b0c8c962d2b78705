package ehr

import (
	"time"

	"github.com/google/uuid"
)

// Concept is a clinical dictionary entry resolved through a reference-term
// code (CIEL/HL7 mapping).
type Concept struct {
	UUID    uuid.UUID `db:"id" json:"uuid"`
	Code    string    `db:"code" json:"code"`
	Display string    `db:"display" json:"display"`
}

// Patient maps to the patient table.
type Patient struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	GivenName    *string    `db:"given_name" json:"given_name,omitempty"`
	MiddleName   *string    `db:"middle_name" json:"middle_name,omitempty"`
	FamilyName   *string    `db:"family_name" json:"family_name,omitempty"`
	Gender       *string    `db:"gender" json:"gender,omitempty"`
	BirthDate    *time.Time `db:"birthdate" json:"birthdate,omitempty"`
	Dead         bool       `db:"dead" json:"dead"`
	DeathDate    *time.Time `db:"death_date" json:"death_date,omitempty"`
	CauseOfDeath *Concept   `db:"-" json:"cause_of_death,omitempty"`
}

// FullName joins the non-empty name parts with single spaces.
func (p *Patient) FullName() string {
	full := ""
	for _, part := range []*string{p.GivenName, p.MiddleName, p.FamilyName} {
		if part == nil || *part == "" {
			continue
		}
		if full != "" {
			full += " "
		}
		full += *part
	}
	return full
}

// Identifier is an active patient identifier together with its type.
type Identifier struct {
	UUID     uuid.UUID `db:"id" json:"uuid"`
	Value    string    `db:"identifier" json:"value"`
	TypeUUID uuid.UUID `db:"type_id" json:"type_uuid"`
	TypeName string    `db:"type_name" json:"type_name"`
}

// Observation is a single coded clinical measurement. Exactly one of Value
// and ValueNumeric is typically set; a numeric-only result stores NULL in
// value_text.
type Observation struct {
	UUID         uuid.UUID `db:"id" json:"uuid"`
	ConceptCode  string    `db:"concept_code" json:"concept_code"`
	Value        *string   `db:"value_text" json:"value,omitempty"`
	ValueNumeric *float64  `db:"value_numeric" json:"value_numeric,omitempty"`
	EffectiveAt  time.Time `db:"effective_at" json:"effective_at"`
}

// DrugOrder is an active medication order for a patient.
type DrugOrder struct {
	UUID        uuid.UUID `db:"id" json:"uuid"`
	DrugUUID    uuid.UUID `db:"drug_id" json:"drug_uuid"`
	DrugName    string    `db:"drug_name" json:"drug_name"`
	Concept     Concept   `db:"-" json:"concept"`
	ActivatedAt time.Time `db:"activated_at" json:"activated_at"`
}

// Visit is a patient visit; only the start time matters to consumers.
type Visit struct {
	UUID      uuid.UUID `db:"id" json:"uuid"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
}
