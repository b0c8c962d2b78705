package casereport

import (
	"sort"
	"strings"
	"time"
)

// DateFormat is the display format used for every date carried on a report
// form.
const DateFormat = "2006-01-02 15:04:05"

// UuidAndValue pairs a clinical fact with the id of the record it came from.
type UuidAndValue struct {
	UUID  string      `json:"uuid"`
	Value interface{} `json:"value"`
}

// DatedUuidAndValue is a UuidAndValue observed at a point in time. When is
// the comparable instant; Date is its display form.
type DatedUuidAndValue struct {
	UuidAndValue
	Date string     `json:"date,omitempty"`
	When *time.Time `json:"when,omitempty"`
}

// NewDatedValue builds a DatedUuidAndValue with both the comparable instant
// and its display form set.
func NewDatedValue(uuid string, value interface{}, when time.Time) DatedUuidAndValue {
	return DatedUuidAndValue{
		UuidAndValue: UuidAndValue{UUID: uuid, Value: value},
		Date:         when.Format(DateFormat),
		When:         &when,
	}
}

// MostRecentOf returns the entry with the latest date, or nil for an empty
// list. Every entry must carry a date; an entry without one fails the whole
// selection with a DateComparisonError rather than being skipped.
func MostRecentOf(entries []DatedUuidAndValue) (*DatedUuidAndValue, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	for _, e := range entries {
		if e.When == nil {
			return nil, &DateComparisonError{UUID: e.UUID}
		}
	}
	sorted := make([]DatedUuidAndValue, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].When.After(*sorted[j].When)
	})
	return &sorted[0], nil
}

// CaseReportForm is the immutable point-in-time clinical snapshot attached to
// a case report. Building one never mutates the source record.
type CaseReportForm struct {
	ReportUUID string    `json:"-"`
	ReportDate time.Time `json:"-"`

	GivenName  string `json:"given_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Birthdate  string `json:"birthdate,omitempty"`
	Dead       bool   `json:"dead"`
	Deathdate  string `json:"deathdate,omitempty"`

	PatientIdentifier *UuidAndValue `json:"patient_identifier,omitempty"`
	IdentifierType    *UuidAndValue `json:"identifier_type,omitempty"`
	CauseOfDeath      *UuidAndValue `json:"cause_of_death,omitempty"`

	Triggers []DatedUuidAndValue `json:"triggers,omitempty"`

	MostRecentCd4Counts   []DatedUuidAndValue `json:"most_recent_cd4_counts,omitempty"`
	MostRecentHivTests    []DatedUuidAndValue `json:"most_recent_hiv_tests,omitempty"`
	MostRecentViralLoads  []DatedUuidAndValue `json:"most_recent_viral_loads,omitempty"`
	CurrentHivMedications []DatedUuidAndValue `json:"current_hiv_medications,omitempty"`

	CurrentHivWhoStage      *UuidAndValue `json:"current_hiv_who_stage,omitempty"`
	MostRecentArvStopReason *UuidAndValue `json:"most_recent_arv_stop_reason,omitempty"`
	LastVisitDate           *UuidAndValue `json:"last_visit_date,omitempty"`

	Submitter *UuidAndValue `json:"submitter,omitempty"`
	Comments  string        `json:"comments,omitempty"`
}

// TriggerByName returns the form's trigger entry whose value matches the
// given name case-insensitively, or nil.
func (f *CaseReportForm) TriggerByName(name string) *DatedUuidAndValue {
	for i := range f.Triggers {
		if v, ok := f.Triggers[i].Value.(string); ok && strings.EqualFold(v, name) {
			return &f.Triggers[i]
		}
	}
	return nil
}

// ContainsDiagnosticData reports whether the form carries enough clinical
// substance to be worth a human review.
func (f *CaseReportForm) ContainsDiagnosticData() bool {
	if f.CurrentHivWhoStage != nil || f.MostRecentArvStopReason != nil || f.LastVisitDate != nil {
		return true
	}
	return len(f.MostRecentViralLoads) > 0 || len(f.MostRecentCd4Counts) > 0 || len(f.MostRecentHivTests) > 0
}

// MostRecentCd4Count returns the latest CD4 count entry on the form.
func (f *CaseReportForm) MostRecentCd4Count() (*DatedUuidAndValue, error) {
	return MostRecentOf(f.MostRecentCd4Counts)
}

// MostRecentHivTest returns the latest HIV test entry on the form.
func (f *CaseReportForm) MostRecentHivTest() (*DatedUuidAndValue, error) {
	return MostRecentOf(f.MostRecentHivTests)
}

// MostRecentViralLoad returns the latest viral load entry on the form.
func (f *CaseReportForm) MostRecentViralLoad() (*DatedUuidAndValue, error) {
	return MostRecentOf(f.MostRecentViralLoads)
}
