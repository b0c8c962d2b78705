package ehr

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

// A numeric-only observation stores NULL in value_text, and a coded one
// stores NULL in value_numeric. Both row shapes must scan into the struct
// the gateway populates.
func TestObservationScan_NullableValueColumns(t *testing.T) {
	m := pgtype.NewMap()
	var o Observation

	if err := m.Scan(pgtype.TextOID, pgtype.TextFormatCode, nil, &o.Value); err != nil {
		t.Fatalf("scan NULL value_text: %v", err)
	}
	if o.Value != nil {
		t.Errorf("value = %v, want nil", *o.Value)
	}
	if err := m.Scan(pgtype.Float8OID, pgtype.TextFormatCode, []byte("542"), &o.ValueNumeric); err != nil {
		t.Fatalf("scan value_numeric: %v", err)
	}
	if o.ValueNumeric == nil || *o.ValueNumeric != 542 {
		t.Errorf("value_numeric = %v, want 542", o.ValueNumeric)
	}

	o = Observation{}
	if err := m.Scan(pgtype.TextOID, pgtype.TextFormatCode, []byte("REACTIVE"), &o.Value); err != nil {
		t.Fatalf("scan value_text: %v", err)
	}
	if o.Value == nil || *o.Value != "REACTIVE" {
		t.Errorf("value = %v, want REACTIVE", o.Value)
	}
	if err := m.Scan(pgtype.Float8OID, pgtype.TextFormatCode, nil, &o.ValueNumeric); err != nil {
		t.Fatalf("scan NULL value_numeric: %v", err)
	}
	if o.ValueNumeric != nil {
		t.Errorf("value_numeric = %v, want nil", *o.ValueNumeric)
	}
}
