package ehr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/casereport/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type gatewayPG struct{ pool *pgxpool.Pool }

// NewGatewayPG returns a Gateway backed by the clinical record tables.
func NewGatewayPG(pool *pgxpool.Pool) Gateway {
	return &gatewayPG{pool: pool}
}

func (g *gatewayPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return g.pool
}

func (g *gatewayPG) GetPatient(ctx context.Context, patientID uuid.UUID) (*Patient, error) {
	var p Patient
	var causeID *uuid.UUID
	err := g.conn(ctx).QueryRow(ctx, `
		SELECT id, given_name, middle_name, family_name, gender,
			birthdate, dead, death_date, cause_of_death_concept_id
		FROM patient WHERE id = $1`, patientID).
		Scan(&p.ID, &p.GivenName, &p.MiddleName, &p.FamilyName, &p.Gender,
			&p.BirthDate, &p.Dead, &p.DeathDate, &causeID)
	if err != nil {
		return nil, err
	}
	if causeID != nil {
		var c Concept
		err = g.conn(ctx).QueryRow(ctx,
			`SELECT id, code, display FROM concept WHERE id = $1`, *causeID).
			Scan(&c.UUID, &c.Code, &c.Display)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			p.CauseOfDeath = &c
		}
	}
	return &p, nil
}

func (g *gatewayPG) ActiveIdentifier(ctx context.Context, patientID uuid.UUID) (*Identifier, error) {
	var id Identifier
	err := g.conn(ctx).QueryRow(ctx, `
		SELECT pi.id, pi.identifier, it.id, it.name
		FROM patient_identifier pi
		JOIN identifier_type it ON it.id = pi.type_id
		WHERE pi.patient_id = $1 AND pi.active
		ORDER BY pi.preferred DESC, pi.created_at
		LIMIT 1`, patientID).
		Scan(&id.UUID, &id.Value, &id.TypeUUID, &id.TypeName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (g *gatewayPG) MostRecentObservations(ctx context.Context, patientID uuid.UUID, conceptCode string, limit int) ([]Observation, error) {
	rows, err := g.conn(ctx).Query(ctx, `
		SELECT o.id, c.code, o.value_text, o.value_numeric, o.effective_at
		FROM obs o
		JOIN concept c ON c.id = o.concept_id
		WHERE o.patient_id = $1 AND c.code = $2
		ORDER BY o.effective_at DESC
		LIMIT $3`, patientID, conceptCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.UUID, &o.ConceptCode, &o.Value, &o.ValueNumeric, &o.EffectiveAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (g *gatewayPG) ActiveDrugOrders(ctx context.Context, patientID uuid.UUID, asOf time.Time) ([]DrugOrder, error) {
	rows, err := g.conn(ctx).Query(ctx, `
		SELECT d.id, d.drug_id, d.drug_name, c.id, c.code, c.display, d.activated_at
		FROM drug_order d
		JOIN concept c ON c.id = d.concept_id
		WHERE d.patient_id = $1
			AND d.activated_at <= $2
			AND (d.stopped_at IS NULL OR d.stopped_at > $2)
		ORDER BY d.activated_at`, patientID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DrugOrder
	for rows.Next() {
		var o DrugOrder
		if err := rows.Scan(&o.UUID, &o.DrugUUID, &o.DrugName,
			&o.Concept.UUID, &o.Concept.Code, &o.Concept.Display, &o.ActivatedAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (g *gatewayPG) ConceptSetMembers(ctx context.Context, setCode string) ([]Concept, error) {
	rows, err := g.conn(ctx).Query(ctx, `
		SELECT m.id, m.code, m.display
		FROM concept_set_member sm
		JOIN concept s ON s.id = sm.set_concept_id
		JOIN concept m ON m.id = sm.member_concept_id
		WHERE s.code = $1`, setCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Concept
	for rows.Next() {
		var c Concept
		if err := rows.Scan(&c.UUID, &c.Code, &c.Display); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no concept set found for code %s", setCode)
	}
	return items, nil
}

func (g *gatewayPG) LastVisit(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	var v Visit
	err := g.conn(ctx).QueryRow(ctx, `
		SELECT id, started_at FROM visit
		WHERE patient_id = $1
		ORDER BY started_at DESC
		LIMIT 1`, patientID).Scan(&v.UUID, &v.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
