package casereport

import (
	"context"
	"errors"

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

type caseReportRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &caseReportRepoPG{pool: pool}
}

func (r *caseReportRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const crCols = `id, patient_id, status, voided, void_reason, form, created_at, updated_at`

// openReportIndex is the partial unique index backing the one-open-report
// invariant; its violation maps to ErrDuplicateOpenReport.
const openReportIndex = "ux_case_report_open_patient"

func (r *caseReportRepoPG) scanRow(row pgx.Row) (*CaseReport, error) {
	var cr CaseReport
	err := row.Scan(&cr.ID, &cr.PatientID, &cr.Status, &cr.Voided, &cr.VoidReason,
		&cr.Form, &cr.CreatedAt, &cr.UpdatedAt)
	return &cr, err
}

func (r *caseReportRepoPG) Create(ctx context.Context, cr *CaseReport) error {
	cr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO case_report (id, patient_id, status, voided, void_reason, form)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		cr.ID, cr.PatientID, cr.Status, cr.Voided, cr.VoidReason, cr.Form)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == openReportIndex {
			return ErrDuplicateOpenReport
		}
		return err
	}
	for i := range cr.Triggers {
		cr.Triggers[i].ReportID = cr.ID
		if err := r.AddTrigger(ctx, &cr.Triggers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *caseReportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CaseReport, error) {
	cr, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+crCols+` FROM case_report WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadTriggers(ctx, cr); err != nil {
		return nil, err
	}
	return cr, nil
}

func (r *caseReportRepoPG) GetOpenByPatient(ctx context.Context, patientID uuid.UUID) (*CaseReport, error) {
	query := `SELECT ` + crCols + ` FROM case_report
		WHERE patient_id = $1 AND NOT voided AND status IN ('NEW','DRAFT')`
	if db.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	cr, err := r.scanRow(r.conn(ctx).QueryRow(ctx, query, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadTriggers(ctx, cr); err != nil {
		return nil, err
	}
	return cr, nil
}

func (r *caseReportRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*CaseReport, int, error) {
	where := ` WHERE 1=1`
	if !f.IncludeVoided {
		where += ` AND NOT voided`
	}
	if !f.IncludeSubmitted {
		where += ` AND status <> 'SUBMITTED'`
	}
	if !f.IncludeDismissed {
		where += ` AND status <> 'DISMISSED'`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM case_report`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+crCols+` FROM case_report`+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CaseReport
	for rows.Next() {
		cr, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, cr := range items {
		if err := r.loadTriggers(ctx, cr); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *caseReportRepoPG) Update(ctx context.Context, cr *CaseReport) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE case_report SET status=$2, voided=$3, void_reason=$4, form=$5, updated_at=NOW()
		WHERE id = $1`,
		cr.ID, cr.Status, cr.Voided, cr.VoidReason, cr.Form)
	return err
}

func (r *caseReportRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE case_report SET status=$3, updated_at=NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *caseReportRepoPG) SetVoided(ctx context.Context, id uuid.UUID, voided bool, reason *string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE case_report SET voided=$2, void_reason=$3, updated_at=NOW()
		WHERE id = $1`,
		id, voided, reason)
	return err
}

// AddTrigger inserts the trigger row. A name already attached to the report,
// possibly by a concurrent run of the same trigger, is absorbed as a no-op.
func (r *caseReportRepoPG) AddTrigger(ctx context.Context, t *CaseReportTrigger) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO case_report_trigger (id, case_report_id, name, detected_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (case_report_id, LOWER(name)) DO NOTHING`,
		t.ID, t.ReportID, t.Name, t.DetectedAt)
	return err
}

func (r *caseReportRepoPG) loadTriggers(ctx context.Context, cr *CaseReport) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_report_id, name, detected_at
		FROM case_report_trigger
		WHERE case_report_id = $1
		ORDER BY detected_at, name`, cr.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	cr.Triggers = nil
	for rows.Next() {
		var t CaseReportTrigger
		if err := rows.Scan(&t.ID, &t.ReportID, &t.Name, &t.DetectedAt); err != nil {
			return err
		}
		cr.Triggers = append(cr.Triggers, t)
	}
	return rows.Err()
}
