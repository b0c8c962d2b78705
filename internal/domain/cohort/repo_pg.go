package cohort

import (
	"context"

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

type definitionRepoPG struct{ pool *pgxpool.Pool }

func NewDefinitionRepoPG(pool *pgxpool.Pool) DefinitionRepository {
	return &definitionRepoPG{pool: pool}
}

func (r *definitionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const defCols = `id, name, description, query, retired, created_at, updated_at`

func (r *definitionRepoPG) scanRow(row pgx.Row) (*Definition, error) {
	var d Definition
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Query, &d.Retired, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *definitionRepoPG) Create(ctx context.Context, d *Definition) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO cohort_query (id, name, description, query, retired)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.Name, d.Description, d.Query, d.Retired)
	return err
}

func (r *definitionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+defCols+` FROM cohort_query WHERE id = $1`, id))
}

func (r *definitionRepoPG) FindByName(ctx context.Context, name string) ([]*Definition, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+defCols+` FROM cohort_query WHERE LOWER(name) = LOWER($1) AND NOT retired`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Definition
	for rows.Next() {
		d, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *definitionRepoPG) List(ctx context.Context, includeRetired bool, limit, offset int) ([]*Definition, int, error) {
	where := ``
	if !includeRetired {
		where = ` WHERE NOT retired`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM cohort_query`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+defCols+` FROM cohort_query`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Definition
	for rows.Next() {
		d, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *definitionRepoPG) Update(ctx context.Context, d *Definition) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE cohort_query SET name=$2, description=$3, query=$4, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Description, d.Query)
	return err
}

func (r *definitionRepoPG) SetRetired(ctx context.Context, id uuid.UUID, retired bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE cohort_query SET retired=$2, updated_at=NOW() WHERE id = $1`, id, retired)
	return err
}

func (r *definitionRepoPG) Evaluate(ctx context.Context, query string) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
