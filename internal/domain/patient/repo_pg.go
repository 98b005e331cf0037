package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicore/medicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, mrn, first_name, last_name, date_of_birth, gender,
	phone, email, address, active, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	return &p, err
}

// uniqueErr maps a unique violation to the taken-field sentinel by
// constraint name. Both mrn and phone carry unique indexes.
func uniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "phone") {
		return ErrPhoneTaken
	}
	return ErrMRNTaken
}

func (r *RepoPG) Create(ctx context.Context, p *Patient) error {
	q := fmt.Sprintf(`INSERT INTO patients (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, patientCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		p.ID, p.MRN, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return uniqueErr(err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	q := fmt.Sprintf("SELECT %s FROM patients WHERE id = $1", patientCols)
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *RepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			first_name = $2, last_name = $3, date_of_birth = $4, gender = $5,
			phone = $6, email = $7, address = $8, updated_at = now()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address,
	)
	if err != nil {
		return uniqueErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["q"]; ok {
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR mrn ILIKE $%d OR phone ILIKE $%d)",
			idx, idx, idx, idx))
		args = append(args, "%"+v+"%")
		idx++
	}
	if v, ok := params["gender"]; ok {
		where = append(where, fmt.Sprintf("gender = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["active"]; ok {
		where = append(where, fmt.Sprintf("active = $%d", idx))
		args = append(args, v == "true")
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM patients %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM patients %s ORDER BY last_name, first_name
		LIMIT $%d OFFSET $%d`, patientCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(
			&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
			&p.Phone, &p.Email, &p.Address, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}
