package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

const admissionCols = `id, patient_id, ward, bed, attending_id, diagnosis,
	status, admitted_at, discharged_at, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(
		&a.ID, &a.PatientID, &a.Ward, &a.Bed, &a.AttendingID, &a.Diagnosis,
		&a.Status, &a.AdmittedAt, &a.DischargedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return &a, err
}

// createErr maps constraint violations from the insert. The two
// partial unique indexes cover the live-bed and live-patient rules;
// foreign keys cover missing patient and attending rows.
func createErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		if strings.Contains(pgErr.ConstraintName, "patient") {
			return ErrPatientAdmitted
		}
		return ErrBedOccupied
	case "23503":
		if strings.Contains(pgErr.ConstraintName, "patient") {
			return ErrPatientMissing
		}
		return ErrAttendingMissing
	}
	return err
}

func (r *RepoPG) Create(ctx context.Context, a *Admission) error {
	q := fmt.Sprintf(`INSERT INTO admissions (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, admissionCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		a.ID, a.PatientID, a.Ward, a.Bed, a.AttendingID, a.Diagnosis,
		a.Status, a.AdmittedAt, a.DischargedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return createErr(err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	q := fmt.Sprintf("SELECT %s FROM admissions WHERE id = $1", admissionCols)
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *RepoPG) Discharge(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE admissions SET status = $2, discharged_at = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, StatusDischarged, at, StatusAdmitted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM admissions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyDischarged
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Admission, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["ward"]; ok {
		where = append(where, fmt.Sprintf("ward = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["patient_id"]; ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid patient_id filter: %w", err)
		}
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, id)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM admissions %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM admissions %s ORDER BY admitted_at DESC
		LIMIT $%d OFFSET $%d`, admissionCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Admission
	for rows.Next() {
		var a Admission
		if err := rows.Scan(
			&a.ID, &a.PatientID, &a.Ward, &a.Bed, &a.AttendingID, &a.Diagnosis,
			&a.Status, &a.AdmittedAt, &a.DischargedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, &a)
	}
	return out, total, rows.Err()
}
