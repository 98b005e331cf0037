package appointment

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

const appointmentCols = `id, appointment_no, patient_id, provider_id,
	starts_at, ends_at, status, reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.AppointmentNo, &a.PatientID, &a.ProviderID,
		&a.StartsAt, &a.EndsAt, &a.Status, &a.Reason, &a.CreatedAt, &a.UpdatedAt,
	)
	return &a, err
}

// createErr maps constraint violations from the insert. The overlap
// exclusion constraint raises 23P01; missing patient or provider rows
// raise 23503 with the foreign key's constraint name.
func createErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01":
		return ErrSlotTaken
	case "23503":
		if strings.Contains(pgErr.ConstraintName, "patient") {
			return ErrPatientMissing
		}
		return ErrProviderMissing
	}
	return err
}

func (r *RepoPG) Create(ctx context.Context, a *Appointment) error {
	q := fmt.Sprintf(`INSERT INTO appointments (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, appointmentCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		a.ID, a.AppointmentNo, a.PatientID, a.ProviderID,
		a.StartsAt, a.EndsAt, a.Status, a.Reason, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return createErr(err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", appointmentCols)
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *RepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStatusChanged
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["patient_id"]; ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid patient_id filter: %w", err)
		}
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, id)
		idx++
	}
	if v, ok := params["provider_id"]; ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid provider_id filter: %w", err)
		}
		where = append(where, fmt.Sprintf("provider_id = $%d", idx))
		args = append(args, id)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["date"]; ok {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid date filter: %w", err)
		}
		where = append(where, fmt.Sprintf("starts_at >= $%d AND starts_at < $%d", idx, idx+1))
		args = append(args, day, day.Add(24*time.Hour))
		idx += 2
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM appointments %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM appointments %s ORDER BY starts_at
		LIMIT $%d OFFSET $%d`, appointmentCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID, &a.AppointmentNo, &a.PatientID, &a.ProviderID,
			&a.StartsAt, &a.EndsAt, &a.Status, &a.Reason, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, &a)
	}
	return out, total, rows.Err()
}
