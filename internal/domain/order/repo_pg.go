package order

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

const orderCols = `id, order_no, patient_id, ordered_by, order_type,
	detail, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNo, &o.PatientID, &o.OrderedBy, &o.OrderType,
		&o.Detail, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	return &o, err
}

func (r *RepoPG) Create(ctx context.Context, o *Order) error {
	q := fmt.Sprintf(`INSERT INTO orders (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, orderCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		o.ID, o.OrderNo, o.PatientID, o.OrderedBy, o.OrderType,
		o.Detail, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" &&
		strings.Contains(pgErr.ConstraintName, "patient") {
		return ErrPatientMissing
	}
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	q := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1", orderCols)
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (r *RepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStatusChanged
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Order, int, error) {
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
	if v, ok := params["type"]; ok {
		where = append(where, fmt.Sprintf("order_type = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, v)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM orders %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, orderCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.OrderNo, &o.PatientID, &o.OrderedBy, &o.OrderType,
			&o.Detail, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, &o)
	}
	return out, total, rows.Err()
}
