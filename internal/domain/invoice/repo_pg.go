package invoice

import (
	"context"
	"encoding/json"
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

const invoiceCols = `id, invoice_no, patient_id, items, total_cents,
	status, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var items []byte
	err := row.Scan(
		&inv.ID, &inv.InvoiceNo, &inv.PatientID, &items, &inv.TotalCents,
		&inv.Status, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	return &inv, nil
}

func (r *RepoPG) Create(ctx context.Context, inv *Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encode invoice items: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO invoices (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, invoiceCols)
	_, err = r.conn(ctx).Exec(ctx, q,
		inv.ID, inv.InvoiceNo, inv.PatientID, items, inv.TotalCents,
		inv.Status, inv.PaidAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrPatientMissing
		}
		return err
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	q := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", invoiceCols)
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

func (r *RepoPG) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET status = $2, paid_at = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, StatusPaid, at, StatusPending)
	if err != nil {
		return err
	}
	return r.settled(ctx, id, tag)
}

func (r *RepoPG) Void(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3`,
		id, StatusCancelled, StatusPending)
	if err != nil {
		return err
	}
	return r.settled(ctx, id, tag)
}

// settled disambiguates a zero-row conditional update: the invoice is
// either missing or no longer pending.
func (r *RepoPG) settled(ctx context.Context, id uuid.UUID, tag pgconn.CommandTag) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotPending
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
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
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, v)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM invoices %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, invoiceCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		var inv Invoice
		var items []byte
		if err := rows.Scan(
			&inv.ID, &inv.InvoiceNo, &inv.PatientID, &items, &inv.TotalCents,
			&inv.Status, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(items, &inv.Items); err != nil {
			return nil, 0, fmt.Errorf("decode invoice items: %w", err)
		}
		out = append(out, &inv)
	}
	return out, total, rows.Err()
}
