package account

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

const accountCols = `id, email, full_name, role, password_hash, active,
	two_factor_enabled, two_factor_secret, failed_login_count, locked_until,
	last_login_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Email, &a.FullName, &a.Role, &a.PasswordHash, &a.Active,
		&a.TwoFactorEnabled, &a.TwoFactorSecret, &a.FailedLoginCount, &a.LockedUntil,
		&a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return &a, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *RepoPG) Create(ctx context.Context, a *Account) error {
	q := fmt.Sprintf(`INSERT INTO accounts (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, accountCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		a.ID, a.Email, a.FullName, a.Role, a.PasswordHash, a.Active,
		a.TwoFactorEnabled, a.TwoFactorSecret, a.FailedLoginCount, a.LockedUntil,
		a.LastLoginAt, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	q := fmt.Sprintf("SELECT %s FROM accounts WHERE id = $1", accountCols)
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *RepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	q := fmt.Sprintf("SELECT %s FROM accounts WHERE email = $1", accountCols)
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *RepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Account, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["role"]; ok {
		where = append(where, fmt.Sprintf("role = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["active"]; ok {
		where = append(where, fmt.Sprintf("active = $%d", idx))
		args = append(args, v == "true")
		idx++
	}
	if v, ok := params["q"]; ok {
		where = append(where, fmt.Sprintf("(email ILIKE $%d OR full_name ILIKE $%d)", idx, idx))
		args = append(args, "%"+v+"%")
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM accounts %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM accounts %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		accountCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *RepoPG) update(ctx context.Context, q string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementFailed relies on the database to serialize concurrent
// increments; the returned count is the row value after this update.
func (r *RepoPG) IncrementFailed(ctx context.Context, id uuid.UUID) (int, error) {
	q := `UPDATE accounts
		SET failed_login_count = failed_login_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_count`
	var count int
	err := r.conn(ctx).QueryRow(ctx, q, id).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return count, err
}

func (r *RepoPG) SetLock(ctx context.Context, id uuid.UUID, until time.Time) error {
	q := `UPDATE accounts SET locked_until = $2, updated_at = now() WHERE id = $1`
	return r.update(ctx, q, id, until)
}

func (r *RepoPG) ClearLock(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE accounts
		SET failed_login_count = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1`
	return r.update(ctx, q, id)
}

func (r *RepoPG) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := `UPDATE accounts
		SET failed_login_count = 0, locked_until = NULL, last_login_at = $2, updated_at = now()
		WHERE id = $1`
	return r.update(ctx, q, id, at)
}

func (r *RepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	q := `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.update(ctx, q, id, hash)
}

func (r *RepoPG) SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	q := `UPDATE accounts SET two_factor_secret = $2, updated_at = now() WHERE id = $1`
	return r.update(ctx, q, id, secret)
}

func (r *RepoPG) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE accounts SET two_factor_enabled = TRUE, updated_at = now() WHERE id = $1`
	return r.update(ctx, q, id)
}

func (r *RepoPG) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE accounts
		SET two_factor_enabled = FALSE, two_factor_secret = NULL, updated_at = now()
		WHERE id = $1`
	return r.update(ctx, q, id)
}

func (r *RepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE accounts SET active = FALSE, updated_at = now() WHERE id = $1`
	return r.update(ctx, q, id)
}
