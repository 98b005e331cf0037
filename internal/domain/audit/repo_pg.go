package audit

import (
	"context"
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

const eventCols = `id, actor_id, action, resource, detail, ip, user_agent, request_id, created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.Detail,
		&e.IP, &e.UserAgent, &e.RequestID, &e.CreatedAt,
	)
	return &e, err
}

// Insert appends one event. The table has no update or delete paths;
// this is the only write.
func (r *RepoPG) Insert(ctx context.Context, e *Event) error {
	q := fmt.Sprintf(`INSERT INTO audit_events (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, eventCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		e.ID, e.ActorID, e.Action, e.Resource, e.Detail,
		e.IP, e.UserAgent, e.RequestID, e.CreatedAt,
	)
	return err
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Event, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["actor_id"]; ok {
		aid, err := uuid.Parse(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid actor_id filter: %w", err)
		}
		where = append(where, fmt.Sprintf("actor_id = $%d", idx))
		args = append(args, aid)
		idx++
	}
	if v, ok := params["action"]; ok {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, v)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_events %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM audit_events %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		eventCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, nil
}
