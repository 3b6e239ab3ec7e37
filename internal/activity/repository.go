package activity

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores e. Redelivered events with a known id are ignored.
func (r *Repository) Insert(ctx context.Context, e domain.ActivityEvent) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO activity.events (id, kind, user_id, role, item_count, total, subject, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, string(e.Kind), e.UserID, string(e.Role), e.ItemCount, e.Total.String(), e.Subject, e.OccurredAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type Filter struct {
	Kinds  []string
	UserID string
	Since  time.Time
	Limit  int
}

const maxLimit = 500

func (r *Repository) List(ctx context.Context, f Filter) ([]domain.ActivityEvent, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	var kinds any
	if len(f.Kinds) > 0 {
		kinds = pq.Array(f.Kinds)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, user_id, role, item_count, total, subject, occurred_at
		FROM activity.events
		WHERE ($1::text[] IS NULL OR kind = ANY($1))
		  AND ($2 = '' OR user_id = $2)
		  AND occurred_at >= $3
		ORDER BY occurred_at DESC
		LIMIT $4
	`, kinds, f.UserID, f.Since, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	events := []domain.ActivityEvent{}
	for rows.Next() {
		var e domain.ActivityEvent
		var kind, role, total string
		if err := rows.Scan(&e.ID, &kind, &e.UserID, &role, &e.ItemCount, &total, &e.Subject, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Kind = domain.ActivityKind(kind)
		e.Role = domain.Role(role)
		if e.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByKind returns how many events of each kind were recorded since t.
func (r *Repository) CountByKind(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM activity.events
		WHERE occurred_at >= $1
		GROUP BY kind
	`, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
