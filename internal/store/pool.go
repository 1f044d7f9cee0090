package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var poolColumns = []string{
	"id", "name", "org_id", "description", "item_count", "completed_sessions", "active", "created_at", "updated_at",
}

type poolRepo struct {
	s *Store
}

func (r *poolRepo) Create(ctx context.Context, p *Pool) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.s.exec(ctx, builder().Insert("pools").
		Columns(poolColumns...).
		Values(p.ID, p.Name, p.OrgID, p.Description, p.ItemCount, p.CompletedSessions, p.Active, p.CreatedAt, p.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create pool %s: %w", p.ID, ErrConflict)
		}
		return fmt.Errorf("create pool: %w", err)
	}
	r.s.invalidate(KindPool, p.ID)
	return nil
}

func (r *poolRepo) Get(ctx context.Context, id string) (*Pool, error) {
	rows, err := r.s.query(ctx, builder().Select(poolColumns...).
		From(entsql.Table("pools")).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("query pool: %w", err)
	}
	pools, err := scanPools(rows)
	if err != nil {
		return nil, err
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("pool %s: %w", id, ErrNotFound)
	}
	return &pools[0], nil
}

func (r *poolRepo) List(ctx context.Context, orgID string) ([]Pool, error) {
	sel := builder().Select(poolColumns...).From(entsql.Table("pools"))
	if orgID != "" {
		sel = sel.Where(entsql.EQ("org_id", orgID))
	}
	rows, err := r.s.query(ctx, sel.OrderBy("name", "id"))
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	return scanPools(rows)
}

func (r *poolRepo) Update(ctx context.Context, p *Pool) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.s.exec(ctx, builder().Update("pools").
		Set("name", p.Name).
		Set("description", p.Description).
		Set("active", p.Active).
		Set("updated_at", p.UpdatedAt).
		Where(entsql.EQ("id", p.ID)))
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if err := expectOne(res, "pool "+p.ID); err != nil {
		return err
	}
	r.s.invalidate(KindPool, p.ID)
	return nil
}

func (r *poolRepo) IncrementCompleted(ctx context.Context, id string) error {
	res, err := r.s.exec(ctx, builder().Update("pools").
		Add("completed_sessions", 1).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("increment completed sessions: %w", err)
	}
	if err := expectOne(res, "pool "+id); err != nil {
		return err
	}
	r.s.invalidate(KindPool, id)
	return nil
}

func scanPools(rows *sql.Rows) ([]Pool, error) {
	defer rows.Close()
	var out []Pool
	for rows.Next() {
		var p Pool
		if err := rows.Scan(&p.ID, &p.Name, &p.OrgID, &p.Description, &p.ItemCount,
			&p.CompletedSessions, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return out, nil
}
