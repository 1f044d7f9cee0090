package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/adaptest/internal/irt"
)

var itemColumns = []string{
	"id", "pool_id", "content", "type", "correct_answer",
	"difficulty", "discrimination", "guessing", "level", "topic", "subtopic",
	"usage_count", "correct_count", "avg_response_time", "exposure_rate", "information_value",
	"created_at", "updated_at",
}

type itemRepo struct {
	s *Store
}

func (r *itemRepo) Create(ctx context.Context, it *Item) error {
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now
	if it.Level == "" {
		it.Level = irt.LevelFor(it.Difficulty)
	}
	answer := it.CorrectAnswer
	if len(answer) == 0 {
		answer = []byte("null")
	}

	_, err := r.s.exec(ctx, builder().Insert("items").
		Columns(itemColumns...).
		Values(
			it.ID, it.PoolID, it.Content, string(it.Type), []byte(answer),
			it.Difficulty, it.Discrimination, it.Guessing, string(it.Level), it.Topic, it.Subtopic,
			it.UsageCount, it.CorrectCount, it.AvgResponseTime, it.ExposureRate, it.InformationValue,
			it.CreatedAt, it.UpdatedAt,
		))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create item %s: %w", it.ID, ErrConflict)
		}
		return fmt.Errorf("create item: %w", err)
	}

	res, err := r.s.exec(ctx, builder().Update("pools").
		Add("item_count", 1).
		Set("updated_at", now).
		Where(entsql.EQ("id", it.PoolID)))
	if err != nil {
		return fmt.Errorf("bump pool item count: %w", err)
	}
	if err := expectOne(res, "pool "+it.PoolID); err != nil {
		return err
	}

	r.s.invalidate(KindItem, it.ID)
	r.s.invalidate(KindPool, it.PoolID)
	return nil
}

func (r *itemRepo) Get(ctx context.Context, id string) (*Item, error) {
	rows, err := r.s.query(ctx, builder().Select(itemColumns...).
		From(entsql.Table("items")).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return &items[0], nil
}

func (r *itemRepo) ListByPool(ctx context.Context, poolID string, exclude []string) ([]Item, error) {
	pred := entsql.EQ("pool_id", poolID)
	if len(exclude) > 0 {
		args := make([]any, len(exclude))
		for i, id := range exclude {
			args[i] = id
		}
		pred = entsql.And(pred, entsql.NotIn("id", args...))
	}

	rows, err := r.s.query(ctx, builder().Select(itemColumns...).
		From(entsql.Table("items")).
		Where(pred).
		OrderBy("rowid"))
	if err != nil {
		return nil, fmt.Errorf("query pool items: %w", err)
	}
	return scanItems(rows)
}

func (r *itemRepo) UpdateParams(ctx context.Context, id string, p irt.Params) error {
	res, err := r.s.exec(ctx, builder().Update("items").
		Set("difficulty", p.B).
		Set("discrimination", p.A).
		Set("guessing", p.C).
		Set("level", string(irt.LevelFor(p.B))).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("update item params: %w", err)
	}
	if err := expectOne(res, "item "+id); err != nil {
		return err
	}
	r.s.invalidate(KindItem, id)
	return nil
}

func (r *itemRepo) RecordServed(ctx context.Context, id string, information float64) error {
	res, err := r.s.exec(ctx, builder().Update("items").
		Set("information_value", information).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("record served: %w", err)
	}
	if err := expectOne(res, "item "+id); err != nil {
		return err
	}
	r.s.invalidate(KindItem, id)
	return nil
}

func (r *itemRepo) RecordAnswer(ctx context.Context, id string, correct bool, responseTime float64, completedSessions int) error {
	hit := 0
	if correct {
		hit = 1
	}

	// SQLite evaluates every SET expression against the pre-update row, so
	// the running mean and exposure use the old usage_count.
	upd := builder().Update("items").
		Set("avg_response_time", entsql.Expr("(avg_response_time * usage_count + ?) / (usage_count + 1)", responseTime))
	if completedSessions > 0 {
		upd = upd.Set("exposure_rate", entsql.Expr("CAST(usage_count + 1 AS REAL) / ?", completedSessions))
	} else {
		upd = upd.Set("exposure_rate", 0.0)
	}
	res, err := r.s.exec(ctx, upd.
		Add("usage_count", 1).
		Add("correct_count", hit).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if err := expectOne(res, "item "+id); err != nil {
		return err
	}
	r.s.invalidate(KindItem, id)
	return nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var (
			it     Item
			typ    string
			level  string
			answer []byte
		)
		if err := rows.Scan(
			&it.ID, &it.PoolID, &it.Content, &typ, &answer,
			&it.Difficulty, &it.Discrimination, &it.Guessing, &level, &it.Topic, &it.Subtopic,
			&it.UsageCount, &it.CorrectCount, &it.AvgResponseTime, &it.ExposureRate, &it.InformationValue,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Type = ItemType(typ)
		it.Level = irt.Level(level)
		it.CorrectAnswer = answer
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// expectOne maps a zero-row write to ErrNotFound.
func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
