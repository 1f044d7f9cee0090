package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type reportRepo struct {
	s *Store
}

func (r *reportRepo) Get(ctx context.Context, sessionID string) (*Report, error) {
	rows, err := r.s.query(ctx, builder().Select("data").
		From(entsql.Table("reports")).
		Where(entsql.EQ("session_id", sessionID)))
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	reports, err := scanReports(rows)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("report for session %s: %w", sessionID, ErrNotFound)
	}
	return &reports[0], nil
}

func (r *reportRepo) Insert(ctx context.Context, rep *Report) (*Report, error) {
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	res, err := r.s.exec(ctx, builder().Insert("reports").
		Columns("session_id", "final_ability", "percentile", "level", "data", "created_at").
		Values(rep.SessionID, rep.FinalAbility, rep.Percentile, rep.Level, data, rep.CreatedAt).
		OnConflict(entsql.ConflictColumns("session_id"), entsql.DoNothing()))
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.s.invalidate(KindReport, rep.SessionID)
	}
	return r.Get(ctx, rep.SessionID)
}

func scanReports(rows *sql.Rows) ([]Report, error) {
	defer rows.Close()
	var out []Report
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var rep Report
		if err := json.Unmarshal(data, &rep); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}
