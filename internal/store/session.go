package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var sessionColumns = []string{
	"id", "taker_id", "pool_id", "test_id", "config",
	"ability", "standard_error", "answered", "asked_items", "topic_coverage", "history",
	"status", "stop_reason", "started_at", "ended_at",
	"final_ability", "final_se", "ci_lower", "ci_upper", "version",
}

type sessionRepo struct {
	s *Store
}

// sessionJSON holds the JSON-encoded columns of a session.
type sessionJSON struct {
	config, asked, coverage, history []byte
}

func encodeSession(s *Session) (sessionJSON, error) {
	var (
		out sessionJSON
		err error
	)
	if out.config, err = json.Marshal(s.Config); err != nil {
		return out, fmt.Errorf("marshal config: %w", err)
	}
	asked := s.AskedItems
	if asked == nil {
		asked = []string{}
	}
	if out.asked, err = json.Marshal(asked); err != nil {
		return out, fmt.Errorf("marshal asked items: %w", err)
	}
	coverage := s.TopicCoverage
	if coverage == nil {
		coverage = map[string]int{}
	}
	if out.coverage, err = json.Marshal(coverage); err != nil {
		return out, fmt.Errorf("marshal topic coverage: %w", err)
	}
	history := s.History
	if history == nil {
		history = []float64{}
	}
	if out.history, err = json.Marshal(history); err != nil {
		return out, fmt.Errorf("marshal history: %w", err)
	}
	return out, nil
}

func (r *sessionRepo) Create(ctx context.Context, s *Session) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	enc, err := encodeSession(s)
	if err != nil {
		return err
	}

	_, err = r.s.exec(ctx, builder().Insert("sessions").
		Columns(sessionColumns...).
		Values(
			s.ID, s.TakerID, s.PoolID, s.TestID, enc.config,
			s.Ability, s.StandardError, s.Answered, enc.asked, enc.coverage, enc.history,
			string(s.Status), s.StopReason, s.StartedAt, nullTime(s.EndedAt),
			nullFloat(s.FinalAbility), nullFloat(s.FinalSE), nullFloat(s.CILower), nullFloat(s.CIUpper), s.Version,
		))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create session for pool %s taker %s: %w", s.PoolID, s.TakerID, ErrConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	r.s.invalidate(KindSession, s.ID)
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	return r.first(ctx, entsql.EQ("id", id), "session "+id)
}

func (r *sessionRepo) GetActive(ctx context.Context, poolID, takerID string) (*Session, error) {
	return r.first(ctx, entsql.And(
		entsql.EQ("pool_id", poolID),
		entsql.EQ("taker_id", takerID),
		entsql.EQ("status", string(StatusInProgress)),
	), fmt.Sprintf("active session for pool %s taker %s", poolID, takerID))
}

func (r *sessionRepo) first(ctx context.Context, pred *entsql.Predicate, what string) (*Session, error) {
	rows, err := r.s.query(ctx, builder().Select(sessionColumns...).
		From(entsql.Table("sessions")).
		Where(pred).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return &sessions[0], nil
}

func (r *sessionRepo) Update(ctx context.Context, s *Session) error {
	enc, err := encodeSession(s)
	if err != nil {
		return err
	}

	res, err := r.s.exec(ctx, builder().Update("sessions").
		Set("ability", s.Ability).
		Set("standard_error", s.StandardError).
		Set("answered", s.Answered).
		Set("asked_items", enc.asked).
		Set("topic_coverage", enc.coverage).
		Set("history", enc.history).
		Set("status", string(s.Status)).
		Set("stop_reason", s.StopReason).
		Set("ended_at", nullTime(s.EndedAt)).
		Set("final_ability", nullFloat(s.FinalAbility)).
		Set("final_se", nullFloat(s.FinalSE)).
		Set("ci_lower", nullFloat(s.CILower)).
		Set("ci_upper", nullFloat(s.CIUpper)).
		Add("version", 1).
		Where(entsql.And(entsql.EQ("id", s.ID), entsql.EQ("version", s.Version))))
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := r.Get(ctx, s.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("session %s version %d is stale: %w", s.ID, s.Version, ErrConflict)
	}
	s.Version++
	r.s.invalidate(KindSession, s.ID)
	return nil
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var (
			s                                    Session
			status                               string
			config, asked, coverage, history     []byte
			endedAt                              sql.NullTime
			finalAbility, finalSE, ciLow, ciHigh sql.NullFloat64
		)
		if err := rows.Scan(
			&s.ID, &s.TakerID, &s.PoolID, &s.TestID, &config,
			&s.Ability, &s.StandardError, &s.Answered, &asked, &coverage, &history,
			&status, &s.StopReason, &s.StartedAt, &endedAt,
			&finalAbility, &finalSE, &ciLow, &ciHigh, &s.Version,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Status = SessionStatus(status)
		if err := json.Unmarshal(config, &s.Config); err != nil {
			return nil, fmt.Errorf("decode session config: %w", err)
		}
		if err := json.Unmarshal(asked, &s.AskedItems); err != nil {
			return nil, fmt.Errorf("decode asked items: %w", err)
		}
		if err := json.Unmarshal(coverage, &s.TopicCoverage); err != nil {
			return nil, fmt.Errorf("decode topic coverage: %w", err)
		}
		if err := json.Unmarshal(history, &s.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			s.EndedAt = &t
		}
		s.FinalAbility = floatPtr(finalAbility)
		s.FinalSE = floatPtr(finalSE)
		s.CILower = floatPtr(ciLow)
		s.CIUpper = floatPtr(ciHigh)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
