package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var responseColumns = []string{
	"id", "session_id", "item_id", "question_number", "answer", "correct", "response_time",
	"ability_before", "ability_after", "se_after",
	"difficulty", "discrimination", "guessing", "topic", "answered_at",
}

type responseRepo struct {
	s *Store
}

func (r *responseRepo) Append(ctx context.Context, resp *Response) error {
	if resp.AnsweredAt.IsZero() {
		resp.AnsweredAt = time.Now().UTC()
	}
	answer := resp.Answer
	if len(answer) == 0 {
		answer = []byte("null")
	}

	_, err := r.s.exec(ctx, builder().Insert("responses").
		Columns(responseColumns...).
		Values(
			resp.ID, resp.SessionID, resp.ItemID, resp.QuestionNumber, []byte(answer), resp.Correct, resp.ResponseTime,
			resp.AbilityBefore, resp.AbilityAfter, resp.SEAfter,
			resp.Difficulty, resp.Discrimination, resp.Guessing, resp.Topic, resp.AnsweredAt,
		))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append response %d to session %s: %w", resp.QuestionNumber, resp.SessionID, ErrConflict)
		}
		return fmt.Errorf("append response: %w", err)
	}
	return nil
}

func (r *responseRepo) ListBySession(ctx context.Context, sessionID string) ([]Response, error) {
	rows, err := r.s.query(ctx, builder().Select(responseColumns...).
		From(entsql.Table("responses")).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("question_number"))
	if err != nil {
		return nil, fmt.Errorf("query session responses: %w", err)
	}
	return scanResponses(rows)
}

func (r *responseRepo) ListByItem(ctx context.Context, itemID string) ([]Response, error) {
	rows, err := r.s.query(ctx, builder().Select(responseColumns...).
		From(entsql.Table("responses")).
		Where(entsql.EQ("item_id", itemID)).
		OrderBy("answered_at", "rowid"))
	if err != nil {
		return nil, fmt.Errorf("query item responses: %w", err)
	}
	return scanResponses(rows)
}

func scanResponses(rows *sql.Rows) ([]Response, error) {
	defer rows.Close()
	var out []Response
	for rows.Next() {
		var (
			resp   Response
			answer []byte
		)
		if err := rows.Scan(
			&resp.ID, &resp.SessionID, &resp.ItemID, &resp.QuestionNumber, &answer, &resp.Correct, &resp.ResponseTime,
			&resp.AbilityBefore, &resp.AbilityAfter, &resp.SEAfter,
			&resp.Difficulty, &resp.Discrimination, &resp.Guessing, &resp.Topic, &resp.AnsweredAt,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		resp.Answer = answer
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}
