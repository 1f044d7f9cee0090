package session

import (
	"time"

	"github.com/abhisek/adaptest/internal/store"
)

// StopReason records why a session ended.
type StopReason string

const (
	ReasonMaxQuestions  StopReason = "max_questions"
	ReasonMaxTime       StopReason = "max_time"
	ReasonPrecision     StopReason = "precision"
	ReasonPoolExhausted StopReason = "pool_exhausted"
	ReasonAbandoned     StopReason = "abandoned"
	ReasonManual        StopReason = "manual"
)

// shouldStop evaluates the stop criteria in priority order: question limit,
// time limit, then precision once enough questions are answered.
func shouldStop(cfg Config, s *store.Session, now time.Time) (StopReason, bool) {
	if s.Answered >= cfg.MaxQuestions {
		return ReasonMaxQuestions, true
	}
	if cfg.MaxTime > 0 && now.Sub(s.StartedAt) >= cfg.MaxTime {
		return ReasonMaxTime, true
	}
	if s.Answered >= cfg.MinQuestions && s.StandardError <= cfg.SEThreshold {
		return ReasonPrecision, true
	}
	return "", false
}
