package session

import (
	"testing"
	"time"

	"github.com/abhisek/adaptest/internal/store"
)

func TestShouldStop(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MaxQuestions = 10
	cfg.MaxTime = 10 * time.Minute

	tests := []struct {
		name     string
		answered int
		se       float64
		elapsed  time.Duration
		want     StopReason
		stop     bool
	}{
		{"fresh", 0, 1, 0, "", false},
		{"question limit", 10, 1, 0, ReasonMaxQuestions, true},
		{"question limit beats time and precision", 10, 0.1, time.Hour, ReasonMaxQuestions, true},
		{"time limit", 3, 1, 10 * time.Minute, ReasonMaxTime, true},
		{"time limit beats precision", 6, 0.1, 11 * time.Minute, ReasonMaxTime, true},
		{"precision", 5, 0.3, time.Minute, ReasonPrecision, true},
		{"precision needs minimum answers", 4, 0.1, time.Minute, "", false},
		{"imprecise", 7, 0.31, time.Minute, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &store.Session{Answered: tt.answered, StandardError: tt.se, StartedAt: start}
			got, stop := shouldStop(cfg, s, start.Add(tt.elapsed))
			if got != tt.want || stop != tt.stop {
				t.Errorf("shouldStop = (%q, %v), want (%q, %v)", got, stop, tt.want, tt.stop)
			}
		})
	}

	noLimit := DefaultConfig()
	s := &store.Session{Answered: 1, StandardError: 1, StartedAt: start}
	if _, stop := shouldStop(noLimit, s, start.Add(1000*time.Hour)); stop {
		t.Error("zero MaxTime must not stop on elapsed time")
	}
}
