package report

import (
	"math"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

// Trend labels.
const (
	TrendInsufficient = "insufficient_data"
	TrendStable       = "stable"
	TrendSlowingDown  = "slowing_down"
	TrendSpeedingUp   = "speeding_up"
	TrendImproving    = "improving"
	TrendDeclining    = "declining"
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
)

// Trend thresholds.
const (
	ResponseTimeSlope   = 0.5 // seconds per question
	AccuracyShift       = 0.1
	DifficultyShift     = 0.2
	MovingAverageWindow = 3
	MinConsistencyCount = 5
)

// Analyze derives response-pattern signals. Responses must be in question
// order; ability is the final estimate used for expected accuracy.
func Analyze(responses []store.Response, ability float64) store.Patterns {
	return store.Patterns{
		ResponseTimeTrend: responseTimeTrend(responses),
		AccuracyTrend:     accuracyTrend(responses),
		DifficultyTrend:   difficultyTrend(responses),
		ConsistencyScore:  Consistency(responses, ability),
	}
}

func responseTimeTrend(responses []store.Response) string {
	if len(responses) < 3 {
		return TrendInsufficient
	}
	ys := make([]float64, len(responses))
	for i, r := range responses {
		ys[i] = r.ResponseTime
	}
	slope := Slope(ys)
	switch {
	case slope > ResponseTimeSlope:
		return TrendSlowingDown
	case slope < -ResponseTimeSlope:
		return TrendSpeedingUp
	}
	return TrendStable
}

func accuracyTrend(responses []store.Response) string {
	if len(responses) < MovingAverageWindow {
		return TrendInsufficient
	}
	hits := make([]float64, len(responses))
	for i, r := range responses {
		if r.Correct {
			hits[i] = 1
		}
	}
	ma := MovingAverage(hits, MovingAverageWindow)
	delta := ma[len(ma)-1] - ma[0]
	switch {
	case delta > AccuracyShift:
		return TrendImproving
	case delta < -AccuracyShift:
		return TrendDeclining
	}
	return TrendStable
}

func difficultyTrend(responses []store.Response) string {
	n := len(responses)
	if n < 2 {
		return TrendInsufficient
	}
	half := n / 2
	var first, second float64
	for i, r := range responses {
		if i < half {
			first += r.Difficulty
		} else {
			second += r.Difficulty
		}
	}
	delta := second/float64(n-half) - first/float64(half)
	switch {
	case delta > DifficultyShift:
		return TrendIncreasing
	case delta < -DifficultyShift:
		return TrendDecreasing
	}
	return TrendStable
}

// Consistency compares observed and model-predicted accuracy within each
// difficulty band and averages 1-|observed-expected| over non-empty bands.
// It is 1 with fewer than MinConsistencyCount responses.
func Consistency(responses []store.Response, ability float64) float64 {
	if len(responses) < MinConsistencyCount {
		return 1
	}

	type band struct {
		n        int
		correct  int
		expected float64
	}
	bands := make(map[irt.Level]*band)
	for _, r := range responses {
		lvl := irt.LevelFor(r.Difficulty)
		b, ok := bands[lvl]
		if !ok {
			b = &band{}
			bands[lvl] = b
		}
		b.n++
		if r.Correct {
			b.correct++
		}
		b.expected += irt.Probability(ability, r.Params())
	}

	var total float64
	for _, b := range bands {
		obs := float64(b.correct) / float64(b.n)
		exp := b.expected / float64(b.n)
		total += 1 - math.Abs(obs-exp)
	}
	return total / float64(len(bands))
}

// Slope returns the least-squares slope of ys against their indices.
func Slope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	meanX := (n - 1) / 2
	var meanY float64
	for _, y := range ys {
		meanY += y
	}
	meanY /= n

	var num, den float64
	for i, y := range ys {
		dx := float64(i) - meanX
		num += dx * (y - meanY)
		den += dx * dx
	}
	return num / den
}

// MovingAverage returns the trailing averages of every full window.
func MovingAverage(xs []float64, window int) []float64 {
	if window <= 0 || len(xs) < window {
		return nil
	}
	out := make([]float64, 0, len(xs)-window+1)
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}
