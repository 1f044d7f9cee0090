// Package estimate updates a test-taker's ability from their response history.
package estimate

import (
	"math"

	"github.com/abhisek/adaptest/internal/irt"
)

// Defaults for Estimator.
const (
	DefaultMaxIterations  = 50
	DefaultTolerance      = 0.001
	DefaultMinInformation = 0.01
	DefaultSECeiling      = 1.0
	DefaultPriorSD        = 1.0
)

// Observation is one scored response.
type Observation struct {
	Params  irt.Params
	Correct bool
}

// Result is the outcome of one estimation run.
type Result struct {
	Ability     float64
	SE          float64
	Information float64 // total information of the final iteration
	Iterations  int
	Converged   bool
	UsedPrior   bool
}

// Estimator runs Newton-Raphson ability estimation.
//
// With a mixed response pattern (at least one correct and one incorrect
// answer) it maximizes the likelihood. When every answer is correct, or every
// answer is incorrect, the likelihood has no interior maximum, so a normal
// prior centered on the starting ability keeps the estimate finite and its
// information term contributes to the standard error.
type Estimator struct {
	MaxIterations  int
	Tolerance      float64
	MinInformation float64
	SECeiling      float64
	PriorSD        float64
}

// Default returns an Estimator with the standard settings.
func Default() Estimator {
	return Estimator{
		MaxIterations:  DefaultMaxIterations,
		Tolerance:      DefaultTolerance,
		MinInformation: DefaultMinInformation,
		SECeiling:      DefaultSECeiling,
		PriorSD:        DefaultPriorSD,
	}
}

// Estimate computes the ability estimate for obs, iterating from start.
// priorMean centers the prior used for non-mixed patterns; callers pass the
// session's initial ability.
//
// Zero observations return start unchanged. With a single observation the
// estimate moves off start but the standard error is pinned to SECeiling.
func (e Estimator) Estimate(start, priorMean float64, obs []Observation) Result {
	e = e.withDefaults()
	start = irt.Clamp(start)

	if len(obs) == 0 {
		return Result{Ability: start, SE: e.SECeiling, Converged: true}
	}

	usePrior := !mixed(obs)
	priorPrecision := 1 / (e.PriorSD * e.PriorSD)

	theta := start
	var info float64
	res := Result{UsedPrior: usePrior}

	for iter := 1; iter <= e.MaxIterations; iter++ {
		score, total := 0.0, 0.0
		for _, o := range obs {
			p := irt.Probability(theta, o.Params)
			if o.Correct {
				score += (1 - p) * o.Params.A
			} else {
				score -= p * o.Params.A
			}
			total += irt.Information(theta, o.Params)
		}
		if usePrior {
			score -= (theta - priorMean) * priorPrecision
			total += priorPrecision
		}

		info = total
		res.Iterations = iter

		step := score / math.Max(total, e.MinInformation)
		next := irt.Clamp(theta + step)
		delta := math.Abs(next - theta)
		theta = next
		if delta < e.Tolerance {
			res.Converged = true
			break
		}
	}

	res.Ability = theta
	res.Information = info
	if len(obs) < 2 {
		res.SE = e.SECeiling
	} else {
		res.SE = StandardError(info, e.MinInformation)
	}
	return res
}

// StandardError converts total information into a standard error, flooring
// the information at minInfo.
func StandardError(info, minInfo float64) float64 {
	if info < minInfo {
		info = minInfo
	}
	return 1 / math.Sqrt(info)
}

// ConfidenceInterval returns the 95% interval ability ± 1.96·se clamped to
// the ability range.
func ConfidenceInterval(ability, se float64) (lower, upper float64) {
	const z = 1.96
	return irt.Clamp(ability - z*se), irt.Clamp(ability + z*se)
}

func (e Estimator) withDefaults() Estimator {
	d := Default()
	if e.MaxIterations <= 0 {
		e.MaxIterations = d.MaxIterations
	}
	if e.Tolerance <= 0 {
		e.Tolerance = d.Tolerance
	}
	if e.MinInformation <= 0 {
		e.MinInformation = d.MinInformation
	}
	if e.SECeiling <= 0 {
		e.SECeiling = d.SECeiling
	}
	if e.PriorSD <= 0 {
		e.PriorSD = d.PriorSD
	}
	return e
}

func mixed(obs []Observation) bool {
	var right, wrong bool
	for _, o := range obs {
		if o.Correct {
			right = true
		} else {
			wrong = true
		}
		if right && wrong {
			return true
		}
	}
	return false
}
