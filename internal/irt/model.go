// Package irt implements the three-parameter logistic (3PL) item response model.
//
// All functions are pure and defined for every real theta. Callers keep theta
// inside [MinTheta, MaxTheta]; see Clamp.
package irt

import (
	"fmt"
	"math"
)

// D is the logistic scaling constant that makes the logistic curve
// approximate the normal ogive.
const D = 1.7

// Ability bounds shared by every component.
const (
	MinTheta = -3.0
	MaxTheta = 3.0
)

// Parameter bounds for calibrated items.
const (
	MinDifficulty     = -3.0
	MaxDifficulty     = 3.0
	MinDiscrimination = 0.1
	MaxDiscrimination = 2.5
	MinGuessing       = 0.0
	MaxGuessing       = 0.3
)

// epsilon floors denominators in Information.
const epsilon = 1e-10

// Params holds the 3PL parameters of an item.
type Params struct {
	A float64 // discrimination
	B float64 // difficulty
	C float64 // guessing (lower asymptote)
}

// Validate reports whether the parameters are inside the calibrated ranges.
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.A) || math.IsNaN(p.B) || math.IsNaN(p.C):
		return fmt.Errorf("irt: parameters must be numbers")
	case p.B < MinDifficulty || p.B > MaxDifficulty:
		return fmt.Errorf("irt: difficulty %.3f outside [%.1f, %.1f]", p.B, MinDifficulty, MaxDifficulty)
	case p.A < MinDiscrimination || p.A > MaxDiscrimination:
		return fmt.Errorf("irt: discrimination %.3f outside [%.1f, %.1f]", p.A, MinDiscrimination, MaxDiscrimination)
	case p.C < MinGuessing || p.C > MaxGuessing:
		return fmt.Errorf("irt: guessing %.3f outside [%.1f, %.1f]", p.C, MinGuessing, MaxGuessing)
	}
	return nil
}

// Probability returns the probability of a correct response at ability theta:
//
//	P(θ) = c + (1-c) / (1 + exp(-D·a·(θ-b)))
func Probability(theta float64, p Params) float64 {
	return p.C + (1-p.C)/(1+math.Exp(-D*p.A*(theta-p.B)))
}

// Information returns the Fisher information of the item at theta:
//
//	I(θ) = D²a² · (Q/P) · ((P-c)/(1-c))²
//
// P and 1-c are floored at a small epsilon, so the result is finite and
// non-negative for all inputs.
func Information(theta float64, p Params) float64 {
	prob := Probability(theta, p)
	q := 1 - prob
	if prob < epsilon {
		prob = epsilon
	}
	if q < 0 {
		q = 0
	}
	oneMinusC := 1 - p.C
	if oneMinusC < epsilon {
		oneMinusC = epsilon
	}
	ratio := (prob - p.C) / oneMinusC
	return D * D * p.A * p.A * (q / prob) * ratio * ratio
}

// PeakTheta returns the ability at which the item's information is maximal.
// For c = 0 this is b; guessing shifts the peak slightly above b.
func PeakTheta(p Params) float64 {
	if p.A <= 0 {
		return p.B
	}
	return p.B + math.Log((1+math.Sqrt(1+8*p.C))/2)/(D*p.A)
}

// Clamp bounds theta to [MinTheta, MaxTheta].
func Clamp(theta float64) float64 {
	return ClampTo(theta, MinTheta, MaxTheta)
}

// ClampTo bounds v to [lo, hi].
func ClampTo(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Level is the coarse difficulty label of an item.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// Band boundaries on the difficulty scale.
const (
	EasyUpper = -0.5
	HardLower = 0.5
)

// LevelFor maps a difficulty to its band: easy below -0.5, hard above 0.5.
func LevelFor(b float64) Level {
	switch {
	case b < EasyUpper:
		return LevelEasy
	case b > HardLower:
		return LevelHard
	}
	return LevelMedium
}
