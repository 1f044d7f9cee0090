// Package calibration re-estimates item parameters from historical responses.
package calibration

import (
	"math"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

// Status is the outcome of a calibration attempt.
type Status string

const (
	StatusCalibrated            Status = "calibrated"
	StatusInsufficientData      Status = "insufficient_data"
	StatusInsufficientVariation Status = "insufficient_variation"
)

// MinResponses is the fewest responses an item needs to be calibrated.
const MinResponses = 30

// Edges split the ability scale into five buckets:
// (-inf,-1.5) [-1.5,-0.5) [-0.5,0.5) [0.5,1.5) [1.5,inf).
var Edges = []float64{-1.5, -0.5, 0.5, 1.5}

// Bucket aggregates responses from test-takers in one ability range.
type Bucket struct {
	Lower       float64
	Upper       float64
	N           int
	Correct     int
	MeanAbility float64
	Rate        float64
}

// Result is the outcome for one item. Params equals Previous unless Status
// is StatusCalibrated.
type Result struct {
	ItemID    string
	Status    Status
	Previous  irt.Params
	Params    irt.Params
	Responses int
	Buckets   []Bucket
}

// Calibrate estimates new parameters for an item from its responses,
// bucketed by the ability each test-taker had before answering.
func Calibrate(current irt.Params, responses []store.Response) Result {
	res := Result{
		Status:    StatusInsufficientData,
		Previous:  current,
		Params:    current,
		Responses: len(responses),
	}
	if len(responses) < MinResponses {
		return res
	}

	res.Buckets = bucketize(responses)
	var filled []Bucket
	for _, b := range res.Buckets {
		if b.N > 0 {
			filled = append(filled, b)
		}
	}
	if len(filled) < 2 || uniformRates(filled) {
		res.Status = StatusInsufficientVariation
		return res
	}

	res.Status = StatusCalibrated
	res.Params = irt.Params{
		A: discrimination(filled),
		B: difficulty(filled),
		C: irt.ClampTo(filled[0].Rate, irt.MinGuessing, irt.MaxGuessing),
	}
	return res
}

func bucketize(responses []store.Response) []Bucket {
	buckets := make([]Bucket, len(Edges)+1)
	for i := range buckets {
		buckets[i].Lower = math.Inf(-1)
		buckets[i].Upper = math.Inf(1)
		if i > 0 {
			buckets[i].Lower = Edges[i-1]
		}
		if i < len(Edges) {
			buckets[i].Upper = Edges[i]
		}
	}

	sums := make([]float64, len(buckets))
	for _, r := range responses {
		i := bucketIndex(r.AbilityBefore)
		buckets[i].N++
		if r.Correct {
			buckets[i].Correct++
		}
		sums[i] += r.AbilityBefore
	}
	for i := range buckets {
		if buckets[i].N > 0 {
			buckets[i].MeanAbility = sums[i] / float64(buckets[i].N)
			buckets[i].Rate = float64(buckets[i].Correct) / float64(buckets[i].N)
		}
	}
	return buckets
}

func bucketIndex(ability float64) int {
	for i, edge := range Edges {
		if ability < edge {
			return i
		}
	}
	return len(Edges)
}

func uniformRates(bs []Bucket) bool {
	for _, b := range bs[1:] {
		if b.Rate != bs[0].Rate {
			return false
		}
	}
	return true
}

// difficulty interpolates the ability where the success rate crosses 0.5.
// Without a crossing it takes the mean ability of the bucket closest to 0.5.
func difficulty(bs []Bucket) float64 {
	for i := 0; i+1 < len(bs); i++ {
		lo, hi := bs[i], bs[i+1]
		if lo.Rate == hi.Rate || (lo.Rate-0.5)*(hi.Rate-0.5) > 0 {
			continue
		}
		b := lo.MeanAbility + (0.5-lo.Rate)*(hi.MeanAbility-lo.MeanAbility)/(hi.Rate-lo.Rate)
		return irt.ClampTo(b, irt.MinDifficulty, irt.MaxDifficulty)
	}

	best := bs[0]
	for _, b := range bs[1:] {
		if math.Abs(b.Rate-0.5) < math.Abs(best.Rate-0.5) {
			best = b
		}
	}
	return irt.ClampTo(best.MeanAbility, irt.MinDifficulty, irt.MaxDifficulty)
}

// discrimination scales the steepest rising slope between adjacent buckets.
// The logistic curve's slope at its midpoint is D·a/4.
func discrimination(bs []Bucket) float64 {
	steepest := 0.0
	for i := 0; i+1 < len(bs); i++ {
		dx := bs[i+1].MeanAbility - bs[i].MeanAbility
		if dx <= 0 {
			continue
		}
		if slope := (bs[i+1].Rate - bs[i].Rate) / dx; slope > steepest {
			steepest = slope
		}
	}
	return irt.ClampTo(steepest*4/irt.D, irt.MinDiscrimination, irt.MaxDiscrimination)
}
