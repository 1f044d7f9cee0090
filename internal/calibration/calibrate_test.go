package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

var current = irt.Params{A: 1, B: 0, C: 0.2}

// synth builds n responses at ability theta, the first k of them correct.
func synth(theta float64, n, k int) []store.Response {
	out := make([]store.Response, n)
	for i := range out {
		out[i] = store.Response{AbilityBefore: theta, Correct: i < k}
	}
	return out
}

func join(parts ...[]store.Response) []store.Response {
	var out []store.Response
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestCalibrateInsufficientData(t *testing.T) {
	responses := join(synth(-2, 10, 1), synth(0, 10, 5), synth(2, 9, 9))
	require.Len(t, responses, 29)

	res := Calibrate(current, responses)
	assert.Equal(t, StatusInsufficientData, res.Status)
	assert.Equal(t, current, res.Params)
	assert.Equal(t, 29, res.Responses)
	assert.Nil(t, res.Buckets)
}

func TestCalibrateRecoversParameters(t *testing.T) {
	responses := join(
		synth(-2, 10, 2),
		synth(-1, 10, 3),
		synth(0, 10, 5),
		synth(1, 10, 8),
		synth(2, 10, 9),
	)

	res := Calibrate(current, responses)
	require.Equal(t, StatusCalibrated, res.Status)
	assert.Equal(t, current, res.Previous)
	assert.InDelta(t, 0, res.Params.B, 1e-12)
	assert.InDelta(t, 0.3*4/irt.D, res.Params.A, 1e-12)
	assert.InDelta(t, 0.2, res.Params.C, 1e-12)

	require.Len(t, res.Buckets, 5)
	assert.True(t, math.IsInf(res.Buckets[0].Lower, -1))
	assert.Equal(t, -1.5, res.Buckets[0].Upper)
	assert.Equal(t, 10, res.Buckets[2].N)
	assert.InDelta(t, 0.5, res.Buckets[2].Rate, 1e-12)
}

func TestCalibrateInterpolatesCrossing(t *testing.T) {
	// Rates 0.25 at -1 and 0.75 at 1 cross 0.5 midway.
	responses := join(synth(-1, 20, 5), synth(1, 20, 15))
	res := Calibrate(current, responses)
	require.Equal(t, StatusCalibrated, res.Status)
	assert.InDelta(t, 0, res.Params.B, 1e-12)
	assert.InDelta(t, 0.25*4/irt.D, res.Params.A, 1e-12)
	assert.InDelta(t, 0.25, res.Params.C, 1e-12)
}

func TestCalibrateWithoutCrossing(t *testing.T) {
	// Every bucket is above 0.5; the closest (0.6 at -2) sets difficulty.
	responses := join(synth(-2, 10, 6), synth(0, 10, 7), synth(2, 10, 9))
	res := Calibrate(current, responses)
	require.Equal(t, StatusCalibrated, res.Status)
	assert.InDelta(t, -2, res.Params.B, 1e-12)
	assert.InDelta(t, 0.3, res.Params.C, 1e-12, "guessing is capped")
}

func TestCalibrateBounds(t *testing.T) {
	// Falling success rates give no positive slope.
	res := Calibrate(current, join(synth(-2, 15, 14), synth(2, 15, 1)))
	require.Equal(t, StatusCalibrated, res.Status)
	assert.Equal(t, irt.MinDiscrimination, res.Params.A)

	// A cliff between adjacent buckets saturates discrimination.
	res = Calibrate(current, join(synth(-0.6, 15, 0), synth(-0.4, 15, 15)))
	require.Equal(t, StatusCalibrated, res.Status)
	assert.Equal(t, irt.MaxDiscrimination, res.Params.A)
	assert.Equal(t, 0.0, res.Params.C)
	assert.InDelta(t, -0.5, res.Params.B, 1e-12)
}

func TestCalibrateInsufficientVariation(t *testing.T) {
	tests := []struct {
		name      string
		responses []store.Response
	}{
		{"single bucket", synth(0.1, 40, 20)},
		{"equal rates", join(synth(-1, 20, 10), synth(1, 20, 10))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calibrate(current, tt.responses)
			assert.Equal(t, StatusInsufficientVariation, res.Status)
			assert.Equal(t, current, res.Params)
		})
	}
}

func TestBucketIndex(t *testing.T) {
	tests := []struct {
		ability float64
		want    int
	}{
		{-3, 0}, {-1.5, 1}, {-0.51, 1}, {-0.5, 2}, {0.49, 2}, {0.5, 3}, {1.5, 4}, {3, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bucketIndex(tt.ability), "ability %v", tt.ability)
	}
}
