package irt

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestProbability_ReferenceValues(t *testing.T) {
	tests := []struct {
		name  string
		theta float64
		p     Params
		want  float64
	}{
		{"2PL at b", 0, Params{A: 1, B: 0, C: 0}, 0.5},
		{"3PL at b", 0, Params{A: 1, B: 0, C: 0.2}, 0.6},
		{"2PL one above b", 1, Params{A: 1, B: 0, C: 0}, 0.845535},
		{"2PL one below b", -1, Params{A: 1, B: 0, C: 0}, 0.154465},
		{"steep item", 0.5, Params{A: 2, B: 0, C: 0}, 0.845535},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Probability(tt.theta, tt.p)
			if !approxEqual(got, tt.want, 1e-5) {
				t.Errorf("Probability(%v) = %.6f, want %.6f", tt.theta, got, tt.want)
			}
		})
	}
}

func TestInformation_ReferenceValues(t *testing.T) {
	tests := []struct {
		name  string
		theta float64
		p     Params
		want  float64
	}{
		// D²a²PQ for the 2PL case.
		{"2PL at b", 0, Params{A: 1, B: 0, C: 0}, 0.7225},
		{"3PL at b", 0, Params{A: 1, B: 0, C: 0.2}, 0.481667},
		{"2PL a=2 at b", 0, Params{A: 2, B: 0, C: 0}, 2.89},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Information(tt.theta, tt.p)
			if !approxEqual(got, tt.want, 1e-5) {
				t.Errorf("Information(%v) = %.6f, want %.6f", tt.theta, got, tt.want)
			}
		})
	}
}

func TestProbability_BoundedAndMonotonic(t *testing.T) {
	for _, a := range []float64{0.1, 0.5, 1, 1.7, 2.5} {
		for _, b := range []float64{-3, -1, 0, 1.5, 3} {
			for _, c := range []float64{0, 0.1, 0.25, 0.3} {
				p := Params{A: a, B: b, C: c}
				prev := -1.0
				for theta := -6.0; theta <= 6.0; theta += 0.05 {
					got := Probability(theta, p)
					if got < c || got > 1 {
						t.Fatalf("Probability(%v, %+v) = %v, outside [c, 1]", theta, p, got)
					}
					if got < prev {
						t.Fatalf("Probability not monotonic at theta=%v for %+v", theta, p)
					}
					prev = got
				}
			}
		}
	}
}

func TestInformation_PeaksNearDifficulty(t *testing.T) {
	for _, a := range []float64{0.5, 1, 2} {
		for _, b := range []float64{-2, 0, 1} {
			for _, c := range []float64{0, 0.2, 0.3} {
				p := Params{A: a, B: b, C: c}
				bestTheta, best := 0.0, -1.0
				for theta := -6.0; theta <= 6.0; theta += 0.001 {
					info := Information(theta, p)
					if info < 0 {
						t.Fatalf("Information(%v, %+v) = %v, want >= 0", theta, p, info)
					}
					if info > best {
						best, bestTheta = info, theta
					}
				}
				if !approxEqual(bestTheta, PeakTheta(p), 0.01) {
					t.Errorf("%+v: argmax = %.3f, want %.3f", p, bestTheta, PeakTheta(p))
				}
				if !approxEqual(bestTheta, b, 0.5) {
					t.Errorf("%+v: argmax = %.3f, too far from b", p, bestTheta)
				}
			}
		}
	}
}

func TestInformation_DecreasesWithGuessing(t *testing.T) {
	prev := math.Inf(1)
	for _, c := range []float64{0, 0.1, 0.2, 0.3} {
		info := Information(0, Params{A: 1, B: 0, C: c})
		if info >= prev {
			t.Errorf("Information with c=%.1f = %v, want < %v", c, info, prev)
		}
		prev = info
	}
}

func TestInformation_Degenerate(t *testing.T) {
	// Far below b with no guessing P underflows toward 0; the result must stay finite.
	got := Information(-3, Params{A: 2.5, B: 3, C: 0})
	if math.IsNaN(got) || math.IsInf(got, 0) || got < 0 {
		t.Errorf("Information = %v, want finite non-negative", got)
	}
	got = Information(0, Params{A: 1, B: 0, C: 1})
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("Information with c=1 = %v, want finite", got)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		p       Params
		wantErr bool
	}{
		{Params{A: 1, B: 0, C: 0.2}, false},
		{Params{A: 0.1, B: -3, C: 0}, false},
		{Params{A: 2.5, B: 3, C: 0.3}, false},
		{Params{A: 0.05, B: 0, C: 0}, true},
		{Params{A: 1, B: 3.1, C: 0}, true},
		{Params{A: 1, B: 0, C: 0.31}, true},
		{Params{A: math.NaN(), B: 0, C: 0}, true},
	}
	for _, tt := range tests {
		err := tt.p.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.p, err, tt.wantErr)
		}
	}
}

func TestClampAndLevel(t *testing.T) {
	if got := Clamp(4.2); got != MaxTheta {
		t.Errorf("Clamp(4.2) = %v", got)
	}
	if got := Clamp(-7); got != MinTheta {
		t.Errorf("Clamp(-7) = %v", got)
	}
	if got := Clamp(0.4); got != 0.4 {
		t.Errorf("Clamp(0.4) = %v", got)
	}

	levels := map[float64]Level{-1: LevelEasy, -0.5: LevelMedium, 0: LevelMedium, 0.5: LevelMedium, 0.6: LevelHard}
	for b, want := range levels {
		if got := LevelFor(b); got != want {
			t.Errorf("LevelFor(%v) = %s, want %s", b, got, want)
		}
	}
}
