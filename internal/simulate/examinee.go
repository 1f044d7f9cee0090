// Package simulate drives adaptive sessions with simulated examinees whose
// true ability is known, for checking that estimates recover it.
package simulate

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

// Examinee answers items according to the 3PL model at a fixed ability.
type Examinee struct {
	ID      string
	Ability float64
}

// Answer draws a response to it. A correct draw returns the item's answer;
// an incorrect one returns an answer that does not match it.
func (x Examinee) Answer(it *store.Item, rng *rand.Rand) (json.RawMessage, bool) {
	p := irt.Probability(x.Ability, it.Params())
	if rng.Float64() < p {
		return it.CorrectAnswer, true
	}
	return wrongAnswer(it), false
}

func wrongAnswer(it *store.Item) json.RawMessage {
	if it.Type == store.TrueFalse {
		var b bool
		if err := json.Unmarshal(it.CorrectAnswer, &b); err == nil {
			return json.RawMessage(fmt.Sprint(!b))
		}
	}
	return json.RawMessage(`null`)
}

// Latency draws a response time that grows with how hard the item is for
// the examinee.
func (x Examinee) Latency(it *store.Item, rng *rand.Rand) time.Duration {
	gap := it.Difficulty - x.Ability
	secs := 20 + 5*gap + 10*rng.NormFloat64()
	if secs < 2 {
		secs = 2
	}
	return time.Duration(secs * float64(time.Second))
}

// Population draws n examinees with abilities from N(mean, sd²), clamped to
// the ability scale.
func Population(n int, mean, sd float64, rng *rand.Rand) []Examinee {
	out := make([]Examinee, n)
	for i := range out {
		out[i] = Examinee{
			ID:      fmt.Sprintf("sim-%04d", i+1),
			Ability: irt.Clamp(mean + sd*rng.NormFloat64()),
		}
	}
	return out
}
