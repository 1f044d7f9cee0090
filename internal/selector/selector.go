// Package selector picks the next item to serve in an adaptive session.
package selector

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/abhisek/adaptest/internal/irt"
)

// Method is an item selection strategy.
type Method string

const (
	MaximumInformation Method = "maximum_information"
	ClosestDifficulty  Method = "closest_difficulty"
	Random             Method = "random"
)

// Valid reports whether m is a known selection method.
func (m Method) Valid() bool {
	switch m {
	case MaximumInformation, ClosestDifficulty, Random:
		return true
	}
	return false
}

// ExposurePolicy decides which alternative replaces an overexposed item.
type ExposurePolicy string

const (
	// ExposureLowest picks the alternative with the lowest exposure rate,
	// breaking ties by lowest id.
	ExposureLowest ExposurePolicy = "lowest"
	// ExposureRandom picks uniformly among alternatives using the
	// selector's random source.
	ExposureRandom ExposurePolicy = "random"
)

// Exposure control thresholds.
const (
	DefaultMaxExposure       = 0.3
	DefaultInformationWindow = 0.1
)

// Candidate is an item eligible for selection.
type Candidate struct {
	ID     string
	Topic  string
	Params irt.Params
	Usage  int
}

// ExposureRate is the candidate's usage divided by the number of completed
// sessions in its pool. It is 0 before any session has completed.
func (c Candidate) ExposureRate(completedSessions int) float64 {
	if completedSessions <= 0 {
		return 0
	}
	return float64(c.Usage) / float64(completedSessions)
}

// Request describes the session state the choice depends on.
type Request struct {
	Ability           float64
	Method            Method
	TopicBalancing    bool
	TopicCoverage     map[string]int
	ExposureControl   bool
	CompletedSessions int
	Asked             []string
}

// Choice is the selected item.
type Choice struct {
	Candidate
	Information float64 // at the request ability
	Substituted bool    // replaced by exposure control
	OriginalID  string  // set when Substituted
}

// Selector chooses items. It is safe for concurrent use.
type Selector struct {
	mu          sync.Mutex
	rng         *rand.Rand
	policy      ExposurePolicy
	maxExposure float64
	infoWindow  float64
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source used by the random method and by random
// exposure substitution.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) { s.rng = r }
}

// WithExposurePolicy sets how exposure control picks a substitute.
func WithExposurePolicy(p ExposurePolicy) Option {
	return func(s *Selector) { s.policy = p }
}

// WithExposureLimits overrides the exposure threshold and information window.
func WithExposureLimits(maxExposure, infoWindow float64) Option {
	return func(s *Selector) {
		s.maxExposure = maxExposure
		s.infoWindow = infoWindow
	}
}

// New creates a Selector.
func New(opts ...Option) *Selector {
	s := &Selector{
		policy:      ExposureLowest,
		maxExposure: DefaultMaxExposure,
		infoWindow:  DefaultInformationWindow,
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return s
}

// Select returns the next item from pool for req. The boolean is false when
// no unasked candidate remains; that is exhaustion, not an error.
func (s *Selector) Select(req Request, pool []Candidate) (Choice, bool) {
	candidates := Unasked(pool, req.Asked)
	if len(candidates) == 0 {
		return Choice{}, false
	}

	if req.TopicBalancing && len(req.TopicCoverage) > 0 {
		if balanced := balanceTopics(candidates, req.TopicCoverage); len(balanced) > 0 {
			candidates = balanced
		}
	}

	idx := s.pick(req.Method, req.Ability, candidates)
	choice := Choice{
		Candidate:   candidates[idx],
		Information: irt.Information(req.Ability, candidates[idx].Params),
	}

	if req.ExposureControl {
		if alt, ok := s.substitute(choice, req, candidates); ok {
			return alt, true
		}
	}
	return choice, true
}

// Unasked returns the candidates whose ids are not in asked, preserving order.
func Unasked(pool []Candidate, asked []string) []Candidate {
	seen := make(map[string]struct{}, len(asked))
	for _, id := range asked {
		seen[id] = struct{}{}
	}
	out := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := seen[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// balanceTopics keeps candidates whose topic is covered less than the mean.
// Topics present among candidates but not yet covered count as zero.
func balanceTopics(candidates []Candidate, coverage map[string]int) []Candidate {
	counts := make(map[string]int, len(coverage))
	for topic, n := range coverage {
		counts[topic] = n
	}
	for _, c := range candidates {
		if _, ok := counts[c.Topic]; !ok {
			counts[c.Topic] = 0
		}
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	mean := float64(total) / float64(len(counts))

	var out []Candidate
	for _, c := range candidates {
		if float64(counts[c.Topic]) < mean {
			out = append(out, c)
		}
	}
	return out
}

func (s *Selector) pick(method Method, ability float64, candidates []Candidate) int {
	switch method {
	case MaximumInformation:
		best, bestInfo := 0, math.Inf(-1)
		for i, c := range candidates {
			if info := irt.Information(ability, c.Params); info > bestInfo {
				best, bestInfo = i, info
			}
		}
		return best
	case ClosestDifficulty:
		best, bestDist := 0, math.Inf(1)
		for i, c := range candidates {
			if d := math.Abs(c.Params.B - ability); d < bestDist {
				best, bestDist = i, d
			}
		}
		return best
	default:
		return s.intN(len(candidates))
	}
}

func (s *Selector) substitute(chosen Choice, req Request, candidates []Candidate) (Choice, bool) {
	if chosen.ExposureRate(req.CompletedSessions) <= s.maxExposure {
		return Choice{}, false
	}

	var alts []Choice
	for _, c := range candidates {
		if c.ID == chosen.ID || c.ExposureRate(req.CompletedSessions) >= s.maxExposure {
			continue
		}
		info := irt.Information(req.Ability, c.Params)
		if math.Abs(info-chosen.Information) <= s.infoWindow {
			alts = append(alts, Choice{Candidate: c, Information: info})
		}
	}
	if len(alts) == 0 {
		return Choice{}, false
	}

	var alt Choice
	if s.policy == ExposureRandom {
		alt = alts[s.intN(len(alts))]
	} else {
		alt = alts[0]
		for _, a := range alts[1:] {
			ar, br := a.ExposureRate(req.CompletedSessions), alt.ExposureRate(req.CompletedSessions)
			if ar < br || (ar == br && a.ID < alt.ID) {
				alt = a
			}
		}
	}
	alt.Substituted = true
	alt.OriginalID = chosen.ID
	return alt, true
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
