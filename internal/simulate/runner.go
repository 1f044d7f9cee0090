package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/store"
)

// Outcome is one simulated administration.
type Outcome struct {
	Examinee  Examinee
	SessionID string
	Reason    session.StopReason
	Answered  int
	Correct   int
	Report    *store.Report
}

// Error is the estimate minus the true ability.
func (o Outcome) Error() float64 {
	return o.Report.FinalAbility - o.Examinee.Ability
}

// Runner administers sessions to examinees through an engine.
type Runner struct {
	engine      *session.Engine
	log         *zap.Logger
	concurrency int

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Runner)

func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithRand sets the source of answers and latencies.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// WithConcurrency sets how many examinees are tested at once. Results stay
// deterministic for a seeded source only at 1.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewRunner(engine *session.Engine, opts ...Option) *Runner {
	r := &Runner{
		engine:      engine,
		log:         zap.NewNop(),
		concurrency: 1,
		rng:         rand.New(rand.NewPCG(1, 2)),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run tests every examinee on the pool and returns outcomes in examinee
// order.
func (r *Runner) Run(ctx context.Context, poolID string, cfg session.ConfigPatch, examinees []Examinee) ([]Outcome, error) {
	out := make([]Outcome, len(examinees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, x := range examinees {
		g.Go(func() error {
			o, err := r.administer(gctx, poolID, cfg, x)
			if err != nil {
				return fmt.Errorf("examinee %s: %w", x.ID, err)
			}
			out[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) administer(ctx context.Context, poolID string, cfg session.ConfigPatch, x Examinee) (Outcome, error) {
	sess, err := r.engine.Start(ctx, session.StartRequest{PoolID: poolID, TakerID: x.ID, Config: cfg})
	if err != nil {
		return Outcome{}, err
	}
	o := Outcome{Examinee: x, SessionID: sess.ID}

	for {
		next, err := r.engine.NextQuestion(ctx, sess.ID)
		if err != nil {
			return Outcome{}, err
		}
		if next.Kind == session.OutcomeCompleted {
			o.Reason = next.Reason
			break
		}

		answer, latency := r.draw(x, next.Item)
		res, err := r.engine.SubmitResponse(ctx, session.SubmitRequest{
			SessionID: sess.ID,
			ItemID:    next.Item.ID,
			Answer:    answer,
			Latency:   latency,
		})
		if err != nil {
			return Outcome{}, err
		}
		o.Answered++
		if res.Correct {
			o.Correct++
		}
	}

	rep, err := r.engine.Report(ctx, sess.ID)
	if err != nil {
		return Outcome{}, err
	}
	o.Report = rep
	r.log.Debug("simulated session finished",
		zap.String("session_id", sess.ID),
		zap.String("taker_id", x.ID),
		zap.Float64("true_ability", x.Ability),
		zap.Float64("estimate", rep.FinalAbility),
		zap.String("reason", string(o.Reason)),
	)
	return o, nil
}

func (r *Runner) draw(x Examinee, it *store.Item) (json.RawMessage, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	answer, _ := x.Answer(it, r.rng)
	return answer, x.Latency(it, r.rng)
}

// Stats summarizes how well a batch of sessions recovered true abilities.
type Stats struct {
	N            int
	Bias         float64
	RMSE         float64
	MeanAnswered float64
	MeanSE       float64
	StopReasons  map[session.StopReason]int
}

// Summarize aggregates outcomes.
func Summarize(outcomes []Outcome) Stats {
	s := Stats{N: len(outcomes), StopReasons: map[session.StopReason]int{}}
	if s.N == 0 {
		return s
	}
	var sq float64
	for _, o := range outcomes {
		e := o.Error()
		s.Bias += e
		sq += e * e
		s.MeanAnswered += float64(o.Answered)
		s.MeanSE += o.Report.FinalSE
		s.StopReasons[o.Reason]++
	}
	n := float64(s.N)
	s.Bias /= n
	s.RMSE = math.Sqrt(sq / n)
	s.MeanAnswered /= n
	s.MeanSE /= n
	return s
}
