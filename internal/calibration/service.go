package calibration

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/adaptest/internal/metrics"
	"github.com/abhisek/adaptest/internal/store"
)

// DefaultConcurrency bounds parallel item calibrations in CalibratePool.
const DefaultConcurrency = 4

// Service calibrates stored items and persists calibrated parameters.
type Service struct {
	repos       store.Repos
	log         *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
	dryRun      bool
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConcurrency sets how many items CalibratePool processes at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDryRun computes results without writing parameters back.
func WithDryRun(dry bool) Option {
	return func(s *Service) { s.dryRun = dry }
}

// NewService creates a calibration service.
func NewService(repos store.Repos, opts ...Option) *Service {
	s := &Service{
		repos:       repos,
		log:         zap.NewNop(),
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CalibrateItem calibrates one item and stores the new parameters when the
// result is StatusCalibrated.
func (s *Service) CalibrateItem(ctx context.Context, itemID string) (Result, error) {
	item, err := s.repos.Items().Get(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("load item: %w", err)
	}
	responses, err := s.repos.Responses().ListByItem(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("load responses for item %s: %w", itemID, err)
	}

	res := Calibrate(item.Params(), responses)
	res.ItemID = itemID
	s.metrics.Calibrated(string(res.Status))

	if res.Status != StatusCalibrated {
		s.log.Debug("item not calibrated",
			zap.String("item_id", itemID),
			zap.String("status", string(res.Status)),
			zap.Int("responses", res.Responses),
		)
		return res, nil
	}
	if !s.dryRun {
		if err := s.repos.Items().UpdateParams(ctx, itemID, res.Params); err != nil {
			return Result{}, fmt.Errorf("store calibrated params: %w", err)
		}
	}
	s.log.Info("item calibrated",
		zap.String("item_id", itemID),
		zap.Float64("a", res.Params.A),
		zap.Float64("b", res.Params.B),
		zap.Float64("c", res.Params.C),
		zap.Int("responses", res.Responses),
		zap.Bool("dry_run", s.dryRun),
	)
	return res, nil
}

// CalibratePool calibrates every item of a pool. Results follow the pool's
// item order. The first error cancels the remaining work.
func (s *Service) CalibratePool(ctx context.Context, poolID string) ([]Result, error) {
	if _, err := s.repos.Pools().Get(ctx, poolID); err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	items, err := s.repos.Items().ListByPool(ctx, poolID, nil)
	if err != nil {
		return nil, fmt.Errorf("list pool items: %w", err)
	}

	results := make([]Result, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.CalibrateItem(gctx, it.ID)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary counts results by status.
func Summary(results []Result) map[Status]int {
	out := make(map[Status]int, 3)
	for _, r := range results {
		out[r.Status]++
	}
	return out
}
