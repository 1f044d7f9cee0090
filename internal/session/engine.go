// Package session runs adaptive test sessions: it starts them, serves the
// next item, scores responses and finalizes sessions with a report.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/adaptest/internal/estimate"
	"github.com/abhisek/adaptest/internal/lock"
	"github.com/abhisek/adaptest/internal/metrics"
	"github.com/abhisek/adaptest/internal/report"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/store"
)

// Engine coordinates sessions over a store. It is safe for concurrent use;
// mutations of one session are serialized by the locker.
type Engine struct {
	repos     store.Repos
	selector  *selector.Selector
	estimator estimate.Estimator
	locker    lock.Locker
	log       *zap.Logger
	metrics   *metrics.Metrics
	defaults  Config
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelector sets the item selector.
func WithSelector(s *selector.Selector) Option {
	return func(e *Engine) { e.selector = s }
}

// WithEstimator sets the ability estimator.
func WithEstimator(est estimate.Estimator) Option {
	return func(e *Engine) { e.estimator = est }
}

// WithLocker sets the per-session locker.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDefaults sets the base config that start requests patch.
func WithDefaults(c Config) Option {
	return func(e *Engine) { e.defaults = c }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the generator for session and response ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an Engine backed by repos.
func NewEngine(repos store.Repos, opts ...Option) *Engine {
	e := &Engine{
		repos:     repos,
		estimator: estimate.Default(),
		locker:    lock.NewLocal(),
		log:       zap.NewNop(),
		defaults:  DefaultConfig(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	if e.selector == nil {
		e.selector = selector.New()
	}
	return e
}

// StartRequest identifies who is tested on which pool.
type StartRequest struct {
	PoolID  string
	TakerID string
	TestID  string
	Config  ConfigPatch
}

// Start creates a session, or returns the taker's in-progress session on
// the pool unchanged if one exists.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*store.Session, error) {
	if req.PoolID == "" || req.TakerID == "" {
		return nil, fmt.Errorf("start session: %w: pool and taker are required", ErrInvalidState)
	}
	unlock, err := e.locker.Lock(ctx, "start:"+req.PoolID+":"+req.TakerID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer unlock()

	pool, err := e.repos.Pools().Get(ctx, req.PoolID)
	if err != nil {
		return nil, translate("load pool", err)
	}

	existing, err := e.repos.Sessions().GetActive(ctx, req.PoolID, req.TakerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, translate("load active session", err)
	}

	if !pool.Active {
		return nil, fmt.Errorf("start session: %w: pool %s is inactive", ErrInvalidState, pool.ID)
	}

	cfg := e.defaults.Merge(req.Config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	sess := &store.Session{
		ID:            e.newID(),
		TakerID:       req.TakerID,
		PoolID:        req.PoolID,
		TestID:        req.TestID,
		Config:        cfg.stored(),
		Ability:       cfg.InitialAbility,
		StandardError: cfg.SECeiling,
		AskedItems:    []string{},
		TopicCoverage: map[string]int{},
		History:       []float64{cfg.InitialAbility},
		Status:        store.StatusInProgress,
		StartedAt:     now,
	}
	if err := e.repos.Sessions().Create(ctx, sess); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Another process won the race; return its session.
			if s, getErr := e.repos.Sessions().GetActive(ctx, req.PoolID, req.TakerID); getErr == nil {
				return s, nil
			}
		}
		return nil, translate("create session", err)
	}

	e.metrics.SessionStarted()
	e.log.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("pool_id", sess.PoolID),
		zap.String("taker_id", sess.TakerID),
		zap.String("method", string(cfg.SelectionMethod)),
	)
	return sess, nil
}

// OutcomeKind distinguishes the results of NextQuestion.
type OutcomeKind int

const (
	// OutcomeQuestion carries the next item to present.
	OutcomeQuestion OutcomeKind = iota
	// OutcomeCompleted means the session is over; Reason says why.
	OutcomeCompleted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeQuestion:
		return "question"
	case OutcomeCompleted:
		return "completed"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of NextQuestion.
type Outcome struct {
	Kind        OutcomeKind
	Item        *store.Item // set for OutcomeQuestion
	Information float64     // item information at the current ability
	Reason      StopReason  // set for OutcomeCompleted
}

// NextQuestion returns the next item for the session, or completes it when
// a stop criterion holds or the pool has no unasked items left.
func (e *Engine) NextQuestion(ctx context.Context, sessionID string) (Outcome, error) {
	unlock, err := e.locker.Lock(ctx, sessionKey(sessionID))
	if err != nil {
		return Outcome{}, fmt.Errorf("next question: %w", err)
	}
	defer unlock()

	sess, err := e.repos.Sessions().Get(ctx, sessionID)
	if err != nil {
		return Outcome{}, translate("load session", err)
	}
	if sess.Status != store.StatusInProgress {
		return Outcome{Kind: OutcomeCompleted, Reason: StopReason(sess.StopReason)}, nil
	}

	cfg := configFromStored(sess.Config)
	if reason, stop := shouldStop(cfg, sess, e.now()); stop {
		if _, err := e.finalize(ctx, sess.ID, reason); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeCompleted, Reason: reason}, nil
	}

	pool, err := e.repos.Pools().Get(ctx, sess.PoolID)
	if err != nil {
		return Outcome{}, translate("load pool", err)
	}
	items, err := e.repos.Items().ListByPool(ctx, sess.PoolID, sess.AskedItems)
	if err != nil {
		return Outcome{}, translate("list pool items", err)
	}

	byID := make(map[string]*store.Item, len(items))
	candidates := make([]selector.Candidate, len(items))
	for i := range items {
		it := &items[i]
		byID[it.ID] = it
		candidates[i] = selector.Candidate{ID: it.ID, Topic: it.Topic, Params: it.Params(), Usage: it.UsageCount}
	}

	choice, ok := e.selector.Select(selector.Request{
		Ability:           sess.Ability,
		Method:            cfg.SelectionMethod,
		TopicBalancing:    cfg.TopicBalancing,
		TopicCoverage:     sess.TopicCoverage,
		ExposureControl:   cfg.ExposureControl,
		CompletedSessions: pool.CompletedSessions,
		Asked:             sess.AskedItems,
	}, candidates)
	if !ok {
		if _, err := e.finalize(ctx, sess.ID, ReasonPoolExhausted); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeCompleted, Reason: ReasonPoolExhausted}, nil
	}

	if err := e.repos.Items().RecordServed(ctx, choice.ID, choice.Information); err != nil {
		return Outcome{}, translate("record served item", err)
	}
	item := byID[choice.ID]
	item.InformationValue = choice.Information

	if choice.Substituted {
		e.metrics.ExposureSubstituted()
		e.log.Debug("exposure substitution",
			zap.String("session_id", sess.ID),
			zap.String("item_id", choice.ID),
			zap.String("replaced_item_id", choice.OriginalID),
		)
	}
	e.log.Debug("item served",
		zap.String("session_id", sess.ID),
		zap.String("item_id", item.ID),
		zap.Float64("ability", sess.Ability),
		zap.Float64("information", choice.Information),
	)
	return Outcome{Kind: OutcomeQuestion, Item: item, Information: choice.Information}, nil
}

// SubmitRequest is one answered item.
type SubmitRequest struct {
	SessionID string
	ItemID    string
	Answer    json.RawMessage
	Latency   time.Duration
}

// SubmitResult reports the scored response and the updated session.
type SubmitResult struct {
	Correct  bool
	Response *store.Response
	Session  *store.Session
}

// SubmitResponse scores an answer and updates the session, the response log
// and the item's counters in one transaction.
func (e *Engine) SubmitResponse(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	unlock, err := e.locker.Lock(ctx, sessionKey(req.SessionID))
	if err != nil {
		return nil, fmt.Errorf("submit response: %w", err)
	}
	defer unlock()

	var (
		result *SubmitResult
		est    estimate.Result
	)
	err = e.repos.Atomic(ctx, func(r store.Repos) error {
		sess, err := r.Sessions().Get(ctx, req.SessionID)
		if err != nil {
			return translate("load session", err)
		}
		if sess.Status != store.StatusInProgress {
			return fmt.Errorf("submit response: %w: session %s is %s", ErrInvalidState, sess.ID, sess.Status)
		}
		cfg := configFromStored(sess.Config)
		if sess.Answered >= cfg.MaxQuestions {
			return fmt.Errorf("submit response: %w: session %s reached its question limit", ErrInvalidState, sess.ID)
		}

		item, err := r.Items().Get(ctx, req.ItemID)
		if err != nil {
			return translate("load item", err)
		}
		if item.PoolID != sess.PoolID {
			return fmt.Errorf("submit response: %w: item %s is not in pool %s", ErrInvalidState, item.ID, sess.PoolID)
		}
		if sess.HasAsked(item.ID) {
			return fmt.Errorf("submit response: %w: item %s already answered", ErrInvalidState, item.ID)
		}

		correct, err := CheckAnswer(item.Type, item.CorrectAnswer, req.Answer)
		if err != nil {
			return fmt.Errorf("check answer for item %s: %w", item.ID, err)
		}

		prior, err := r.Responses().ListBySession(ctx, sess.ID)
		if err != nil {
			return translate("load responses", err)
		}
		obs := make([]estimate.Observation, 0, len(prior)+1)
		for _, p := range prior {
			obs = append(obs, estimate.Observation{Params: p.Params(), Correct: p.Correct})
		}
		obs = append(obs, estimate.Observation{Params: item.Params(), Correct: correct})

		estimator := e.estimator
		estimator.SECeiling = cfg.SECeiling
		est = estimator.Estimate(sess.Ability, cfg.InitialAbility, obs)

		resp := &store.Response{
			ID:             e.newID(),
			SessionID:      sess.ID,
			ItemID:         item.ID,
			QuestionNumber: sess.Answered + 1,
			Answer:         req.Answer,
			Correct:        correct,
			ResponseTime:   req.Latency.Seconds(),
			AbilityBefore:  sess.Ability,
			AbilityAfter:   est.Ability,
			SEAfter:        est.SE,
			Difficulty:     item.Difficulty,
			Discrimination: item.Discrimination,
			Guessing:       item.Guessing,
			Topic:          item.Topic,
			AnsweredAt:     e.now().UTC(),
		}
		if err := r.Responses().Append(ctx, resp); err != nil {
			return translate("append response", err)
		}

		pool, err := r.Pools().Get(ctx, sess.PoolID)
		if err != nil {
			return translate("load pool", err)
		}
		if err := r.Items().RecordAnswer(ctx, item.ID, correct, resp.ResponseTime, pool.CompletedSessions); err != nil {
			return translate("update item counters", err)
		}

		sess.Answered++
		sess.AskedItems = append(sess.AskedItems, item.ID)
		if sess.TopicCoverage == nil {
			sess.TopicCoverage = map[string]int{}
		}
		sess.TopicCoverage[item.Topic]++
		sess.History = append(sess.History, est.Ability)
		sess.Ability = est.Ability
		sess.StandardError = est.SE
		if err := r.Sessions().Update(ctx, sess); err != nil {
			return translate("update session", err)
		}

		result = &SubmitResult{Correct: correct, Response: resp, Session: sess}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ResponseRecorded(result.Correct, est.Iterations)
	e.log.Debug("response recorded",
		zap.String("session_id", req.SessionID),
		zap.String("item_id", req.ItemID),
		zap.Bool("correct", result.Correct),
		zap.Float64("ability", est.Ability),
		zap.Float64("se", est.SE),
		zap.Int("iterations", est.Iterations),
		zap.Bool("prior", est.UsedPrior),
	)
	return result, nil
}

// Complete ends the session with reason and returns its report. Completing
// an already completed session returns the existing report.
func (e *Engine) Complete(ctx context.Context, sessionID string, reason StopReason) (*store.Report, error) {
	if reason == "" {
		reason = ReasonManual
	}
	unlock, err := e.locker.Lock(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	defer unlock()
	return e.finalize(ctx, sessionID, reason)
}

// Abandon completes the session with reason abandoned.
func (e *Engine) Abandon(ctx context.Context, sessionID string) (*store.Report, error) {
	return e.Complete(ctx, sessionID, ReasonAbandoned)
}

// Report returns the session's report, generating it if the session is
// completed but has none yet.
func (e *Engine) Report(ctx context.Context, sessionID string) (*store.Report, error) {
	rep, err := e.repos.Reports().Get(ctx, sessionID)
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, translate("load report", err)
	}

	unlock, err := e.locker.Lock(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	defer unlock()

	var out *store.Report
	err = e.repos.Atomic(ctx, func(r store.Repos) error {
		sess, err := r.Sessions().Get(ctx, sessionID)
		if err != nil {
			return translate("load session", err)
		}
		if sess.Status != store.StatusCompleted {
			return fmt.Errorf("report: %w: session %s is still in progress", ErrInvalidState, sessionID)
		}
		out, err = e.buildReport(ctx, r, sess)
		return err
	})
	return out, err
}

// finalize completes the session and stores its report in one transaction.
// The caller holds the session lock.
func (e *Engine) finalize(ctx context.Context, sessionID string, reason StopReason) (*store.Report, error) {
	var (
		out       *store.Report
		sess      *store.Session
		completed bool
	)
	err := e.repos.Atomic(ctx, func(r store.Repos) error {
		var err error
		sess, err = r.Sessions().Get(ctx, sessionID)
		if err != nil {
			return translate("load session", err)
		}

		if sess.Status == store.StatusInProgress {
			now := e.now().UTC()
			ability, se := sess.Ability, sess.StandardError
			lo, hi := estimate.ConfidenceInterval(ability, se)
			sess.Status = store.StatusCompleted
			sess.StopReason = string(reason)
			sess.EndedAt = &now
			sess.FinalAbility = &ability
			sess.FinalSE = &se
			sess.CILower = &lo
			sess.CIUpper = &hi
			if err := r.Sessions().Update(ctx, sess); err != nil {
				return translate("complete session", err)
			}
			if err := r.Pools().IncrementCompleted(ctx, sess.PoolID); err != nil {
				return translate("count completed session", err)
			}
			completed = true
		}

		out, err = e.buildReport(ctx, r, sess)
		return err
	})
	if err != nil {
		return nil, err
	}

	if completed {
		e.metrics.SessionCompleted(string(reason), sess.Answered, *sess.FinalSE)
		e.log.Info("session completed",
			zap.String("session_id", sess.ID),
			zap.String("pool_id", sess.PoolID),
			zap.String("reason", string(reason)),
			zap.Int("answered", sess.Answered),
			zap.Float64("ability", *sess.FinalAbility),
			zap.Float64("se", *sess.FinalSE),
		)
	}
	return out, nil
}

// buildReport returns the stored report or generates and stores one.
func (e *Engine) buildReport(ctx context.Context, r store.Repos, sess *store.Session) (*store.Report, error) {
	if rep, err := r.Reports().Get(ctx, sess.ID); err == nil {
		return rep, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, translate("load report", err)
	}

	responses, err := r.Responses().ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, translate("load responses", err)
	}
	rep := report.Generate(sess, responses, e.now().UTC())
	stored, err := r.Reports().Insert(ctx, rep)
	if err != nil {
		return nil, translate("store report", err)
	}
	return stored, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

// ConfidenceInterval returns the session's 95% interval on the ability scale.
func ConfidenceInterval(s *store.Session) (lower, upper float64) {
	if s.CILower != nil && s.CIUpper != nil {
		return *s.CILower, *s.CIUpper
	}
	return estimate.ConfidenceInterval(s.Ability, s.StandardError)
}
