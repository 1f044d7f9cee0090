package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/abhisek/adaptest/internal/irt"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write loses an optimistic version check
	// or violates a uniqueness rule.
	ErrConflict = errors.New("store: conflict")
)

// Kind names an entity type for cache invalidation.
type Kind string

const (
	KindItem    Kind = "item"
	KindPool    Kind = "pool"
	KindSession Kind = "session"
	KindReport  Kind = "report"
)

// ItemType is the answer format of an item.
type ItemType string

const (
	MultipleChoice ItemType = "multiple_choice"
	TrueFalse      ItemType = "true_false"
	Matching       ItemType = "matching"
	Ordering       ItemType = "ordering"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, Matching, Ordering:
		return true
	}
	return false
}

// Item is a calibrated question belonging to exactly one pool.
type Item struct {
	ID            string
	PoolID        string
	Content       string
	Type          ItemType
	CorrectAnswer json.RawMessage

	Difficulty     float64
	Discrimination float64
	Guessing       float64
	Level          irt.Level
	Topic          string
	Subtopic       string

	UsageCount       int
	CorrectCount     int
	AvgResponseTime  float64 // seconds
	ExposureRate     float64
	InformationValue float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Params returns the item's IRT parameters.
func (it *Item) Params() irt.Params {
	return irt.Params{A: it.Discrimination, B: it.Difficulty, C: it.Guessing}
}

// Pool is a named collection of items owned by an organization.
type Pool struct {
	ID                string
	Name              string
	OrgID             string
	Description       string
	ItemCount         int
	CompletedSessions int
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// SessionConfig is the persisted configuration of a session.
type SessionConfig struct {
	MaxQuestions    int     `json:"max_questions"`
	MaxTimeSeconds  int     `json:"max_time_seconds,omitempty"`
	SEThreshold     float64 `json:"standard_error_threshold"`
	MinQuestions    int     `json:"min_questions"`
	InitialAbility  float64 `json:"initial_ability"`
	SECeiling       float64 `json:"standard_error_ceiling"`
	SelectionMethod string  `json:"selection_method"`
	TopicBalancing  bool    `json:"topic_balancing"`
	ExposureControl bool    `json:"exposure_control"`
}

// Session is one adaptive test administration.
type Session struct {
	ID      string
	TakerID string
	PoolID  string
	TestID  string
	Config  SessionConfig

	Ability       float64
	StandardError float64
	Answered      int
	AskedItems    []string
	TopicCoverage map[string]int
	History       []float64

	Status     SessionStatus
	StopReason string
	StartedAt  time.Time
	EndedAt    *time.Time

	FinalAbility *float64
	FinalSE      *float64
	CILower      *float64
	CIUpper      *float64

	// Version is bumped on every successful Update.
	Version int
}

// HasAsked reports whether itemID was already served in this session.
func (s *Session) HasAsked(itemID string) bool {
	for _, id := range s.AskedItems {
		if id == itemID {
			return true
		}
	}
	return false
}

// Response is one answered item. Item parameters and topic are snapshotted
// at answer time.
type Response struct {
	ID             string
	SessionID      string
	ItemID         string
	QuestionNumber int
	Answer         json.RawMessage
	Correct        bool
	ResponseTime   float64 // seconds
	AbilityBefore  float64
	AbilityAfter   float64
	SEAfter        float64
	Difficulty     float64
	Discrimination float64
	Guessing       float64
	Topic          string
	AnsweredAt     time.Time
}

// Params returns the snapshotted IRT parameters.
func (r *Response) Params() irt.Params {
	return irt.Params{A: r.Discrimination, B: r.Difficulty, C: r.Guessing}
}

// TopicScore is the per-topic breakdown of a report.
type TopicScore struct {
	Topic          string  `json:"topic"`
	Total          int     `json:"total"`
	Correct        int     `json:"correct"`
	Accuracy       float64 `json:"accuracy"`
	MeanDifficulty float64 `json:"mean_difficulty"`
}

// Patterns holds derived response-pattern signals.
type Patterns struct {
	ResponseTimeTrend string  `json:"response_time_trend"`
	AccuracyTrend     string  `json:"accuracy_trend"`
	DifficultyTrend   string  `json:"difficulty_trend"`
	ConsistencyScore  float64 `json:"consistency_score"`
}

// Report is the post-completion analysis of a session.
type Report struct {
	SessionID             string       `json:"session_id"`
	FinalAbility          float64      `json:"final_ability"`
	FinalSE               float64      `json:"final_se"`
	Percentile            float64      `json:"percentile"`
	Level                 string       `json:"level"`
	TopicScores           []TopicScore `json:"topic_scores"`
	Strengths             []string     `json:"strengths"`
	Weaknesses            []string     `json:"weaknesses"`
	RecommendedTopics     []string     `json:"recommended_topics"`
	RecommendedDifficulty float64      `json:"recommended_difficulty"`
	NextSteps             []string     `json:"next_steps"`
	TotalQuestions        int          `json:"total_questions"`
	CorrectAnswers        int          `json:"correct_answers"`
	Accuracy              float64      `json:"accuracy"`
	MeanDifficulty        float64      `json:"mean_difficulty"`
	Patterns              Patterns     `json:"patterns"`
	CreatedAt             time.Time    `json:"created_at"`
}

// ItemRepo manages items.
type ItemRepo interface {
	// Create inserts an item and increments its pool's item count.
	Create(ctx context.Context, it *Item) error

	// Get returns the item with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Item, error)

	// ListByPool returns the pool's items in insertion order, skipping
	// the ids in exclude.
	ListByPool(ctx context.Context, poolID string, exclude []string) ([]Item, error)

	// UpdateParams replaces the item's IRT parameters and level.
	UpdateParams(ctx context.Context, id string, p irt.Params) error

	// RecordServed stores the information value at which the item was served.
	RecordServed(ctx context.Context, id string, information float64) error

	// RecordAnswer atomically bumps usage and correct counters, folds
	// responseTime into the running mean and recomputes the exposure rate
	// against completedSessions.
	RecordAnswer(ctx context.Context, id string, correct bool, responseTime float64, completedSessions int) error
}

// PoolRepo manages pools.
type PoolRepo interface {
	Create(ctx context.Context, p *Pool) error
	Get(ctx context.Context, id string) (*Pool, error)
	// List returns pools of orgID, or all pools when orgID is empty.
	List(ctx context.Context, orgID string) ([]Pool, error)
	// Update writes name, description and active flag.
	Update(ctx context.Context, p *Pool) error
	// IncrementCompleted atomically bumps the completed-session counter.
	IncrementCompleted(ctx context.Context, id string) error
}

// SessionRepo manages sessions.
type SessionRepo interface {
	// Create inserts a session. It returns ErrConflict when the pool and
	// taker already have an in-progress session.
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// GetActive returns the in-progress session for (poolID, takerID), or
	// ErrNotFound.
	GetActive(ctx context.Context, poolID, takerID string) (*Session, error)
	// Update writes all mutable fields if s.Version matches the stored
	// version, then increments s.Version. A stale version yields ErrConflict.
	Update(ctx context.Context, s *Session) error
}

// ResponseRepo is the append-only response log.
type ResponseRepo interface {
	Append(ctx context.Context, r *Response) error
	// ListBySession returns responses ordered by question number.
	ListBySession(ctx context.Context, sessionID string) ([]Response, error)
	// ListByItem returns every response to itemID in answer order.
	ListByItem(ctx context.Context, itemID string) ([]Response, error)
}

// ReportRepo stores one report per session.
type ReportRepo interface {
	Get(ctx context.Context, sessionID string) (*Report, error)
	// Insert stores r unless a report for the session exists, and returns
	// the stored report either way.
	Insert(ctx context.Context, r *Report) (*Report, error)
}

// Repos groups the repositories the engine depends on.
type Repos interface {
	Items() ItemRepo
	Pools() PoolRepo
	Sessions() SessionRepo
	Responses() ResponseRepo
	Reports() ReportRepo

	// Atomic runs fn with repositories bound to a single transaction.
	Atomic(ctx context.Context, fn func(Repos) error) error
}
