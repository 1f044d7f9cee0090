package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/store"
)

func resp(topic string, b float64, correct bool) store.Response {
	return store.Response{Topic: topic, Difficulty: b, Discrimination: 1, Guessing: 0.2, Correct: correct, ResponseTime: 10}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		ability float64
		want    float64
	}{
		{0, 50},
		{1.5, 93.3},
		{-1, 15.9},
		{0.6, 72.6},
		{3, 99.9},
		{-3, 0.1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(tt.ability), 1e-9, "ability %v", tt.ability)
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		percentile float64
		want       string
	}{
		{99, LevelAdvanced},
		{90, LevelAdvanced},
		{89.9, LevelProficient},
		{70, LevelProficient},
		{69.9, LevelBasic},
		{30, LevelBasic},
		{29.9, LevelBelowBasic},
		{0, LevelBelowBasic},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.percentile); got != tt.want {
			t.Errorf("LevelFor(%v) = %q, want %q", tt.percentile, got, tt.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	final, se := 0.6, 0.31
	sess := &store.Session{ID: "s1", Ability: 0.6, FinalAbility: &final, FinalSE: &se}
	responses := []store.Response{
		resp("algebra", -1, true),
		resp("algebra", 0, true),
		resp("geometry", 0.5, false),
		resp("algebra", 0.5, true),
		resp("stats", 1, true),
		resp("geometry", 1, false),
		resp("algebra", 1, true),
		resp("", 1.5, false),
		resp("algebra", 1, false),
		resp("stats", 1.5, false),
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rep := Generate(sess, responses, now)

	assert.Equal(t, "s1", rep.SessionID)
	assert.Equal(t, 0.6, rep.FinalAbility)
	assert.Equal(t, 0.31, rep.FinalSE)
	assert.InDelta(t, 72.6, rep.Percentile, 1e-9)
	assert.Equal(t, LevelProficient, rep.Level)
	assert.Equal(t, 10, rep.TotalQuestions)
	assert.Equal(t, 5, rep.CorrectAnswers)
	assert.InDelta(t, 0.5, rep.Accuracy, 1e-12)
	assert.InDelta(t, 0.7, rep.MeanDifficulty, 1e-12)
	assert.InDelta(t, 1.1, rep.RecommendedDifficulty, 1e-12)
	assert.Equal(t, now, rep.CreatedAt)

	require.Len(t, rep.TopicScores, 4)
	assert.Equal(t, []string{"algebra", "general", "geometry", "stats"},
		[]string{rep.TopicScores[0].Topic, rep.TopicScores[1].Topic, rep.TopicScores[2].Topic, rep.TopicScores[3].Topic})
	alg := rep.TopicScores[0]
	assert.Equal(t, 5, alg.Total)
	assert.Equal(t, 4, alg.Correct)
	assert.InDelta(t, 0.8, alg.Accuracy, 1e-12)
	assert.InDelta(t, 0.3, alg.MeanDifficulty, 1e-12)

	assert.Equal(t, []string{"algebra"}, rep.Strengths)
	assert.Equal(t, []string{"general", "geometry"}, rep.Weaknesses)
	assert.Equal(t, []string{"general", "geometry"}, rep.RecommendedTopics)
	assert.Contains(t, rep.NextSteps, "Spend extra time on general.")
	assert.Contains(t, rep.NextSteps, "Spend extra time on geometry.")
	assert.Equal(t, TrendStable, rep.Patterns.ResponseTimeTrend)
}

func TestGenerateWithoutResponses(t *testing.T) {
	rep := Generate(&store.Session{ID: "s1", Ability: 3, StandardError: 1}, nil, time.Now())

	assert.Zero(t, rep.Accuracy)
	assert.Zero(t, rep.MeanDifficulty)
	assert.Equal(t, 3.0, rep.RecommendedDifficulty, "clamped to the ability range")
	assert.Equal(t, LevelAdvanced, rep.Level)
	assert.Empty(t, rep.TopicScores)
	assert.NotNil(t, rep.Strengths)
	assert.NotNil(t, rep.RecommendedTopics)
	assert.Equal(t, TrendInsufficient, rep.Patterns.AccuracyTrend)
	assert.Equal(t, 1.0, rep.Patterns.ConsistencyScore)
}

func TestRecommendCapsAtThree(t *testing.T) {
	scores := []store.TopicScore{
		{Topic: "d", Accuracy: 0.1},
		{Topic: "a", Accuracy: 0.4},
		{Topic: "c", Accuracy: 0.1},
		{Topic: "b", Accuracy: 0.0},
		{Topic: "e", Accuracy: 0.9},
	}
	assert.Equal(t, []string{"b", "c", "d"}, recommend(scores))
}

func TestNextStepsByLevel(t *testing.T) {
	for _, lvl := range []string{LevelAdvanced, LevelProficient, LevelBasic, LevelBelowBasic} {
		steps := nextSteps(lvl, nil, 0.5)
		assert.Len(t, steps, 3, lvl)
		assert.Equal(t, "Aim for practice items around difficulty 0.5.", steps[2])
	}
}
