// Package report builds the post-completion analysis of an adaptive session.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

// Topic classification thresholds on per-topic accuracy.
const (
	StrengthThreshold = 0.8
	WeaknessThreshold = 0.5
)

// MaxRecommendedTopics caps the recommended-topic list.
const MaxRecommendedTopics = 3

// DifficultyStep is added to the final ability to suggest the next difficulty.
const DifficultyStep = 0.5

// DefaultTopic groups responses to items without a topic.
const DefaultTopic = "general"

// Performance levels.
const (
	LevelAdvanced   = "Advanced"
	LevelProficient = "Proficient"
	LevelBasic      = "Basic"
	LevelBelowBasic = "Below Basic"
)

// Generate builds the report for a finished session from its responses,
// which must be ordered by question number.
func Generate(sess *store.Session, responses []store.Response, now time.Time) *store.Report {
	ability, se := sess.Ability, sess.StandardError
	if sess.FinalAbility != nil {
		ability = *sess.FinalAbility
	}
	if sess.FinalSE != nil {
		se = *sess.FinalSE
	}

	rep := &store.Report{
		SessionID:             sess.ID,
		FinalAbility:          ability,
		FinalSE:               se,
		Percentile:            Percentile(ability),
		TotalQuestions:        len(responses),
		RecommendedDifficulty: irt.Clamp(ability + DifficultyStep),
		CreatedAt:             now,
	}
	rep.Level = LevelFor(rep.Percentile)

	var sumB float64
	for _, r := range responses {
		if r.Correct {
			rep.CorrectAnswers++
		}
		sumB += r.Difficulty
	}
	if n := len(responses); n > 0 {
		rep.Accuracy = float64(rep.CorrectAnswers) / float64(n)
		rep.MeanDifficulty = sumB / float64(n)
	}

	rep.TopicScores = topicScores(responses)
	rep.Strengths, rep.Weaknesses = classify(rep.TopicScores)
	rep.RecommendedTopics = recommend(rep.TopicScores)
	rep.NextSteps = nextSteps(rep.Level, rep.RecommendedTopics, rep.RecommendedDifficulty)
	rep.Patterns = Analyze(responses, ability)
	return rep
}

// Percentile converts an ability on the standard-normal scale to a
// percentile rounded to one decimal.
func Percentile(ability float64) float64 {
	cdf := 0.5 * (1 + math.Erf(ability/math.Sqrt2))
	return math.Round(cdf*1000) / 10
}

// LevelFor maps a percentile to a performance level.
func LevelFor(percentile float64) string {
	switch {
	case percentile >= 90:
		return LevelAdvanced
	case percentile >= 70:
		return LevelProficient
	case percentile >= 30:
		return LevelBasic
	}
	return LevelBelowBasic
}

func topicScores(responses []store.Response) []store.TopicScore {
	byTopic := make(map[string]*store.TopicScore)
	sums := make(map[string]float64)
	for _, r := range responses {
		topic := r.Topic
		if topic == "" {
			topic = DefaultTopic
		}
		ts, ok := byTopic[topic]
		if !ok {
			ts = &store.TopicScore{Topic: topic}
			byTopic[topic] = ts
		}
		ts.Total++
		if r.Correct {
			ts.Correct++
		}
		sums[topic] += r.Difficulty
	}

	out := make([]store.TopicScore, 0, len(byTopic))
	for topic, ts := range byTopic {
		ts.Accuracy = float64(ts.Correct) / float64(ts.Total)
		ts.MeanDifficulty = sums[topic] / float64(ts.Total)
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

func classify(scores []store.TopicScore) (strengths, weaknesses []string) {
	strengths, weaknesses = []string{}, []string{}
	for _, ts := range scores {
		switch {
		case ts.Accuracy >= StrengthThreshold:
			strengths = append(strengths, ts.Topic)
		case ts.Accuracy < WeaknessThreshold:
			weaknesses = append(weaknesses, ts.Topic)
		}
	}
	return strengths, weaknesses
}

// recommend returns up to MaxRecommendedTopics weak topics, weakest first.
func recommend(scores []store.TopicScore) []string {
	var weak []store.TopicScore
	for _, ts := range scores {
		if ts.Accuracy < WeaknessThreshold {
			weak = append(weak, ts)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		if weak[i].Accuracy != weak[j].Accuracy {
			return weak[i].Accuracy < weak[j].Accuracy
		}
		return weak[i].Topic < weak[j].Topic
	})

	out := []string{}
	for i := 0; i < len(weak) && i < MaxRecommendedTopics; i++ {
		out = append(out, weak[i].Topic)
	}
	return out
}

func nextSteps(level string, topics []string, difficulty float64) []string {
	var steps []string
	switch level {
	case LevelAdvanced:
		steps = append(steps,
			"Excellent performance. Move on to advanced material and open-ended problems.",
			"Consider mentoring peers to consolidate your understanding.")
	case LevelProficient:
		steps = append(steps,
			"Solid performance. Keep practicing with progressively harder items.",
			"Review the occasional mistakes to close remaining gaps.")
	case LevelBasic:
		steps = append(steps,
			"You have a working foundation. Focus on core concepts before moving ahead.",
			"Practice regularly with items slightly above your current level.")
	default:
		steps = append(steps,
			"Start with the fundamentals and work through guided examples.",
			"Short, frequent practice sessions will help build confidence.")
	}
	for _, t := range topics {
		steps = append(steps, fmt.Sprintf("Spend extra time on %s.", t))
	}
	steps = append(steps, fmt.Sprintf("Aim for practice items around difficulty %.1f.", difficulty))
	return steps
}
