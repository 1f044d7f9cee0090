package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/adaptest/internal/calibration"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/simulate"
	"github.com/abhisek/adaptest/internal/store"
)

var (
	primary = lipgloss.Color("#8B5CF6")
	accent  = lipgloss.Color("#14B8A6")
	good    = lipgloss.Color("#22C55E")
	bad     = lipgloss.Color("#F43F5E")
	dim     = lipgloss.Color("#94A3B8")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	labelStyle = lipgloss.NewStyle().Foreground(dim).Width(22)
	valueStyle = lipgloss.NewStyle().Bold(true)
	goodStyle  = lipgloss.NewStyle().Foreground(good)
	badStyle   = lipgloss.NewStyle().Foreground(bad)
	hintStyle  = lipgloss.NewStyle().Foreground(dim).Italic(true)
	cardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}

func rule(n int) string {
	return strings.Repeat("─", n)
}

func renderReport(w io.Writer, rep *store.Report) {
	lines := []string{
		titleStyle.Render("Session " + rep.SessionID),
		"",
		field("Ability", fmt.Sprintf("%.2f (SE %.2f)", rep.FinalAbility, rep.FinalSE)),
		field("Percentile", fmt.Sprintf("%.1f", rep.Percentile)),
		field("Level", rep.Level),
		field("Questions", fmt.Sprintf("%d answered, %d correct (%.0f%%)",
			rep.TotalQuestions, rep.CorrectAnswers, rep.Accuracy*100)),
		field("Mean difficulty", fmt.Sprintf("%.2f", rep.MeanDifficulty)),
		field("Next difficulty", fmt.Sprintf("%.2f", rep.RecommendedDifficulty)),
	}

	if len(rep.TopicScores) > 0 {
		lines = append(lines, "", titleStyle.Render("Topics"),
			fmt.Sprintf("%-20s  %5s  %7s  %8s  %10s", "Topic", "Items", "Correct", "Accuracy", "Difficulty"),
			rule(59))
		for _, ts := range rep.TopicScores {
			row := fmt.Sprintf("%-20s  %5d  %7d  %7.0f%%  %10.2f",
				ts.Topic, ts.Total, ts.Correct, ts.Accuracy*100, ts.MeanDifficulty)
			switch {
			case contains(rep.Strengths, ts.Topic):
				row = goodStyle.Render(row)
			case contains(rep.Weaknesses, ts.Topic):
				row = badStyle.Render(row)
			}
			lines = append(lines, row)
		}
	}

	p := rep.Patterns
	lines = append(lines, "", titleStyle.Render("Patterns"),
		field("Response time", p.ResponseTimeTrend),
		field("Accuracy", p.AccuracyTrend),
		field("Difficulty", p.DifficultyTrend),
		field("Consistency", fmt.Sprintf("%.2f", p.ConsistencyScore)),
	)

	if len(rep.NextSteps) > 0 {
		lines = append(lines, "", titleStyle.Render("Next steps"))
		for _, s := range rep.NextSteps {
			lines = append(lines, "  • "+s)
		}
	}

	fmt.Fprintln(w, cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func renderStats(w io.Writer, poolID string, st simulate.Stats) {
	lines := []string{
		titleStyle.Render("Simulation on pool " + poolID),
		"",
		field("Examinees", st.N),
		field("Bias", fmt.Sprintf("%+.3f", st.Bias)),
		field("RMSE", fmt.Sprintf("%.3f", st.RMSE)),
		field("Mean questions", fmt.Sprintf("%.1f", st.MeanAnswered)),
		field("Mean SE", fmt.Sprintf("%.3f", st.MeanSE)),
	}
	reasons := make([]string, 0, len(st.StopReasons))
	for r := range st.StopReasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		lines = append(lines, field("Stopped: "+r, st.StopReasons[session.StopReason(r)]))
	}
	fmt.Fprintln(w, cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func renderCalibration(w io.Writer, results []calibration.Result, dryRun bool) {
	fmt.Fprintf(w, "%-36s  %-22s  %9s  %-20s  %s\n", "Item", "Status", "Responses", "Before (a, b, c)", "After (a, b, c)")
	fmt.Fprintln(w, rule(118))
	for _, r := range results {
		after := "-"
		status := string(r.Status)
		if r.Status == calibration.StatusCalibrated {
			after = fmt.Sprintf("%.2f, %.2f, %.2f", r.Params.A, r.Params.B, r.Params.C)
			status = goodStyle.Render(fmt.Sprintf("%-22s", status))
		} else {
			status = hintStyle.Render(fmt.Sprintf("%-22s", status))
		}
		fmt.Fprintf(w, "%-36s  %s  %9d  %-20s  %s\n", r.ItemID, status, r.Responses,
			fmt.Sprintf("%.2f, %.2f, %.2f", r.Previous.A, r.Previous.B, r.Previous.C), after)
	}

	sum := calibration.Summary(results)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d calibrated, %d insufficient data, %d insufficient variation\n",
		sum[calibration.StatusCalibrated], sum[calibration.StatusInsufficientData],
		sum[calibration.StatusInsufficientVariation])
	if dryRun {
		fmt.Fprintln(w, hintStyle.Render("Dry run: no parameters were written."))
	}
}

func renderPools(w io.Writer, pools []store.Pool) {
	if len(pools) == 0 {
		fmt.Fprintln(w, "No pools found.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-24s  %-12s  %5s  %9s  %s\n", "ID", "Name", "Org", "Items", "Completed", "Active")
	fmt.Fprintln(w, rule(100))
	for _, p := range pools {
		active := goodStyle.Render("yes")
		if !p.Active {
			active = badStyle.Render("no")
		}
		fmt.Fprintf(w, "%-36s  %-24s  %-12s  %5d  %9d  %s\n",
			p.ID, truncate(p.Name, 24), truncate(p.OrgID, 12), p.ItemCount, p.CompletedSessions, active)
	}
}

func renderItems(w io.Writer, items []store.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-15s  %-14s  %6s  %5s  %5s  %-6s  %5s  %8s\n",
		"ID", "Type", "Topic", "b", "a", "c", "Level", "Used", "Exposure")
	fmt.Fprintln(w, rule(112))
	for _, it := range items {
		fmt.Fprintf(w, "%-36s  %-15s  %-14s  %6.2f  %5.2f  %5.2f  %-6s  %5d  %8.2f\n",
			it.ID, it.Type, truncate(it.Topic, 14), it.Difficulty, it.Discrimination, it.Guessing,
			it.Level, it.UsageCount, it.ExposureRate)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
