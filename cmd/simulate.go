package cmd

import (
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/metrics"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/simulate"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <pool-id>",
	Short: "Run adaptive sessions with simulated examinees",
	Long: `Draw examinees with abilities from a normal distribution, test each one
on the pool with the configured session settings, and report how closely
the final estimates track the true abilities. Sessions are stored like real
ones, so item usage and exposure accumulate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("examinees")
		mean, _ := cmd.Flags().GetFloat64("mean")
		sd, _ := cmd.Flags().GetFloat64("sd")
		seed, _ := cmd.Flags().GetUint64("seed")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		rawCfg, _ := cmd.Flags().GetString("session-config")
		showMetrics, _ := cmd.Flags().GetBool("metrics")

		patch, err := session.ParseConfigPatch([]byte(rawCfg))
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		m := metrics.New()
		engine, cleanup, err := newEngine(cmd.Context(), st, m)
		if err != nil {
			return err
		}
		defer cleanup()

		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		examinees := simulate.Population(n, mean, sd, rng)
		runner := simulate.NewRunner(engine,
			simulate.WithRand(rng),
			simulate.WithLogger(env.log),
			simulate.WithConcurrency(concurrency),
		)
		outcomes, err := runner.Run(cmd.Context(), args[0], patch, examinees)
		if err != nil {
			return err
		}

		renderStats(cmd.OutOrStdout(), args[0], simulate.Summarize(outcomes))
		if showMetrics {
			return m.WriteText(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().Int("examinees", 50, "Number of simulated examinees")
	simulateCmd.Flags().Float64("mean", 0, "Mean true ability")
	simulateCmd.Flags().Float64("sd", 1, "Standard deviation of true ability")
	simulateCmd.Flags().Uint64("seed", 1, "Random seed")
	simulateCmd.Flags().Int("concurrency", 1, "Examinees tested in parallel")
	simulateCmd.Flags().String("session-config", "", `Session settings as JSON, e.g. '{"max_questions": 15}'`)
	simulateCmd.Flags().Bool("metrics", false, "Print engine metrics in Prometheus text format")
}
