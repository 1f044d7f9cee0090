package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/calibration"
	"github.com/abhisek/adaptest/internal/metrics"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <pool-id>",
	Short: "Re-estimate item parameters from recorded responses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, _ := cmd.Flags().GetString("item")
		dryRun := env.cfg.Calibration.DryRun
		if cmd.Flags().Changed("dry-run") {
			dryRun, _ = cmd.Flags().GetBool("dry-run")
		}
		concurrency := env.cfg.Calibration.Concurrency
		if cmd.Flags().Changed("concurrency") {
			concurrency, _ = cmd.Flags().GetInt("concurrency")
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := calibration.NewService(st,
			calibration.WithLogger(env.log),
			calibration.WithMetrics(metrics.New()),
			calibration.WithConcurrency(concurrency),
			calibration.WithDryRun(dryRun),
		)

		var results []calibration.Result
		if itemID != "" {
			it, err := st.Items().Get(cmd.Context(), itemID)
			if err != nil {
				return err
			}
			if it.PoolID != args[0] {
				return fmt.Errorf("item %s belongs to pool %s, not %s", itemID, it.PoolID, args[0])
			}
			res, err := svc.CalibrateItem(cmd.Context(), itemID)
			if err != nil {
				return err
			}
			results = []calibration.Result{res}
		} else {
			results, err = svc.CalibratePool(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}
		renderCalibration(cmd.OutOrStdout(), results, dryRun)
		return nil
	},
}

func init() {
	calibrateCmd.Flags().String("item", "", "Calibrate only this item")
	calibrateCmd.Flags().Bool("dry-run", false, "Compute parameters without saving them")
	calibrateCmd.Flags().Int("concurrency", calibration.DefaultConcurrency, "Items calibrated in parallel")
}
