package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Print the report of a completed session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		engine, cleanup, err := newEngine(cmd.Context(), st, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		rep, err := engine.Report(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return nil
		}
		renderReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "Print the report as JSON")
}
