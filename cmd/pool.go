package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/store"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage item pools",
}

var poolCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty item pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		id, _ := cmd.Flags().GetString("id")
		org, _ := cmd.Flags().GetString("org")
		desc, _ := cmd.Flags().GetString("description")
		if id == "" {
			id = uuid.NewString()
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		p := &store.Pool{ID: id, Name: name, OrgID: org, Description: desc, Active: true}
		if err := st.Pools().Create(cmd.Context(), p); err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return nil
	},
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List item pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		org, _ := cmd.Flags().GetString("org")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		pools, err := st.Pools().List(cmd.Context(), org)
		if err != nil {
			return fmt.Errorf("list pools: %w", err)
		}
		renderPools(cmd.OutOrStdout(), pools)
		return nil
	},
}

func setPoolActive(active bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := st.Pools().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		p.Active = active
		if err := st.Pools().Update(cmd.Context(), p); err != nil {
			return fmt.Errorf("update pool: %w", err)
		}
		return nil
	}
}

var poolDeactivateCmd = &cobra.Command{
	Use:   "deactivate <pool-id>",
	Short: "Stop new sessions from starting on a pool",
	Args:  cobra.ExactArgs(1),
	RunE:  setPoolActive(false),
}

var poolActivateCmd = &cobra.Command{
	Use:   "activate <pool-id>",
	Short: "Allow new sessions on a pool again",
	Args:  cobra.ExactArgs(1),
	RunE:  setPoolActive(true),
}

func init() {
	poolCreateCmd.Flags().String("name", "", "Pool name")
	poolCreateCmd.Flags().String("id", "", "Pool id (default: random UUID)")
	poolCreateCmd.Flags().String("org", "", "Owning organization id")
	poolCreateCmd.Flags().String("description", "", "Pool description")
	_ = poolCreateCmd.MarkFlagRequired("name")

	poolListCmd.Flags().String("org", "", "Only list pools of this organization")

	poolCmd.AddCommand(poolCreateCmd, poolListCmd, poolDeactivateCmd, poolActivateCmd)
}
