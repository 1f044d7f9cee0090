package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/bank"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage pool items",
}

var itemImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an item bank (JSON); use - for stdin",
	Long: `Import an item bank document. Without --pool the document's "pool"
object is created as a new pool; with --pool the items are added to an
existing pool. The import is all-or-nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		poolID, _ := cmd.Flags().GetString("pool")

		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read item bank: %w", err)
		}
		doc, err := bank.Parse(data)
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := bank.Import(cmd.Context(), st, poolID, doc)
		if err != nil {
			return err
		}
		verb := "Added"
		if res.PoolCreated {
			verb = "Created pool with"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d items: %s\n", verb, len(res.Items), res.PoolID)
		return nil
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list <pool-id>",
	Short: "List the items of a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := st.Pools().Get(cmd.Context(), args[0]); err != nil {
			return err
		}
		items, err := st.Items().ListByPool(cmd.Context(), args[0], nil)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		renderItems(cmd.OutOrStdout(), items)
		return nil
	},
}

func init() {
	itemImportCmd.Flags().String("pool", "", "Add items to this existing pool")
	itemCmd.AddCommand(itemImportCmd, itemListCmd)
}
