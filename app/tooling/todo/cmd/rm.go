package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a todo.",
	Args:  cobra.ExactArgs(1),
	RunE:  rmRun,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func rmRun(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *rowstore.Client) error {
		if err := client.Remove(ctx, tableName, args[0]); err != nil {
			if ephemeral {
				return fmt.Errorf("%w (rows are owned by the wallet, remove without --ephemeral)", err)
			}
			return err
		}
		fmt.Println("Removed:", args[0])

		rows, err := client.Refresh(ctx, tableName)
		if err != nil {
			return err
		}
		printRows(rows)

		printBalance(ctx, client)
		return nil
	})
}
