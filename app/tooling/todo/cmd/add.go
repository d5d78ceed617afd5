package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/spf13/cobra"
)

var doneColumn bool

var addCmd = &cobra.Command{
	Use:   "add <task>",
	Short: "Add a todo.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  addRun,
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolVarP(&doneColumn, "done-column", "d", false, "Store a done column set to false.")
}

func addRun(cmd *cobra.Command, args []string) error {
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		fmt.Println("Empty task, nothing added.")
		return nil
	}

	return withClient(cmd, func(ctx context.Context, client *rowstore.Client) error {
		fields := rowstore.Fields{"task": task}
		if doneColumn {
			fields["done"] = "false"
		}

		id, err := client.Insert(ctx, tableName, fields)
		if err != nil {
			return err
		}
		fmt.Println("Added:", id)

		rows, err := client.Refresh(ctx, tableName)
		if err != nil {
			return err
		}
		printRows(rows)

		printBalance(ctx, client)
		return nil
	})
}
