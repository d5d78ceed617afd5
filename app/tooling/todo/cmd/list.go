package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the todos.",
	RunE:  listRun,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listRun(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *rowstore.Client) error {
		rows, err := client.Refresh(ctx, tableName)
		if err != nil {
			return err
		}

		printRows(rows)
		return nil
	})
}

func printRows(rows []rowstore.Row) {
	if len(rows) == 0 {
		fmt.Println("Nothing to do.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tDONE\tTASK")
	for _, row := range rows {
		id := row.ID
		if row.Pending() {
			id += "*"
		}

		done := " "
		if row.Fields["done"] == "true" {
			done = "x"
		}

		fmt.Fprintf(w, "%s\t[%s]\t%s\n", id, done, row.Fields["task"])
	}
}
