package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the relay balance paying for writes.",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *rowstore.Client) error {
		account, err := client.Account()
		if err != nil {
			return err
		}
		fmt.Println("For Account:", account)

		bal, err := client.Balance(ctx)
		if err != nil {
			return err
		}

		fmt.Println(formatEther(bal), "ETH")
		return nil
	})
}
