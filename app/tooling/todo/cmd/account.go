package cmd

import (
	"fmt"

	"github.com/ardanlabs/todochain/foundation/rowdb"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print account for the specific wallet",
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	privateKey, err := loadKey()
	if err != nil {
		return err
	}

	fmt.Println(rowdb.PublicKeyToAccountID(privateKey.PublicKey))
	return nil
}
