// Package cmd contains the todo app commands.
package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardanlabs/todochain/foundation/logger"
	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/ardanlabs/todochain/foundation/rowstore/chain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"
)

var (
	url         string
	accountName string
	accountPath string
	tableName   string
	ephemeral   bool
	policyName  string
	timeout     time.Duration
	verbose     bool
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Path to the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&tableName, "table", "t", "todo", "Table holding the todos.")
	rootCmd.PersistentFlags().BoolVarP(&ephemeral, "ephemeral", "e", false, "Sign writes with a throwaway key, rows stay owned by the wallet.")
	rootCmd.PersistentFlags().StringVar(&policyName, "policy", "pull", "Insert policy, pull or optimistic.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Deadline for each command.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log client events to stderr.")
}

var rootCmd = &cobra.Command{
	Use:          "todo",
	Short:        "Your todo list on a ledger",
	SilenceUsage: true,
}

// Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================

func getPrivateKeyPath() string {
	name := accountName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}

func loadKey() (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return nil, fmt.Errorf("loading wallet key: %w", err)
	}
	return privateKey, nil
}

// connect constructs a client and opens a session with the node.
func connect(ctx context.Context) (*rowstore.Client, error) {
	policy, err := rowstore.ParseInsertPolicy(policyName)
	if err != nil {
		return nil, err
	}

	privateKey, err := loadKey()
	if err != nil {
		return nil, err
	}

	ev := func(v string, args ...any) {}
	if verbose {
		log, err := logger.New("TODO", "stderr")
		if err != nil {
			return nil, err
		}
		ev = func(v string, args ...any) {
			log.Infow(fmt.Sprintf(v, args...))
		}
	}

	client := rowstore.New(rowstore.Config{
		Connector: chain.New(chain.Config{EvHandler: ev}),
		Policy:    policy,
		EvHandler: ev,
	})

	cred := rowstore.Credentials{
		Key:       privateKey,
		Ephemeral: ephemeral,
	}

	if err := client.Connect(ctx, url, cred); err != nil {
		return nil, err
	}

	return client, nil
}

// withClient runs fn inside the command deadline against a connected client.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client *rowstore.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	return fn(ctx, client)
}

// printBalance shows the relay balance. A failure is reported but never
// fails the command.
func printBalance(ctx context.Context, client *rowstore.Client) {
	bal, err := client.Balance(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "balance unavailable:", err)
		return
	}

	fmt.Println("Relay balance:", formatEther(bal), "ETH")
}

// formatEther renders a wei amount in ether.
func formatEther(wei *big.Int) string {
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetInt64(params.Ether))
	return eth.Text('f', 6)
}
