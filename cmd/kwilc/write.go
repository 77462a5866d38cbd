package main

import (
	"context"
	"encoding/json"
	"fmt"
	"kwil-client/client"
	"kwil-client/models"
	"kwil-client/rpc"
	"kwil-client/transactions"
	"os"

	"github.com/spf13/cobra"
)

type txFlags struct {
	Fee         string
	Nonce       uint64
	Description string
	Sync        bool
	Wait        bool
}

var (
	execParams []string
	deployFile string
)

// txResult is printed for submitted transactions.
type txResult struct {
	Hash   string               `json:"tx_hash"`
	Status *rpc.TxQueryResponse `json:"status,omitempty"`
}

func addTxFlags(cmd *cobra.Command) *txFlags {
	f := new(txFlags)
	cmd.Flags().StringVar(&f.Fee, "fee", "", "fee, estimated by the node when empty")
	cmd.Flags().Uint64Var(&f.Nonce, "nonce", 0, "nonce, the account's next one when 0")
	cmd.Flags().StringVar(&f.Description, "description", "", "text shown to the signer")
	cmd.Flags().BoolVar(&f.Sync, "sync", false, "wait for the node to check the transaction")
	cmd.Flags().BoolVar(&f.Wait, "wait", false, "wait until the transaction is in a block")
	return f
}

func (f *txFlags) options() []client.TxOption {
	var opts []client.TxOption
	if f.Fee != "" {
		opts = append(opts, client.WithFee(f.Fee))
	}
	if f.Nonce != 0 {
		opts = append(opts, client.WithNonce(f.Nonce))
	}
	if f.Description != "" {
		opts = append(opts, client.WithDescription(f.Description))
	}
	if f.Sync {
		opts = append(opts, client.WithSyncBroadcast())
	}
	return opts
}

// submit runs a transaction command and optionally waits for its block.
func submit(cmd *cobra.Command, f *txFlags, send func(ctx context.Context, c *client.Client, opts []client.TxOption) (string, error)) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
		hash, err := send(ctx, c, f.options())
		if err != nil {
			return nil, err
		}

		res := &txResult{Hash: hash}
		if f.Wait {
			if res.Status, err = c.WaitTx(ctx, hash, 0); err != nil {
				return nil, err
			}
		}
		return res, nil
	})
}

var executeCmd = &cobra.Command{
	Use:     "execute <dbid> <action>",
	Short:   "Execute an action",
	Example: "  kwilc execute x1234... create_post --param id=1 --param title=hello",
	Args:    cobra.ExactArgs(2),
}

var sqlCmd = &cobra.Command{
	Use:   "sql <statement>",
	Short: "Execute an ad-hoc SQL statement",
	Args:  cobra.ExactArgs(1),
}

var transferCmd = &cobra.Command{
	Use:   "transfer <to> <amount>",
	Short: "Transfer tokens to an account",
	Args:  cobra.ExactArgs(2),
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a database from a JSON schema",
	Args:  cobra.NoArgs,
}

var dropCmd = &cobra.Command{
	Use:   "drop <name|dbid>",
	Short: "Drop one of the signer's databases",
	Args:  cobra.ExactArgs(1),
}

func init() {
	execFlags := addTxFlags(executeCmd)
	executeCmd.Flags().StringArrayVar(&execParams, "param", nil, "argument as name=value, repeatable")
	executeCmd.RunE = func(cmd *cobra.Command, args []string) error {
		input, err := parseInput(execParams)
		if err != nil {
			return err
		}
		return submit(cmd, execFlags, func(ctx context.Context, c *client.Client, opts []client.TxOption) (string, error) {
			return c.ExecuteAction(ctx, args[0], args[1], []*client.ActionInput{input}, opts...)
		})
	}

	sqlFlags := addTxFlags(sqlCmd)
	sqlParams := sqlCmd.Flags().StringArray("param", nil, "parameter as name=value, repeatable")
	sqlCmd.RunE = func(cmd *cobra.Command, args []string) error {
		input, err := parseInput(*sqlParams)
		if err != nil {
			return err
		}
		return submit(cmd, sqlFlags, func(ctx context.Context, c *client.Client, opts []client.TxOption) (string, error) {
			return c.ExecuteSQL(ctx, args[0], input, opts...)
		})
	}

	transferFlags := addTxFlags(transferCmd)
	transferCmd.RunE = func(cmd *cobra.Command, args []string) error {
		to, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		return submit(cmd, transferFlags, func(ctx context.Context, c *client.Client, opts []client.TxOption) (string, error) {
			return c.Transfer(ctx, to, args[1], opts...)
		})
	}

	deployFlags := addTxFlags(deployCmd)
	deployCmd.Flags().StringVarP(&deployFile, "file", "f", "", "JSON schema file")
	deployCmd.MarkFlagRequired("file")
	deployCmd.RunE = func(cmd *cobra.Command, args []string) error {
		s, err := readSchema(deployFile)
		if err != nil {
			return err
		}
		return submit(cmd, deployFlags, func(ctx context.Context, c *client.Client, opts []client.TxOption) (string, error) {
			return c.DeployDatabase(ctx, s, opts...)
		})
	}

	dropFlags := addTxFlags(dropCmd)
	dropCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return submit(cmd, dropFlags, func(ctx context.Context, c *client.Client, opts []client.TxOption) (string, error) {
			if transactions.ValidDBID(args[0]) {
				return c.DropDatabaseID(ctx, args[0], opts...)
			}
			return c.DropDatabase(ctx, args[0], opts...)
		})
	}
}

func readSchema(file string) (*models.Schema, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	s := new(models.Schema)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", file, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("schema %s has no name", file)
	}
	return s, nil
}
