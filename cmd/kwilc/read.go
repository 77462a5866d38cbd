package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"kwil-client/client"
	"strings"

	"github.com/spf13/cobra"
)

var (
	callParams []string
	ownerHex   string
	waitTx     bool
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the node is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.Ping(ctx)
		})
	},
}

var chainInfoCmd = &cobra.Command{
	Use:   "chain-info",
	Short: "Show the chain id and the latest block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.ChainInfo(ctx)
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema <dbid>",
	Short: "Show the schema of a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.GetSchema(ctx, args[0])
		})
	},
}

var accountCmd = &cobra.Command{
	Use:   "account [identifier]",
	Short: "Show the balance and nonce of an account, the signer's by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id []byte
		if len(args) == 1 {
			var err error
			if id, err = parseIdentity(args[0]); err != nil {
				return err
			}
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.GetAccount(ctx, id)
		})
	},
}

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List the databases of an owner, the signer by default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var owner []byte
		if ownerHex != "" {
			var err error
			if owner, err = parseIdentity(ownerHex); err != nil {
				return err
			}
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.ListDatabases(ctx, owner)
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <dbid> <sql>",
	Short: "Run a read-only SQL query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.Query(ctx, args[0], args[1])
		})
	},
}

var callCmd = &cobra.Command{
	Use:     "call <dbid> <action>",
	Short:   "Call a read-only action or procedure",
	Example: "  kwilc call x1234... get_post --param id=1",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := parseInput(callParams)
		if err != nil {
			return err
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.CallAction(ctx, args[0], args[1], input)
		})
	},
}

var txCmd = &cobra.Command{
	Use:   "tx <hash>",
	Short: "Show the status of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
			if waitTx {
				return c.WaitTx(ctx, args[0], 0)
			}
			return c.TxQuery(ctx, args[0])
		})
	},
}

var dbidCmd = &cobra.Command{
	Use:   "dbid <name> [owner]",
	Short: "Print the dbid of a database name, owned by the signer by default",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var owner []byte

		if len(args) == 2 {
			var err error
			if owner, err = parseIdentity(args[1]); err != nil {
				return err
			}
		} else {
			signer, err := newSigner()
			if err != nil {
				return err
			}
			if signer == nil {
				return client.ErrNoSigner
			}
			owner = signer.Identity()
		}

		return printJSON(cmd.OutOrStdout(), client.GenerateDBID(args[0], owner))
	},
}

func init() {
	callCmd.Flags().StringArrayVar(&callParams, "param", nil, "argument as name=value, repeatable")
	databasesCmd.Flags().StringVar(&ownerHex, "owner", "", "hex identifier of the owner")
	txCmd.Flags().BoolVar(&waitTx, "wait", false, "wait until the transaction is in a block")
}

// parseIdentity decodes a hex identifier, with or without 0x.
func parseIdentity(s string) ([]byte, error) {
	id, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil || len(id) == 0 {
		return nil, fmt.Errorf("%w: identifier %q is not hex", client.ErrInvalidInput, s)
	}
	return id, nil
}
