// Command kwilc talks to a Kwil node from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"kwil-client/auth"
	"kwil-client/cache/schema"
	"kwil-client/client"
	"kwil-client/config"
	"kwil-client/db"
	"kwil-client/pkg/mysql"
	"kwil-client/rpc"
	"kwil-client/util/log"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	ConfigFile string
	Provider   string
	ChainID    string
	PrivateKey string
	SignerType string
	Gateway    bool
	Debug      bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "kwilc",
	Short: "Kwil database network client",
	Long: `kwilc builds, signs and submits Kwil transactions and read-only calls.

Settings come from ./config/config.yml (or --config), KWIL_* environment
variables and the flags below, in increasing order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadClient(flags.ConfigFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if flags.Debug || config.DebugMode() {
			log.Init(true, config.GetLogPath())
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "config file (default ./config/config.*)")
	pf.StringVar(&flags.Provider, "provider", "", "node or gateway url")
	pf.StringVar(&flags.ChainID, "chain-id", "", "chain id (asked from the node when empty)")
	pf.StringVar(&flags.PrivateKey, "private-key", "", "hex private key of the signer")
	pf.StringVar(&flags.SignerType, "signer-type", "", "secp256k1_ep, secp256k1 or ed25519")
	pf.BoolVar(&flags.Gateway, "gateway", false, "sign in to a KGW gateway before calls")
	pf.BoolVar(&flags.Debug, "debug", false, "log requests")

	rootCmd.AddCommand(
		pingCmd,
		chainInfoCmd,
		schemaCmd,
		accountCmd,
		databasesCmd,
		queryCmd,
		callCmd,
		txCmd,
		dbidCmd,
		executeCmd,
		sqlCmd,
		transferCmd,
		deployCmd,
		dropCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func pick(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func newSigner() (auth.Signer, error) {
	key := pick(flags.PrivateKey, config.GetPrivateKey())
	if key == "" {
		return nil, nil
	}
	return auth.NewSigner(pick(flags.SignerType, config.GetSignerType()), key)
}

// newClient connects to the configured node. The schema cache and the
// journal database live as long as the command.
func newClient(ctx context.Context) (*client.Client, func(), error) {
	signer, err := newSigner()
	if err != nil {
		return nil, nil, err
	}

	cache, err := schema.New(config.GetSchemaCacheTTL())
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		cache.Close()
		mysql.Close()
	}

	opts := []client.Option{
		client.WithChainID(pick(flags.ChainID, config.GetChainID())),
		client.WithSchemaCache(cache),
		client.WithRPCOptions(rpc.WithTimeout(config.GetTimeout())),
	}
	if signer != nil {
		opts = append(opts, client.WithSigner(signer))
	}

	if config.JournalEnabled() {
		if err := mysql.Open(config.GetDbConnStr()); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("open journal %s: %w", config.GetDBInfo(), err)
		}
		if err := db.CreateJournalTable(); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("create journal table: %w", err)
		}
		opts = append(opts, client.WithJournal(db.Journal{}))
	}

	c, err := client.New(ctx, pick(flags.Provider, config.GetProvider()), opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	if (flags.Gateway || config.GatewayMode()) && signer != nil {
		if err := c.Login(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("gateway login: %w", err)
		}
	}

	return c, closeFn, nil
}

// withClient runs f with a connected client.
func withClient(cmd *cobra.Command, f func(ctx context.Context, c *client.Client) (interface{}, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, closeFn, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := f(ctx, c)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v interface{}) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseInput turns name=value pairs into an action input. Values are
// kept as strings; the schema decides how they are encoded.
func parseInput(pairs []string) (*client.ActionInput, error) {
	in := client.NewActionInput()

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: expected name=value, got %q", client.ErrInvalidInput, pair)
		}

		if value == "null" {
			in.Put(name, nil)
		} else {
			in.Put(name, value)
		}
	}

	return in, nil
}
