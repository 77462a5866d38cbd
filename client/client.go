package client

import (
	"context"
	"errors"
	"fmt"
	"kwil-client/auth"
	"kwil-client/cache/schema"
	"kwil-client/models"
	"kwil-client/rpc"
	"kwil-client/transactions"
	"kwil-client/util/log"
	"time"
)

const defaultPollInterval = time.Second

// Journal records broadcast transactions, e.g. for a watcher to follow up.
type Journal interface {
	RecordBroadcast(tx *transactions.Transaction, txHash string) error
}

// Client builds, signs and submits transactions and calls to a node.
type Client struct {
	rpc          *rpc.Client
	rpcOpts      []rpc.Option
	signer       auth.Signer
	chainID      string
	session      *rpc.Session
	schemas      *schema.Cache
	journal      Journal
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSigner sets the signer of transactions, calls and gateway logins.
func WithSigner(signer auth.Signer) Option {
	return func(c *Client) {
		c.signer = signer
	}
}

// WithChainID sets the chain id. Without it the node is asked.
func WithChainID(chainID string) Option {
	return func(c *Client) {
		c.chainID = chainID
	}
}

// WithSession shares a gateway session between clients.
func WithSession(sess *rpc.Session) Option {
	return func(c *Client) {
		c.session = sess
	}
}

// WithSchemaCache caches schemas fetched by GetSchema.
func WithSchemaCache(cache *schema.Cache) Option {
	return func(c *Client) {
		c.schemas = cache
	}
}

// WithJournal records every broadcast transaction.
func WithJournal(journal Journal) Option {
	return func(c *Client) {
		c.journal = journal
	}
}

// WithPollInterval sets how often WaitTx polls.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

// WithRPCOptions configures the transport created by New.
func WithRPCOptions(opts ...rpc.Option) Option {
	return func(c *Client) {
		c.rpcOpts = append(c.rpcOpts, opts...)
	}
}

// New creates a client for the node at provider.
func New(ctx context.Context, provider string, opts ...Option) (*Client, error) {
	c := newClient(opts)
	if err := c.init(ctx, rpc.NewClient(provider, c.rpcOpts...)); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromRPC creates a client over an existing transport.
func NewFromRPC(ctx context.Context, rpcClient *rpc.Client, opts ...Option) (*Client, error) {
	c := newClient(opts)
	if err := c.init(ctx, rpcClient); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(opts []Option) *Client {
	c := &Client{pollInterval: defaultPollInterval}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		c.session = new(rpc.Session)
	}
	return c
}

func (c *Client) init(ctx context.Context, rpcClient *rpc.Client) error {
	c.rpc = rpcClient
	if c.chainID != "" {
		return nil
	}

	info, err := c.rpc.ChainInfo(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	c.chainID = info.ChainID
	log.Debugf("connected to %s, chain id=%s, height=%d", c.rpc.Provider(), info.ChainID, info.Height)
	return nil
}

// ChainID returns the chain id transactions are signed for.
func (c *Client) ChainID() string {
	return c.chainID
}

// Signer returns the configured signer, or nil.
func (c *Client) Signer() auth.Signer {
	return c.signer
}

// Session returns the gateway session.
func (c *Client) Session() *rpc.Session {
	return c.session
}

// RPC returns the underlying transport.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// Ping checks the node is up.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return c.rpc.Ping(ctx)
}

// ChainInfo returns the node's chain id and latest block.
func (c *Client) ChainInfo(ctx context.Context) (*rpc.ChainInfo, error) {
	return c.rpc.ChainInfo(ctx)
}

// GetSchema returns a database schema, from the cache when one is configured.
func (c *Client) GetSchema(ctx context.Context, dbid string) (*models.Schema, error) {
	if c.schemas != nil {
		if s, ok := c.schemas.Get(dbid); ok {
			return s, nil
		}
	}

	s, err := c.rpc.GetSchema(ctx, dbid)
	if err != nil {
		if rpc.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, dbid)
		}
		return nil, err
	}

	if c.schemas != nil {
		if err := c.schemas.Set(dbid, s); err != nil {
			log.Warnf("cache schema of %s: %v", dbid, err)
		}
	}
	return s, nil
}

// GetAccount returns an account. A nil identifier selects the signer's account.
// Accounts the node has never seen have a zero balance and nonce.
func (c *Client) GetAccount(ctx context.Context, identifier []byte) (*rpc.Account, error) {
	if identifier == nil {
		if c.signer == nil {
			return nil, ErrNoSigner
		}
		identifier = c.signer.Identity()
	}

	acc, err := c.rpc.GetAccount(ctx, identifier)
	if err != nil {
		if rpc.IsNotFound(err) {
			return &rpc.Account{Identifier: identifier, Balance: "0"}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrAccountLookupFailed, err)
	}
	return acc, nil
}

// ListDatabases lists the databases of owner, or of the signer if owner is nil.
func (c *Client) ListDatabases(ctx context.Context, owner []byte) ([]*rpc.DatasetInfo, error) {
	if owner == nil {
		if c.signer == nil {
			return nil, ErrNoSigner
		}
		owner = c.signer.Identity()
	}
	return c.rpc.ListDatabases(ctx, owner)
}

// Query runs a read-only SQL query.
func (c *Client) Query(ctx context.Context, dbid, query string) (rpc.Records, error) {
	return c.rpc.Query(ctx, dbid, query)
}

// TxQuery returns the status of a transaction.
func (c *Client) TxQuery(ctx context.Context, txHash string) (*rpc.TxQueryResponse, error) {
	return c.rpc.TxQuery(ctx, txHash)
}

// WaitTx polls until the transaction is included in a block or ctx is done.
// An interval of zero uses the client's poll interval.
func (c *Client) WaitTx(ctx context.Context, txHash string, interval time.Duration) (*rpc.TxQueryResponse, error) {
	if interval <= 0 {
		interval = c.pollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := c.rpc.TxQuery(ctx, txHash)
		switch {
		case err == nil && resp.Included():
			return resp, nil
		case err != nil && !rpc.IsNotFound(err):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Login signs in to the gateway in front of the node.
func (c *Client) Login(ctx context.Context) error {
	if c.signer == nil {
		return ErrNoSigner
	}
	return c.rpc.Login(ctx, c.signer, c.session)
}

// Logout ends the gateway session.
func (c *Client) Logout(ctx context.Context) error {
	return c.rpc.Logout(ctx, c.session)
}

// CallAction runs a read-only action or procedure. A call the gateway
// rejects for a missing or expired session is retried once after
// signing in again.
func (c *Client) CallAction(ctx context.Context, dbid, action string, input *ActionInput) (rpc.Records, error) {
	if input == nil {
		input = NewActionInput()
	}

	args, err := c.encodeInputs(ctx, dbid, action, []*ActionInput{input})
	if err != nil {
		return nil, err
	}

	msg, err := transactions.CreateCallMessage(&transactions.ActionCall{
		DBID:      dbid,
		Action:    action,
		Arguments: args[0],
	}, c.signer)
	if err != nil {
		return nil, err
	}

	records, err := c.rpc.Call(ctx, msg, c.session)
	if err == nil || !errors.Is(err, rpc.ErrAuthenticationRequired) || c.signer == nil {
		return records, err
	}

	log.Debugf("call %s.%s: gateway asks to authenticate, signing in", dbid, action)
	if err := c.rpc.Login(ctx, c.signer, c.session); err != nil {
		return nil, fmt.Errorf("authenticate for call: %w", err)
	}

	return c.rpc.Call(ctx, msg, c.session)
}
