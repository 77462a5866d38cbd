package client

import (
	"context"
	"fmt"
	"kwil-client/encoding"
	"kwil-client/models"
	"kwil-client/rpc"
	"kwil-client/transactions"
	"kwil-client/util/log"
)

type txOptions struct {
	nonce       uint64
	fee         string
	description string
	sync        bool
}

// TxOption configures a single transaction.
type TxOption func(*txOptions)

// WithNonce uses nonce instead of the account's next nonce.
func WithNonce(nonce uint64) TxOption {
	return func(o *txOptions) {
		o.nonce = nonce
	}
}

// WithFee uses fee instead of the node's estimate.
func WithFee(fee string) TxOption {
	return func(o *txOptions) {
		o.fee = fee
	}
}

// WithDescription sets the text shown to the signer.
func WithDescription(desc string) TxOption {
	return func(o *txOptions) {
		o.description = desc
	}
}

// WithSyncBroadcast makes the node check the transaction before answering.
func WithSyncBroadcast() TxOption {
	return func(o *txOptions) {
		o.sync = true
	}
}

// NewTx builds and signs a transaction: the fee is estimated, the nonce
// is the account's nonce + 1, then the hash is computed and signed.
func (c *Client) NewTx(ctx context.Context, payload transactions.Payload, opts ...TxOption) (*transactions.Transaction, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}

	o := new(txOptions)
	for _, opt := range opts {
		opt(o)
	}

	tx, err := transactions.CreateTransaction(payload, c.chainID)
	if err != nil {
		return nil, err
	}
	if err := tx.SetDescription(o.description); err != nil {
		return nil, err
	}

	fee := o.fee
	if fee == "" {
		if fee, err = c.rpc.EstimateCost(ctx, tx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCostEstimationFailed, err)
		}
	}
	if err := tx.SetFee(fee); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCostEstimationFailed, err)
	}

	nonce := o.nonce
	if nonce == 0 {
		if nonce, err = c.nextNonce(ctx); err != nil {
			return nil, err
		}
	}
	if err := tx.SetNonce(nonce); err != nil {
		return nil, err
	}

	if _, err := tx.GenerateHash(); err != nil {
		return nil, err
	}
	if err := tx.Sign(c.signer); err != nil {
		return nil, err
	}

	return tx, nil
}

func (c *Client) nextNonce(ctx context.Context) (uint64, error) {
	acc, err := c.rpc.GetAccount(ctx, c.signer.Identity())
	if err != nil {
		if rpc.IsNotFound(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("%w: %w", ErrAccountLookupFailed, err)
	}
	if acc.Nonce < 0 {
		return 0, fmt.Errorf("%w: negative nonce %d", ErrAccountLookupFailed, acc.Nonce)
	}
	return uint64(acc.Nonce) + 1, nil
}

// Broadcast submits a signed transaction and returns its hash.
func (c *Client) Broadcast(ctx context.Context, tx *transactions.Transaction, sync bool) (string, error) {
	hash, err := c.rpc.Broadcast(ctx, tx, sync)
	if err != nil {
		return "", err
	}
	if err := tx.MarkBroadcast(); err != nil {
		return "", err
	}

	log.Debugf("broadcast %s tx %s, nonce=%d", tx.Body.PayloadType, hash, tx.Body.Nonce)

	if c.journal != nil {
		if err := c.journal.RecordBroadcast(tx, hash); err != nil {
			log.Warnf("journal tx %s: %v", hash, err)
		}
	}
	return hash, nil
}

func (c *Client) submit(ctx context.Context, payload transactions.Payload, opts []TxOption) (string, error) {
	tx, err := c.NewTx(ctx, payload, opts...)
	if err != nil {
		return "", err
	}

	o := new(txOptions)
	for _, opt := range opts {
		opt(o)
	}
	return c.Broadcast(ctx, tx, o.sync)
}

// DeployDatabase deploys schema owned by the signer and returns the tx hash.
func (c *Client) DeployDatabase(ctx context.Context, s *models.Schema, opts ...TxOption) (string, error) {
	if c.signer == nil {
		return "", ErrNoSigner
	}

	deployed := *s
	deployed.Owner = c.signer.Identity()
	return c.submit(ctx, &transactions.DeploySchema{Schema: &deployed}, opts)
}

// DropDatabase drops the signer's database called name.
func (c *Client) DropDatabase(ctx context.Context, name string, opts ...TxOption) (string, error) {
	if c.signer == nil {
		return "", ErrNoSigner
	}
	return c.DropDatabaseID(ctx, GenerateDBID(name, c.signer.Identity()), opts...)
}

// DropDatabaseID drops the database with the given dbid.
func (c *Client) DropDatabaseID(ctx context.Context, dbid string, opts ...TxOption) (string, error) {
	hash, err := c.submit(ctx, &transactions.DropSchema{DBID: dbid}, opts)
	if err == nil && c.schemas != nil {
		c.schemas.Delete(dbid)
	}
	return hash, err
}

// Transfer sends amount, a base-10 integer, to the account to.
func (c *Client) Transfer(ctx context.Context, to []byte, amount string, opts ...TxOption) (string, error) {
	return c.submit(ctx, &transactions.Transfer{To: to, Amount: amount}, opts)
}

// ExecuteAction runs action once per input and returns the tx hash.
func (c *Client) ExecuteAction(ctx context.Context, dbid, action string, inputs []*ActionInput, opts ...TxOption) (string, error) {
	if len(inputs) == 0 {
		inputs = []*ActionInput{NewActionInput()}
	}

	args, err := c.encodeInputs(ctx, dbid, action, inputs)
	if err != nil {
		return "", err
	}

	return c.submit(ctx, &transactions.ActionExecution{
		DBID:      dbid,
		Action:    action,
		Arguments: args,
	}, opts)
}

// ExecuteSQL runs an ad-hoc statement. Parameter types are inferred from the values.
func (c *Client) ExecuteSQL(ctx context.Context, stmt string, params *ActionInput, opts ...TxOption) (string, error) {
	payload := &transactions.RawStatement{Statement: stmt}

	if params != nil {
		for _, name := range params.Names() {
			v, _ := params.Get(name)
			ev, err := encoding.EncodeValue(v)
			if err != nil {
				return "", fmt.Errorf("%w: %s: %w", ErrInvalidInput, name, err)
			}
			payload.Parameters = append(payload.Parameters, &transactions.NamedValue{Name: name, Value: ev})
		}
	}

	return c.submit(ctx, payload, opts)
}

// encodeInputs orders and encodes inputs by the parameters of the action.
// Action parameters are untyped so their types are inferred; procedure
// parameters are encoded as declared.
func (c *Client) encodeInputs(ctx context.Context, dbid, action string, inputs []*ActionInput) ([][]*encoding.EncodedValue, error) {
	s, err := c.GetSchema(ctx, dbid)
	if err != nil {
		return nil, err
	}

	var (
		params []string
		types  []*encoding.DataType
	)
	if a, ok := s.FindAction(action); ok {
		params = a.Parameters
		types = make([]*encoding.DataType, len(params))
	} else if p, ok := s.FindProcedure(action); ok {
		for _, param := range p.Parameters {
			params = append(params, param.Name)
			types = append(types, param.Type)
		}
	} else {
		return nil, fmt.Errorf("%w: %s in %s", ErrActionNotFound, action, dbid)
	}

	out := make([][]*encoding.EncodedValue, len(inputs))
	for i, input := range inputs {
		if input.Len() != len(params) {
			return nil, fmt.Errorf("%w: %s takes %d arguments %v, got %d %v",
				ErrInvalidInput, action, len(params), params, input.Len(), input.Names())
		}

		args := make([]*encoding.EncodedValue, len(params))
		for j, param := range params {
			v, ok := input.Get(param)
			if !ok {
				return nil, fmt.Errorf("%w: missing %s for %s", ErrInvalidInput, param, action)
			}

			var ev *encoding.EncodedValue
			if types[j] != nil {
				ev, err = encoding.EncodeValueAs(v, *types[j])
			} else {
				ev, err = encoding.EncodeValue(v)
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidInput, param, err)
			}
			args[j] = ev
		}
		out[i] = args
	}

	return out, nil
}
