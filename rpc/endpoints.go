package rpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"kwil-client/models"
	"kwil-client/transactions"
	"net/url"
)

// Ping checks that the node is up and returns its greeting.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.get(ctx, "/api/v1/ping", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ChainInfo returns the chain id and the latest block.
func (c *Client) ChainInfo(ctx context.Context) (*ChainInfo, error) {
	info := new(ChainInfo)
	if err := c.get(ctx, "/api/v1/chain_info", nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetSchema returns the schema of a deployed database.
func (c *Client) GetSchema(ctx context.Context, dbid string) (*models.Schema, error) {
	var resp struct {
		Schema *models.Schema `json:"schema"`
	}

	path := fmt.Sprintf("/api/v1/databases/%s/schema", url.PathEscape(dbid))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Schema == nil {
		return nil, fmt.Errorf("%w: no schema for %s", ErrEmptyResponse, dbid)
	}
	return resp.Schema, nil
}

// GetAccount returns the balance and nonce of an account.
func (c *Client) GetAccount(ctx context.Context, identifier []byte) (*Account, error) {
	var resp struct {
		Account *Account `json:"account"`
	}

	if err := c.get(ctx, "/api/v1/accounts/"+encodeIdentifier(identifier), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Account == nil {
		return nil, fmt.Errorf("%w: no account", ErrEmptyResponse)
	}
	return resp.Account, nil
}

// ListDatabases returns the databases owned by owner.
func (c *Client) ListDatabases(ctx context.Context, owner []byte) ([]*DatasetInfo, error) {
	var resp struct {
		Databases []*DatasetInfo `json:"databases"`
	}

	path := fmt.Sprintf("/api/v1/%s/databases", encodeIdentifier(owner))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Databases, nil
}

// EstimateCost returns the fee the node charges for the transaction.
func (c *Client) EstimateCost(ctx context.Context, tx *transactions.Transaction) (string, error) {
	req := struct {
		Tx *transactions.Transaction `json:"tx"`
	}{tx}

	var resp struct {
		Price Amount `json:"price"`
	}
	if err := c.post(ctx, "/api/v1/estimate_price", req, nil, &resp); err != nil {
		return "", err
	}
	if resp.Price == "" {
		return "", fmt.Errorf("%w: no price", ErrEmptyResponse)
	}
	return resp.Price.String(), nil
}

// Broadcast submits a signed transaction and returns its hash. With sync
// the node waits for the transaction to be checked before answering.
func (c *Client) Broadcast(ctx context.Context, tx *transactions.Transaction, sync bool) (string, error) {
	if !tx.IsSigned() {
		return "", transactions.ErrNotSigned
	}
	if tx.IsBroadcast() {
		return "", fmt.Errorf("%w: transaction was already broadcast", transactions.ErrInvalidState)
	}

	req := struct {
		Tx   *transactions.Transaction `json:"tx"`
		Sync bool                      `json:"sync,omitempty"`
	}{tx, sync}

	var resp struct {
		TxHash string `json:"tx_hash"`
	}
	if err := c.post(ctx, "/api/v1/broadcast", req, nil, &resp); err != nil {
		return "", err
	}
	return resp.TxHash, nil
}

// Query runs a read-only SQL query against a database.
func (c *Client) Query(ctx context.Context, dbid, query string) (Records, error) {
	req := struct {
		DBID  string `json:"dbid"`
		Query string `json:"query"`
	}{dbid, query}

	var resp struct {
		Result []byte `json:"result"`
	}
	if err := c.post(ctx, "/api/v1/query", req, nil, &resp); err != nil {
		return nil, err
	}
	return decodeRecords(resp.Result)
}

// TxQuery returns the status of a transaction.
func (c *Client) TxQuery(ctx context.Context, txHash string) (*TxQueryResponse, error) {
	req := struct {
		TxHash string `json:"tx_hash"`
	}{txHash}

	resp := new(TxQueryResponse)
	if err := c.post(ctx, "/api/v1/tx_query", req, nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Call runs a read-only action. The session cookie is sent when the node
// sits behind a gateway; a 401 answer matches ErrAuthenticationRequired.
func (c *Client) Call(ctx context.Context, msg *transactions.CallMessage, sess *Session) (Records, error) {
	var resp struct {
		Result []byte `json:"result"`
	}
	if err := c.post(ctx, "/api/v1/call", msg, sess, &resp); err != nil {
		return nil, err
	}
	return decodeRecords(resp.Result)
}

// encodeIdentifier renders an identifier for use in a URL path, unpadded.
func encodeIdentifier(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}
