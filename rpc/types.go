package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"kwil-client/transactions"
	"strconv"
)

// Int64 decodes from a JSON number or a quoted decimal string. Nodes
// encode 64-bit integers either way depending on the gateway in front.
type Int64 int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int64) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*i = 0
		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid int64 %s: %w", data, err)
	}

	*i = Int64(v)
	return nil
}

// Amount is an arbitrary precision integer kept as its decimal string.
// It decodes from a JSON number or string.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*a = Amount(n.String())
	return nil
}

func (a Amount) String() string {
	return string(a)
}

// Account is the state of an account.
type Account struct {
	Identifier []byte `json:"identifier"`
	Balance    Amount `json:"balance"`
	Nonce      Int64  `json:"nonce"`
}

// ChainInfo describes the chain a node serves.
type ChainInfo struct {
	ChainID string `json:"chain_id"`
	Height  Int64  `json:"height"`
	Hash    string `json:"hash"`
}

// DatasetInfo identifies a deployed database.
type DatasetInfo struct {
	Name  string `json:"name"`
	Owner []byte `json:"owner"`
	DBID  string `json:"dbid"`
}

// TxResult is the execution result of a transaction.
type TxResult struct {
	Code      uint32            `json:"code"`
	Log       string            `json:"log"`
	GasUsed   Int64             `json:"gas_used"`
	GasWanted Int64             `json:"gas_wanted"`
	Data      []byte            `json:"data,omitempty"`
	Events    []json.RawMessage `json:"events,omitempty"`
}

// TxQueryResponse is the state of a transaction. Height is -1 while the
// transaction waits in the mempool.
type TxQueryResponse struct {
	Hash     string                    `json:"hash"`
	Height   Int64                     `json:"height"`
	Tx       *transactions.Transaction `json:"tx"`
	TxResult TxResult                  `json:"tx_result"`
}

// Included reports whether the transaction made it into a block.
func (r *TxQueryResponse) Included() bool {
	return r.Height > 0
}

// Succeeded reports whether the transaction was included and executed without error.
func (r *TxQueryResponse) Succeeded() bool {
	return r.Included() && r.TxResult.Code == 0
}

// Records are result rows keyed by column name.
type Records []map[string]interface{}

func decodeRecords(result []byte) (Records, error) {
	if len(result) == 0 {
		return Records{}, nil
	}

	var records Records
	decoder := json.NewDecoder(bytes.NewReader(result))
	decoder.UseNumber()
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return records, nil
}
