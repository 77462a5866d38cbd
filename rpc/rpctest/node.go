// Package rpctest runs an in-memory node API for tests.
package rpctest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"kwil-client/auth"
	"kwil-client/models"
	"kwil-client/rpc"
	"kwil-client/transactions"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// Session cookie handed out by the gateway.
const (
	SessionCookie = "kgw_session"
	SessionValue  = "s3cr3t"
)

// CallHandler answers read-only action calls.
type CallHandler func(call *transactions.ActionCall, sender []byte) ([]map[string]interface{}, error)

// Node is a fake node. Fields may be set before the first request;
// use the methods afterwards.
type Node struct {
	ChainID string
	Price   string

	// IncludeAfter is how many tx_query polls report a transaction as
	// pending before it is included in a block.
	IncludeAfter int

	// Gateway makes /api/v1/call require a session cookie.
	Gateway   bool
	AuthParam rpc.AuthParam

	QueryResult []map[string]interface{}
	Call        CallHandler

	mu       sync.Mutex
	accounts map[string]*rpc.Account
	schemas  map[string]*models.Schema
	txs      map[string]*txRecord
	order    []string
	sessions map[string]bool
	logins   int
	height   int64

	ln *fasthttputil.InmemoryListener
}

type txRecord struct {
	tx     *transactions.Transaction
	polls  int
	height int64
}

// NewNode creates a node serving chain "kwil-test".
func NewNode() *Node {
	return &Node{
		ChainID: "kwil-test",
		Price:   "1000",
		AuthParam: rpc.AuthParam{
			Nonce:          "3f9a",
			Statement:      "Trust me",
			IssueAt:        "2024-01-01T00:00:00Z",
			ExpirationTime: "2024-01-01T00:10:00Z",
			ChainID:        "kwil-test",
			Domain:         "kwil.test",
			Version:        "1",
			URI:            "https://kwil.test/auth",
		},
		accounts: make(map[string]*rpc.Account),
		schemas:  make(map[string]*models.Schema),
		txs:      make(map[string]*txRecord),
		sessions: make(map[string]bool),
	}
}

// Start serves the node in memory and returns a client connected to it.
func (n *Node) Start(opts ...rpc.Option) *rpc.Client {
	n.ln = fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: n.handle}
	go server.Serve(n.ln)

	hc := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return n.ln.Dial()
		},
	}

	opts = append([]rpc.Option{rpc.WithHTTPClient(hc), rpc.WithTimeout(5 * time.Second)}, opts...)
	return rpc.NewClient("kwil.test", opts...)
}

// Close stops serving.
func (n *Node) Close() {
	if n.ln != nil {
		n.ln.Close()
	}
}

// SetAccount creates or replaces an account.
func (n *Node) SetAccount(identifier []byte, balance string, nonce int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.accounts[key(identifier)] = &rpc.Account{
		Identifier: identifier,
		Balance:    rpc.Amount(balance),
		Nonce:      rpc.Int64(nonce),
	}
}

// Account returns a copy of an account.
func (n *Node) Account(identifier []byte) (rpc.Account, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	acc, ok := n.accounts[key(identifier)]
	if !ok {
		return rpc.Account{}, false
	}
	return *acc, true
}

// SetSchema deploys a schema under dbid.
func (n *Node) SetSchema(dbid string, schema *models.Schema) {
	n.mu.Lock()
	n.schemas[dbid] = schema
	n.mu.Unlock()
}

// Transactions returns the accepted transactions in broadcast order.
func (n *Node) Transactions() []*transactions.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()

	txs := make([]*transactions.Transaction, len(n.order))
	for i, hash := range n.order {
		txs[i] = n.txs[hash].tx
	}
	return txs
}

// ExpireSessions invalidates every gateway session.
func (n *Node) ExpireSessions() {
	n.mu.Lock()
	n.sessions = make(map[string]bool)
	n.mu.Unlock()
}

// Logins returns the number of successful gateway logins.
func (n *Node) Logins() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.logins
}

func key(identifier []byte) string {
	return base64.RawURLEncoding.EncodeToString(identifier)
}

func reply(ctx *fasthttp.RequestCtx, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		fail(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func fail(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	ctx.SetBodyString(msg)
}

func (n *Node) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())

	switch {
	case path == "/api/v1/ping":
		reply(ctx, map[string]string{"message": "pong"})
	case path == "/api/v1/chain_info":
		n.mu.Lock()
		height := n.height
		n.mu.Unlock()
		// Heights are sent as strings, as some gateways do.
		ctx.SetBodyString(fmt.Sprintf(`{"chain_id":%q,"height":"%d","hash":"abcd"}`, n.ChainID, height))
	case path == "/api/v1/slow":
		time.Sleep(300 * time.Millisecond)
		ctx.SetBodyString(`{}`)
	case strings.HasPrefix(path, "/api/v1/databases/") && strings.HasSuffix(path, "/schema"):
		n.handleSchema(ctx, strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/databases/"), "/schema"))
	case strings.HasPrefix(path, "/api/v1/accounts/"):
		n.handleAccount(ctx, strings.TrimPrefix(path, "/api/v1/accounts/"))
	case strings.HasPrefix(path, "/api/v1/") && strings.HasSuffix(path, "/databases"):
		n.handleDatabases(ctx, strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/"), "/databases"))
	case path == "/api/v1/estimate_price":
		n.handleEstimate(ctx)
	case path == "/api/v1/broadcast":
		n.handleBroadcast(ctx)
	case path == "/api/v1/tx_query":
		n.handleTxQuery(ctx)
	case path == "/api/v1/query":
		n.handleQuery(ctx)
	case path == "/api/v1/call":
		n.handleCall(ctx)
	case path == "/auth" && ctx.IsGet():
		reply(ctx, map[string]interface{}{"result": n.AuthParam})
	case path == "/auth":
		n.handleAuth(ctx)
	case path == "/logout":
		n.mu.Lock()
		delete(n.sessions, string(ctx.Request.Header.Cookie(SessionCookie)))
		n.mu.Unlock()
		reply(ctx, map[string]string{"result": "ok"})
	default:
		fail(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func (n *Node) handleSchema(ctx *fasthttp.RequestCtx, dbid string) {
	n.mu.Lock()
	schema, ok := n.schemas[dbid]
	n.mu.Unlock()

	if !ok {
		fail(ctx, fasthttp.StatusNotFound, `{"error":"dataset not found"}`)
		return
	}
	reply(ctx, map[string]interface{}{"schema": schema})
}

func (n *Node) handleAccount(ctx *fasthttp.RequestCtx, id string) {
	n.mu.Lock()
	acc, ok := n.accounts[id]
	n.mu.Unlock()

	if !ok {
		fail(ctx, fasthttp.StatusNotFound, "account not found")
		return
	}

	// Balance as a number and nonce as a string, to exercise both forms.
	ctx.SetBodyString(fmt.Sprintf(`{"account":{"identifier":%q,"balance":%s,"nonce":"%d"}}`,
		base64.StdEncoding.EncodeToString(acc.Identifier), acc.Balance, acc.Nonce))
}

func (n *Node) handleDatabases(ctx *fasthttp.RequestCtx, owner string) {
	ownerBytes, err := base64.RawURLEncoding.DecodeString(owner)
	if err != nil {
		fail(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	databases := make([]*rpc.DatasetInfo, 0)
	for dbid, schema := range n.schemas {
		if string(schema.Owner) == string(ownerBytes) {
			databases = append(databases, &rpc.DatasetInfo{Name: schema.Name, Owner: schema.Owner, DBID: dbid})
		}
	}
	reply(ctx, map[string]interface{}{"databases": databases})
}

func decodeTx(ctx *fasthttp.RequestCtx) (*transactions.Transaction, bool) {
	var req struct {
		Tx *transactions.Transaction `json:"tx"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Tx == nil || req.Tx.Body == nil {
		fail(ctx, fasthttp.StatusBadRequest, "malformed transaction")
		return nil, false
	}
	return req.Tx, true
}

func (n *Node) handleEstimate(ctx *fasthttp.RequestCtx) {
	tx, ok := decodeTx(ctx)
	if !ok {
		return
	}
	if _, err := transactions.DecodePayload(tx.Body.PayloadType, tx.Body.Payload); err != nil {
		fail(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	ctx.SetBodyString(fmt.Sprintf(`{"price":%s}`, n.Price))
}

func (n *Node) handleBroadcast(ctx *fasthttp.RequestCtx) {
	tx, ok := decodeTx(ctx)
	if !ok {
		return
	}
	if err := tx.Verify(); err != nil {
		fail(ctx, fasthttp.StatusUnauthorized, err.Error())
		return
	}
	if tx.Body.ChainID != n.ChainID {
		fail(ctx, fasthttp.StatusBadRequest, "wrong chain id "+tx.Body.ChainID)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	acc, ok := n.accounts[key(tx.Sender)]
	if !ok {
		acc = &rpc.Account{Identifier: tx.Sender, Balance: "0"}
		n.accounts[key(tx.Sender)] = acc
	}
	if uint64(acc.Nonce)+1 != tx.Body.Nonce {
		fail(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("invalid nonce %d, want %d", tx.Body.Nonce, acc.Nonce+1))
		return
	}
	acc.Nonce++

	hash := tx.Hash()
	n.txs[hash] = &txRecord{tx: tx, height: -1}
	n.order = append(n.order, hash)
	reply(ctx, map[string]string{"tx_hash": hash})
}

func (n *Node) handleTxQuery(ctx *fasthttp.RequestCtx) {
	var req struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		fail(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	rec, ok := n.txs[req.TxHash]
	if !ok {
		fail(ctx, fasthttp.StatusNotFound, "transaction not found")
		return
	}

	rec.polls++
	if rec.height < 0 && rec.polls > n.IncludeAfter {
		n.height++
		rec.height = n.height
	}

	reply(ctx, map[string]interface{}{
		"hash":   req.TxHash,
		"height": rec.height,
		"tx":     rec.tx,
		"tx_result": map[string]interface{}{
			"code":       0,
			"log":        "",
			"gas_used":   "10",
			"gas_wanted": 10,
		},
	})
}

func (n *Node) handleQuery(ctx *fasthttp.RequestCtx) {
	result, err := json.Marshal(n.QueryResult)
	if err != nil {
		fail(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	reply(ctx, map[string][]byte{"result": result})
}

func (n *Node) handleCall(ctx *fasthttp.RequestCtx) {
	if n.Gateway {
		n.mu.Lock()
		ok := n.sessions[string(ctx.Request.Header.Cookie(SessionCookie))]
		n.mu.Unlock()
		if !ok {
			fail(ctx, fasthttp.StatusUnauthorized, "session expired")
			return
		}
	}

	var msg transactions.CallMessage
	if err := json.Unmarshal(ctx.PostBody(), &msg); err != nil || msg.Body == nil {
		fail(ctx, fasthttp.StatusBadRequest, "malformed call")
		return
	}

	var call transactions.ActionCall
	if err := call.UnmarshalBinary(msg.Body.Payload); err != nil {
		fail(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	var records []map[string]interface{}
	if n.Call != nil {
		var err error
		if records, err = n.Call(&call, msg.Sender); err != nil {
			fail(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
	}

	result, _ := json.Marshal(records)
	reply(ctx, map[string][]byte{"result": result})
}

func (n *Node) handleAuth(ctx *fasthttp.RequestCtx) {
	var req rpc.AuthRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Signature == nil {
		fail(ctx, fasthttp.StatusBadRequest, "malformed auth request")
		return
	}
	if req.Nonce != n.AuthParam.Nonce {
		fail(ctx, fasthttp.StatusUnauthorized, "unknown nonce")
		return
	}

	msg := rpc.AuthMessage(&n.AuthParam, auth.FormatIdentity(req.Signature.Type, req.Sender))
	if err := auth.Verify(req.Signature.Type, req.Sender, msg, req.Signature.Signature); err != nil {
		fail(ctx, fasthttp.StatusUnauthorized, err.Error())
		return
	}

	n.mu.Lock()
	n.sessions[SessionValue] = true
	n.logins++
	n.mu.Unlock()

	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(SessionCookie)
	cookie.SetValue(SessionValue)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	ctx.Response.Header.SetCookie(cookie)

	reply(ctx, map[string]string{"result": "ok"})
}
