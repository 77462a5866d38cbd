package client

import (
	"context"
	"encoding/json"
	"errors"
	"kwil-client/auth"
	"kwil-client/cache/schema"
	"kwil-client/encoding"
	"kwil-client/models"
	"kwil-client/rpc"
	"kwil-client/rpc/rpctest"
	"kwil-client/transactions"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

var testDBID = "x" + strings.Repeat("ab", 28)

func testSigner(t *testing.T) *auth.EthPersonalSigner {
	t.Helper()

	key, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		t.Fatal(err)
	}
	return auth.NewEthPersonalSigner(key)
}

func postsSchema() *models.Schema {
	return &models.Schema{
		Name: "posts",
		Actions: []*models.Action{{
			Name:       "create_post",
			Parameters: []string{"$id", "$title"},
			Public:     true,
			Body:       "INSERT INTO posts VALUES ($id, $title);",
		}},
		Procedures: []*models.Procedure{{
			Name:   "get_post",
			Public: true,
			Parameters: []*models.ProcedureParameter{
				{Name: "$id", Type: &encoding.IntType},
			},
		}},
	}
}

func newTestClient(t *testing.T, opts ...Option) (*rpctest.Node, *Client) {
	t.Helper()

	node := rpctest.NewNode()
	t.Cleanup(node.Close)

	c, err := NewFromRPC(context.Background(), node.Start(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return node, c
}

func decodeExecution(t *testing.T, tx *transactions.Transaction) *transactions.ActionExecution {
	t.Helper()

	p, err := transactions.DecodePayload(tx.Body.PayloadType, tx.Body.Payload)
	if err != nil {
		t.Fatal(err)
	}
	exec, ok := p.(*transactions.ActionExecution)
	if !ok {
		t.Fatalf("Get payload %T", p)
	}
	return exec
}

func TestGenerateDBID(t *testing.T) {
	owner := testSigner(t).Identity()

	want := "x929bb3a9481a4fe1a17a1eaa01083190c608ac6dc242ac7016fc4216"
	if get := GenerateDBID("MyDB", owner); get != want {
		t.Fatalf("Get=%s, want=%s", get, want)
	}
	if !transactions.ValidDBID(GenerateDBID("other", owner)) {
		t.Fatal("generated dbid must be valid")
	}
}

func TestActionInput(t *testing.T) {
	in := NewActionInput().Put("Title", "a").Put("$id", 1).Put("title", "b")

	if names := in.Names(); len(names) != 2 || names[0] != "$title" || names[1] != "$id" {
		t.Fatalf("Get=%v", names)
	}
	if v, ok := in.Get("TITLE"); !ok || v != "b" {
		t.Fatalf("Get=%v, want=b", v)
	}

	in = NewActionInput().PutAll(map[string]interface{}{"b": 2, "a": 1})
	if names := in.Names(); len(names) != 2 || names[0] != "$a" || names[1] != "$b" {
		t.Fatalf("Get=%v", names)
	}
}

func TestChainIDFromNode(t *testing.T) {
	_, c := newTestClient(t)
	if c.ChainID() != "kwil-test" {
		t.Fatalf("Get=%s, want=kwil-test", c.ChainID())
	}

	_, c = newTestClient(t, WithChainID("custom"))
	if c.ChainID() != "custom" {
		t.Fatalf("Get=%s, want=custom", c.ChainID())
	}
}

func TestExecuteAction(t *testing.T) {
	signer := testSigner(t)
	node, c := newTestClient(t, WithSigner(signer))
	node.SetSchema(testDBID, postsSchema())
	ctx := context.Background()

	// Inputs are reordered to the declared parameter order.
	in := NewActionInput().Put("title", "hello").Put("id", 1)
	hash, err := c.ExecuteAction(ctx, testDBID, "CREATE_POST", []*ActionInput{in})
	if err != nil {
		t.Fatal(err)
	}

	txs := node.Transactions()
	if len(txs) != 1 || txs[0].Hash() != hash {
		t.Fatalf("node received %d transactions", len(txs))
	}

	tx := txs[0]
	if tx.Body.Fee != "1000" || tx.Body.Nonce != 1 || tx.Body.ChainID != "kwil-test" {
		t.Fatalf("Get body=%+v", tx.Body)
	}
	if string(tx.Sender) != string(signer.Identity()) {
		t.Fatalf("Get sender=%x", tx.Sender)
	}

	exec := decodeExecution(t, tx)
	if len(exec.Arguments) != 1 || len(exec.Arguments[0]) != 2 {
		t.Fatalf("Get arguments=%v", exec.Arguments)
	}
	id, err := exec.Arguments[0][0].Decode()
	if err != nil || id != int64(1) {
		t.Fatalf("Get id=%v (%v), want 1", id, err)
	}
	title, err := exec.Arguments[0][1].Decode()
	if err != nil || title != "hello" {
		t.Fatalf("Get title=%v (%v), want hello", title, err)
	}

	// The next transaction takes the next nonce.
	if _, err := c.ExecuteAction(ctx, testDBID, "create_post", []*ActionInput{in}); err != nil {
		t.Fatal(err)
	}
	if txs = node.Transactions(); len(txs) != 2 || txs[1].Body.Nonce != 2 {
		t.Fatalf("Get %d transactions", len(txs))
	}
}

func TestExecuteActionOptions(t *testing.T) {
	signer := testSigner(t)
	node, c := newTestClient(t, WithSigner(signer))
	node.SetSchema(testDBID, postsSchema())
	node.SetAccount(signer.Identity(), "100", 6)

	in := NewActionInput().Put("id", 1).Put("title", "x")
	_, err := c.ExecuteAction(context.Background(), testDBID, "create_post", []*ActionInput{in},
		WithFee("7"), WithNonce(7), WithDescription("create a post"), WithSyncBroadcast())
	if err != nil {
		t.Fatal(err)
	}

	tx := node.Transactions()[0]
	if tx.Body.Fee != "7" || tx.Body.Nonce != 7 || tx.Body.Description != "create a post" {
		t.Fatalf("Get body=%+v", tx.Body)
	}
}

func TestExecuteActionErrors(t *testing.T) {
	node, c := newTestClient(t, WithSigner(testSigner(t)))
	node.SetSchema(testDBID, postsSchema())
	ctx := context.Background()

	if _, err := c.ExecuteAction(ctx, "x"+strings.Repeat("cd", 28), "create_post", nil); !errors.Is(err, ErrSchemaNotFound) {
		t.Fatalf("Get error=%v, want ErrSchemaNotFound", err)
	}
	if _, err := c.ExecuteAction(ctx, testDBID, "delete_post", nil); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("Get error=%v, want ErrActionNotFound", err)
	}

	missing := NewActionInput().Put("id", 1).Put("body", "x")
	if _, err := c.ExecuteAction(ctx, testDBID, "create_post", []*ActionInput{missing}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Get error=%v, want ErrInvalidInput", err)
	}
	short := NewActionInput().Put("id", 1)
	if _, err := c.ExecuteAction(ctx, testDBID, "create_post", []*ActionInput{short}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Get error=%v, want ErrInvalidInput", err)
	}

	if got := node.Transactions(); len(got) != 0 {
		t.Fatalf("node received %d transactions", len(got))
	}

	_, readOnly := newTestClient(t)
	if _, err := readOnly.ExecuteSQL(ctx, "DELETE FROM posts", nil); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("Get error=%v, want ErrNoSigner", err)
	}
}

func TestExecuteSQL(t *testing.T) {
	node, c := newTestClient(t, WithSigner(testSigner(t)))

	params := NewActionInput().Put("val", "hello world")
	if _, err := c.ExecuteSQL(context.Background(), "INSERT INTO posts VALUES ($val)", params); err != nil {
		t.Fatal(err)
	}

	tx := node.Transactions()[0]
	p, err := transactions.DecodePayload(tx.Body.PayloadType, tx.Body.Payload)
	if err != nil {
		t.Fatal(err)
	}
	raw := p.(*transactions.RawStatement)
	if raw.Statement != "INSERT INTO posts VALUES ($val)" || len(raw.Parameters) != 1 || raw.Parameters[0].Name != "$val" {
		t.Fatalf("Get=%+v", raw)
	}
}

func TestDeployAndDropDatabase(t *testing.T) {
	signer := testSigner(t)
	cache, err := schema.New(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	node, c := newTestClient(t, WithSigner(signer), WithSchemaCache(cache))
	ctx := context.Background()

	s := &models.Schema{
		Name: "MyDB",
		Tables: []*models.Table{{
			Name:    "posts",
			Columns: []*models.Column{{Name: "id", Type: &encoding.IntType}},
		}},
	}
	if _, err := c.DeployDatabase(ctx, s); err != nil {
		t.Fatal(err)
	}
	if s.Owner != nil {
		t.Fatal("the caller's schema must not be modified")
	}

	p, err := transactions.DecodePayload(transactions.PayloadTypeDeploySchema, node.Transactions()[0].Body.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if deployed := p.(*transactions.DeploySchema).Schema; string(deployed.Owner) != string(signer.Identity()) {
		t.Fatalf("Get owner=%x", deployed.Owner)
	}

	dbid := GenerateDBID("MyDB", signer.Identity())
	node.SetSchema(dbid, s)
	if _, err := c.GetSchema(ctx, dbid); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 1 {
		t.Fatalf("Get cache len=%d, want 1", cache.Len())
	}

	if _, err := c.DropDatabase(ctx, "mydb"); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Get(dbid); ok {
		t.Fatal("dropped schema must leave the cache")
	}

	p, err = transactions.DecodePayload(transactions.PayloadTypeDropSchema, node.Transactions()[1].Body.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if p.(*transactions.DropSchema).DBID != dbid {
		t.Fatalf("Get=%+v, want dbid %s", p, dbid)
	}
}

func TestSchemaCache(t *testing.T) {
	cache, err := schema.New(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	node, c := newTestClient(t, WithSchemaCache(cache))
	node.SetSchema(testDBID, postsSchema())
	ctx := context.Background()

	if _, err := c.GetSchema(ctx, testDBID); err != nil {
		t.Fatal(err)
	}

	node.SetSchema(testDBID, &models.Schema{Name: "replaced"})
	s, err := c.GetSchema(ctx, testDBID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "posts" {
		t.Fatalf("Get=%s, want the cached schema", s.Name)
	}
}

func TestTransfer(t *testing.T) {
	node, c := newTestClient(t, WithSigner(testSigner(t)))
	to := make([]byte, 20)
	to[19] = 1

	if _, err := c.Transfer(context.Background(), to, "100000000000000000000"); err != nil {
		t.Fatal(err)
	}

	tx := node.Transactions()[0]
	p, err := transactions.DecodePayload(tx.Body.PayloadType, tx.Body.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if tr := p.(*transactions.Transfer); tr.Amount != "100000000000000000000" || string(tr.To) != string(to) {
		t.Fatalf("Get=%+v", tr)
	}

	if _, err := c.Transfer(context.Background(), to, "-1"); err == nil {
		t.Fatal("negative amounts must be rejected")
	}
}

func TestGetAccount(t *testing.T) {
	signer := testSigner(t)
	node, c := newTestClient(t, WithSigner(signer))
	ctx := context.Background()

	acc, err := c.GetAccount(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance != "0" || acc.Nonce != 0 {
		t.Fatalf("Get=%+v, want an empty account", acc)
	}

	node.SetAccount(signer.Identity(), "500", 4)
	if acc, err = c.GetAccount(ctx, nil); err != nil || acc.Balance != "500" || acc.Nonce != 4 {
		t.Fatalf("Get=%+v (%v)", acc, err)
	}

	_, readOnly := newTestClient(t)
	if _, err := readOnly.GetAccount(ctx, nil); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("Get error=%v, want ErrNoSigner", err)
	}
}

func TestWaitTx(t *testing.T) {
	node, c := newTestClient(t, WithSigner(testSigner(t)), WithPollInterval(10*time.Millisecond))
	node.IncludeAfter = 2
	ctx := context.Background()

	hash, err := c.ExecuteSQL(ctx, "DELETE FROM posts", nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.WaitTx(ctx, hash, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Included() || !res.Succeeded() {
		t.Fatalf("Get=%+v", res)
	}

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := c.WaitTx(short, "unknown", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get error=%v, want DeadlineExceeded", err)
	}
}

func TestCallActionReauthenticates(t *testing.T) {
	signer := testSigner(t)
	node, c := newTestClient(t, WithSigner(signer))
	node.SetSchema(testDBID, postsSchema())
	node.Gateway = true
	node.Call = func(call *transactions.ActionCall, sender []byte) ([]map[string]interface{}, error) {
		id, err := call.Arguments[0].Decode()
		if err != nil {
			return nil, err
		}
		return []map[string]interface{}{{"id": id, "action": call.Action}}, nil
	}
	ctx := context.Background()

	// The procedure declares an int parameter, so "5" is sent as an int.
	records, err := c.CallAction(ctx, testDBID, "get_post", NewActionInput().Put("id", "5"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0]["action"] != "get_post" || records[0]["id"] != json.Number("5") {
		t.Fatalf("Get=%v", records)
	}
	if node.Logins() != 1 {
		t.Fatalf("Get logins=%d, want 1", node.Logins())
	}

	if _, err := c.CallAction(ctx, testDBID, "get_post", NewActionInput().Put("id", 6)); err != nil {
		t.Fatal(err)
	}
	if node.Logins() != 1 {
		t.Fatalf("Get logins=%d, want the session reused", node.Logins())
	}

	node.ExpireSessions()
	if _, err := c.CallAction(ctx, testDBID, "get_post", NewActionInput().Put("id", 7)); err != nil {
		t.Fatal(err)
	}
	if node.Logins() != 2 {
		t.Fatalf("Get logins=%d, want 2", node.Logins())
	}

	_, anonymous := newTestClient(t)
	anonymous.rpc = c.rpc
	if _, err := anonymous.CallAction(ctx, testDBID, "get_post", NewActionInput().Put("id", 1)); !errors.Is(err, rpc.ErrAuthenticationRequired) {
		t.Fatalf("Get error=%v, want ErrAuthenticationRequired", err)
	}
}

type customSigner struct {
	inner auth.Signer
	typ   string
}

func (s *customSigner) Sign(msg []byte) ([]byte, error) { return s.inner.Sign(msg) }
func (s *customSigner) Identity() []byte               { return s.inner.Identity() }
func (s *customSigner) Type() string                   { return s.typ }

func TestCustomSignerNeedsType(t *testing.T) {
	node, c := newTestClient(t, WithSigner(&customSigner{inner: testSigner(t)}))

	_, err := c.ExecuteSQL(context.Background(), "DELETE FROM posts", nil)
	if !errors.Is(err, auth.ErrIndeterminateSignatureType) {
		t.Fatalf("Get error=%v, want ErrIndeterminateSignatureType", err)
	}

	c.signer = &customSigner{inner: testSigner(t), typ: auth.SignatureTypeEthPersonal}
	if _, err := c.ExecuteSQL(context.Background(), "DELETE FROM posts", nil); err != nil {
		t.Fatal(err)
	}
	if len(node.Transactions()) != 1 {
		t.Fatal("the typed custom signer must be accepted")
	}
}

type memJournal struct {
	mu     sync.Mutex
	hashes []string
}

func (j *memJournal) RecordBroadcast(tx *transactions.Transaction, txHash string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !tx.IsSigned() {
		return errors.New("unsigned")
	}
	j.hashes = append(j.hashes, txHash)
	return nil
}

func TestJournal(t *testing.T) {
	journal := new(memJournal)
	_, c := newTestClient(t, WithSigner(testSigner(t)), WithJournal(journal))

	hash, err := c.ExecuteSQL(context.Background(), "DELETE FROM posts", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(journal.hashes) != 1 || journal.hashes[0] != hash {
		t.Fatalf("Get=%v, want [%s]", journal.hashes, hash)
	}
}
