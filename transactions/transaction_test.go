package transactions

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"kwil-client/auth"
	"kwil-client/encoding"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	fixtureHash    = "0SM1RLwjOvrFUgVS/BomwxHNZGg6XWA6iVE+0HTGpe1aVsTuQcvMGLctCHJ9C2sZ"
	testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

func fixtureTx(t *testing.T) *Transaction {
	t.Helper()

	tx, err := CreateTransaction(fixtureStatement(t), "kwil-test")
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.SetFee("1000"); err != nil {
		t.Fatal(err)
	}
	if err := tx.SetNonce(3); err != nil {
		t.Fatal(err)
	}
	return tx
}

func testSigners(t *testing.T) []auth.Signer {
	t.Helper()

	key, err := crypto.HexToECDSA(testPrivateKey)
	if err != nil {
		t.Fatal(err)
	}

	edKey := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	custom, err := auth.NewCustomSigner(func(msg []byte) ([]byte, error) {
		return ed25519.Sign(edKey, msg), nil
	}, edKey.Public().(ed25519.PublicKey), auth.SignatureTypeEd25519)
	if err != nil {
		t.Fatal(err)
	}

	return []auth.Signer{
		auth.NewEthPersonalSigner(key),
		auth.NewSecp256k1Signer(key),
		auth.NewEd25519Signer(edKey),
		custom,
	}
}

func TestGenerateHash(t *testing.T) {
	tx := fixtureTx(t)

	hash, err := tx.GenerateHash()
	if err != nil {
		t.Fatal(err)
	}
	if hash != fixtureHash {
		t.Fatalf("Get=%s, want=%s", hash, fixtureHash)
	}

	again, err := tx.GenerateHash()
	if err != nil || again != hash || tx.Hash() != hash {
		t.Fatalf("Get=%s (%v), want=%s", again, err, hash)
	}

	other, err := fixtureTx(t).GenerateHash()
	if err != nil || other != hash {
		t.Fatalf("Get=%s (%v), want=%s", other, err, hash)
	}

	if tx.Body.Fee != "1000" || tx.Body.Nonce != 3 || tx.Body.ChainID != "kwil-test" {
		t.Fatalf("hashing changed the body: %+v", tx.Body)
	}
}

func TestHashRequiresFeeAndNonce(t *testing.T) {
	tx, err := CreateTransaction(fixtureStatement(t), "kwil-test")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tx.GenerateHash(); !errors.Is(err, ErrFeeNotSet) {
		t.Fatalf("Get error=%v, want ErrFeeNotSet", err)
	}

	if err := tx.SetFee("0"); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.GenerateHash(); !errors.Is(err, ErrNonceNotSet) {
		t.Fatalf("Get error=%v, want ErrNonceNotSet", err)
	}
	if err := tx.SetNonce(0); !errors.Is(err, ErrNonceNotSet) {
		t.Fatalf("Get error=%v, want ErrNonceNotSet", err)
	}

	for _, fee := range []string{"", "-1", "1.5", "1e3"} {
		if err := tx.SetFee(fee); err == nil {
			t.Fatalf("fee %q must be rejected", fee)
		}
	}

	if err := tx.Sign(testSigners(t)[0]); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Get error=%v, want ErrInvalidState", err)
	}
}

func TestHashedTransactionIsFrozen(t *testing.T) {
	tx := fixtureTx(t)
	if _, err := tx.GenerateHash(); err != nil {
		t.Fatal(err)
	}

	if err := tx.SetFee("1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Get error=%v, want ErrInvalidState", err)
	}
	if err := tx.SetNonce(4); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Get error=%v, want ErrInvalidState", err)
	}
	if err := tx.SetDescription("late"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Get error=%v, want ErrInvalidState", err)
	}
}

func TestSigningMessage(t *testing.T) {
	tx := fixtureTx(t)
	if err := tx.SetDescription("Create a post"); err != nil {
		t.Fatal(err)
	}

	want := "Create a post\n\n" +
		"PayloadType: raw_statement\n" +
		"PayloadDigest: fb5673212d71bfe07b162771b5f38e0ab82b4c47\n" +
		"Fee: 1000\n" +
		"Nonce: 3\n\n" +
		"Kwil Chain ID: kwil-test\n"

	if get := string(tx.SigningMessage()); get != want {
		t.Fatalf("Get=%q, want=%q", get, want)
	}

	err := tx.SetDescription(strings.Repeat("x", MaxDescriptionLength+1))
	if !errors.Is(err, encoding.ErrEncodingRange) {
		t.Fatalf("Get error=%v, want ErrEncodingRange", err)
	}
}

func TestSigningMessageDefaultDescription(t *testing.T) {
	tx := fixtureTx(t)
	if !strings.HasPrefix(string(tx.SigningMessage()), DefaultDescription+"\n\nPayloadType: ") {
		t.Fatalf("Get=%q, want it to open with %q", tx.SigningMessage(), DefaultDescription)
	}

	if err := tx.SetDescription("Create a post"); err != nil {
		t.Fatal(err)
	}
	if err := tx.SetDescription(""); err != nil {
		t.Fatal(err)
	}
	if tx.Body.Description != DefaultDescription {
		t.Fatalf("Get=%q, want=%q", tx.Body.Description, DefaultDescription)
	}
}

func TestSignAndVerify(t *testing.T) {
	for _, signer := range testSigners(t) {
		// Two independent signatures of the same content must both verify,
		// whether or not they are byte-identical.
		for i := 0; i < 2; i++ {
			tx := fixtureTx(t)
			if _, err := tx.GenerateHash(); err != nil {
				t.Fatal(err)
			}
			if err := tx.Sign(signer); err != nil {
				t.Fatalf("%s: %v", signer.Type(), err)
			}

			if tx.Signature.Type != signer.Type() || string(tx.Sender) != string(signer.Identity()) {
				t.Fatalf("%s: Get signature=%+v sender=%x", signer.Type(), tx.Signature, tx.Sender)
			}
			if err := tx.Verify(); err != nil {
				t.Fatalf("%s: %v", signer.Type(), err)
			}

			if err := tx.Sign(signer); !errors.Is(err, ErrInvalidState) {
				t.Fatalf("%s: Get error=%v, want ErrInvalidState", signer.Type(), err)
			}
		}
	}
}

func TestMarkBroadcast(t *testing.T) {
	tx := fixtureTx(t)
	if err := tx.MarkBroadcast(); !errors.Is(err, ErrNotSigned) {
		t.Fatalf("Get error=%v, want ErrNotSigned", err)
	}

	if _, err := tx.GenerateHash(); err != nil {
		t.Fatal(err)
	}
	if err := tx.MarkBroadcast(); !errors.Is(err, ErrNotSigned) {
		t.Fatalf("Get error=%v, want ErrNotSigned", err)
	}

	if err := tx.Sign(testSigners(t)[0]); err != nil {
		t.Fatal(err)
	}
	if err := tx.MarkBroadcast(); err != nil {
		t.Fatal(err)
	}
	if err := tx.MarkBroadcast(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Get error=%v, want ErrInvalidState", err)
	}
	if !tx.IsSigned() || !tx.IsBroadcast() {
		t.Fatalf("Get signed=%v broadcast=%v, want both", tx.IsSigned(), tx.IsBroadcast())
	}
}

func TestTransactionJSON(t *testing.T) {
	tx := fixtureTx(t)
	if _, err := tx.GenerateHash(); err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(testSigners(t)[0]); err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"signature", "body", "serialization", "sender"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing %q in %s", key, raw)
		}
	}

	var decoded Transaction
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.IsSigned() || decoded.Hash() != fixtureHash {
		t.Fatalf("Get signed=%v hash=%s", decoded.IsSigned(), decoded.Hash())
	}
	if err := decoded.Verify(); err != nil {
		t.Fatal(err)
	}
	if err := decoded.Sign(testSigners(t)[0]); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Get error=%v, want ErrInvalidState", err)
	}

	decoded.Body.Fee = "1"
	if err := decoded.Verify(); !errors.Is(err, auth.ErrInvalidSignature) {
		t.Fatalf("Get error=%v, want ErrInvalidSignature", err)
	}
}

func TestCallMessage(t *testing.T) {
	call := &ActionCall{DBID: testDBID, Action: "get_post"}

	anonymous, err := CreateCallMessage(call, nil)
	if err != nil {
		t.Fatal(err)
	}
	if anonymous.AuthType != "" || anonymous.Sender != nil || len(anonymous.Body.Payload) == 0 {
		t.Fatalf("Get=%+v", anonymous)
	}

	signer := testSigners(t)[0]
	msg, err := CreateCallMessage(call, signer)
	if err != nil {
		t.Fatal(err)
	}
	if msg.AuthType != auth.SignatureTypeEthPersonal || string(msg.Sender) != string(signer.Identity()) {
		t.Fatalf("Get=%+v", msg)
	}

	if err := anonymous.SignChallenge(signer, []byte("challenge")); err != nil {
		t.Fatal(err)
	}
	signed := append(append([]byte{}, anonymous.Body.Payload...), "challenge"...)
	if err := auth.Verify(anonymous.AuthType, anonymous.Sender, signed, anonymous.Signature.Signature); err != nil {
		t.Fatal(err)
	}
}
