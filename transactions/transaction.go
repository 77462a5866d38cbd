package transactions

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"kwil-client/auth"
	"kwil-client/encoding"
	"kwil-client/util/byteutil"
	"kwil-client/util/convert"
	"kwil-client/util/hashutil"
	"strconv"
)

var (
	// ErrNotSigned is returned when broadcasting a transaction that was never signed.
	ErrNotSigned = errors.New("transaction is not signed")

	// ErrFeeNotSet is returned when hashing before the fee is known.
	ErrFeeNotSet = errors.New("transaction fee is not set")

	// ErrNonceNotSet is returned when hashing before the nonce is known.
	ErrNonceNotSet = errors.New("transaction nonce is not set")

	// ErrInvalidState is returned for lifecycle steps taken out of order.
	ErrInvalidState = errors.New("invalid transaction state")
)

type txState uint8

const (
	stateUnsigned txState = iota
	stateHashComputed
	stateSigned
	stateBroadcast
)

func (s txState) String() string {
	switch s {
	case stateUnsigned:
		return "unsigned"
	case stateHashComputed:
		return "hash computed"
	case stateSigned:
		return "signed"
	case stateBroadcast:
		return "broadcast"
	}
	return "unknown"
}

// TransactionBody is the signed content of a transaction.
type TransactionBody struct {
	Description string      `json:"desc"`
	Payload     []byte      `json:"payload"`
	PayloadType PayloadType `json:"type"`
	Fee         string      `json:"fee"`
	Nonce       uint64      `json:"nonce"`
	ChainID     string      `json:"chain_id"`
}

// Transaction is a payload with its fee, nonce and signature.
//
// A transaction moves through unsigned, hash computed, signed and broadcast
// in that order, and no step can be undone.
type Transaction struct {
	Signature     *auth.Signature  `json:"signature"`
	Body          *TransactionBody `json:"body"`
	Serialization string           `json:"serialization"`
	Sender        []byte           `json:"sender"`

	hash  string
	state txState
}

// CreateTransaction encodes the payload into a new unsigned transaction.
func CreateTransaction(payload Payload, chainID string) (*Transaction, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}

	data, err := payload.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return &Transaction{
		Body: &TransactionBody{
			Payload:     data,
			PayloadType: payload.Type(),
			ChainID:     chainID,
			Description: DefaultDescription,
		},
		Serialization: SignedMsgConcat,
	}, nil
}

func (tx *Transaction) requireState(want txState, step string) error {
	if tx.state != want {
		return fmt.Errorf("%w: cannot %s a %s transaction", ErrInvalidState, step, tx.state)
	}
	return nil
}

// SetFee sets the fee, a base-10 unsigned integer as returned by the node's estimate.
func (tx *Transaction) SetFee(fee string) error {
	if err := tx.requireState(stateUnsigned, "set the fee of"); err != nil {
		return err
	}
	if _, err := convert.ParseUnsignedInt(fee); err != nil {
		return fmt.Errorf("invalid fee: %w", err)
	}

	tx.Body.Fee = fee
	return nil
}

// SetNonce sets the nonce, which must be the account's nonce + 1.
func (tx *Transaction) SetNonce(nonce uint64) error {
	if err := tx.requireState(stateUnsigned, "set the nonce of"); err != nil {
		return err
	}
	if nonce == 0 {
		return fmt.Errorf("%w: nonces start at 1", ErrNonceNotSet)
	}

	tx.Body.Nonce = nonce
	return nil
}

// SetDescription sets the text shown to the signer above the transaction
// details. An empty desc restores DefaultDescription.
func (tx *Transaction) SetDescription(desc string) error {
	if err := tx.requireState(stateUnsigned, "describe"); err != nil {
		return err
	}
	if len(desc) > MaxDescriptionLength {
		return &encoding.RangeError{
			Field: "description length",
			Value: strconv.Itoa(len(desc)),
			Max:   strconv.Itoa(MaxDescriptionLength),
		}
	}

	if desc == "" {
		desc = DefaultDescription
	}
	tx.Body.Description = desc
	return nil
}

// GenerateHash computes the transaction hash. Fee and nonce must be set.
// Calling it again returns the same hash and changes nothing.
func (tx *Transaction) GenerateHash() (string, error) {
	if tx.state != stateUnsigned {
		return tx.hash, nil
	}

	hash, err := tx.Body.Hash()
	if err != nil {
		return "", err
	}

	tx.hash = hash
	tx.state = stateHashComputed
	return hash, nil
}

// Hash returns the hash computed by GenerateHash, or "" before that.
func (tx *Transaction) Hash() string {
	return tx.hash
}

// Hash computes
//
//	base64(sha384(tag u32 || sha384(payload) || fee || nonce u64))
//
// with little-endian integers.
func (b *TransactionBody) Hash() (string, error) {
	if b.Fee == "" {
		return "", ErrFeeNotSet
	}
	if b.Nonce == 0 {
		return "", ErrNonceNotSet
	}

	tag, ok := b.PayloadType.Tag()
	if !ok {
		return "", fmt.Errorf("%w: unknown payload type %q", ErrInvalidPayload, b.PayloadType)
	}

	tagBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(tagBytes, tag)

	nonceBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceBytes, b.Nonce)

	digest := hashutil.Sha384(byteutil.Concat(
		tagBytes,
		hashutil.Sha384(b.Payload),
		[]byte(b.Fee),
		nonceBytes,
	))

	return base64.StdEncoding.EncodeToString(digest), nil
}

// SigningMessage returns the message the signer signs.
func (tx *Transaction) SigningMessage() []byte {
	return tx.Body.SigningMessage()
}

// Sign signs the hashed transaction and sets its signature and sender.
func (tx *Transaction) Sign(signer auth.Signer) error {
	if err := tx.requireState(stateHashComputed, "sign"); err != nil {
		return err
	}

	sigType, err := auth.ResolveSignatureType(signer)
	if err != nil {
		return err
	}

	sig, err := signer.Sign(tx.SigningMessage())
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	tx.Signature = &auth.Signature{Signature: sig, Type: sigType}
	tx.Sender = byteutil.Copy(signer.Identity())
	tx.state = stateSigned
	return nil
}

// IsSigned reports whether the transaction carries a signature.
func (tx *Transaction) IsSigned() bool {
	return tx.state >= stateSigned
}

// IsBroadcast reports whether the transaction was already sent to a node.
func (tx *Transaction) IsBroadcast() bool {
	return tx.state == stateBroadcast
}

// Verify checks the signature against the signing message and the sender.
func (tx *Transaction) Verify() error {
	if tx.Signature == nil {
		return ErrNotSigned
	}
	if tx.Serialization != SignedMsgConcat {
		return fmt.Errorf("unsupported serialization %q", tx.Serialization)
	}
	return auth.Verify(tx.Signature.Type, tx.Sender, tx.SigningMessage(), tx.Signature.Signature)
}

// MarkBroadcast moves a signed transaction to its final state.
// Broadcasting an unsigned transaction fails with ErrNotSigned.
func (tx *Transaction) MarkBroadcast() error {
	switch tx.state {
	case stateSigned:
		tx.state = stateBroadcast
		return nil
	case stateBroadcast:
		return fmt.Errorf("%w: transaction was already broadcast", ErrInvalidState)
	}
	return fmt.Errorf("%w: state is %s", ErrNotSigned, tx.state)
}

// UnmarshalJSON restores a transaction received from a node. It is
// treated as signed when it carries a signature, so it can't be re-signed.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*tx = Transaction(decoded)
	if tx.Body == nil {
		tx.Body = new(TransactionBody)
	}

	if hash, err := tx.Body.Hash(); err == nil {
		tx.hash = hash
		tx.state = stateHashComputed
	}
	if tx.Signature != nil {
		tx.state = stateSigned
	}

	return nil
}
