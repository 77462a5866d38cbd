package transactions

import (
	"encoding/hex"
	"fmt"
	"kwil-client/util/hashutil"
)

// SignedMsgConcat is the only serialization nodes accept: the signer
// signs the human readable message below, not the hash.
const SignedMsgConcat = "concat"

// MaxDescriptionLength caps the free-text description shown to signers.
const MaxDescriptionLength = 200

// DefaultDescription opens the signing message when the caller gives none.
const DefaultDescription = "You are signing a Kwil transaction."

const signedMsgTemplate = "%s\n\nPayloadType: %s\nPayloadDigest: %s\nFee: %s\nNonce: %d\n\nKwil Chain ID: %s\n"

// SigningMessage composes the message a signer signs for the body.
func (b *TransactionBody) SigningMessage() []byte {
	digest := hex.EncodeToString(hashutil.PayloadDigest(b.Payload))
	return []byte(fmt.Sprintf(signedMsgTemplate, b.Description, b.PayloadType, digest, b.Fee, b.Nonce, b.ChainID))
}
