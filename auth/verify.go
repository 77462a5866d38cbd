package auth

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"kwil-client/util/hashutil"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verify checks sig over msg for the identity, using the scheme named by sigType.
func Verify(sigType string, identity, msg, sig []byte) error {
	switch sigType {
	case SignatureTypeEthPersonal:
		return verifyEthPersonal(identity, msg, sig)
	case SignatureTypeSecp256k1:
		return verifySecp256k1(identity, msg, sig)
	case SignatureTypeEd25519:
		return verifyEd25519(identity, msg, sig)
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedSignatureType, sigType)
}

func verifyEthPersonal(address, msg, sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	// Wallets produce V in {27, 28}, go-ethereum recovers from {0, 1}.
	sig = append([]byte{}, sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if !bytes.Equal(hashutil.EthAddress(crypto.FromECDSAPub(pub)), address) {
		return fmt.Errorf("%w: recovered address does not match sender", ErrInvalidSignature)
	}
	return nil
}

func verifySecp256k1(pubkey, msg, sig []byte) error {
	if len(sig) == crypto.SignatureLength {
		sig = sig[:crypto.RecoveryIDOffset]
	}
	if len(sig) != crypto.RecoveryIDOffset {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, crypto.RecoveryIDOffset, len(sig))
	}

	if !crypto.VerifySignature(pubkey, hashutil.Sha256(msg), sig) {
		return ErrInvalidSignature
	}
	return nil
}

func verifyEd25519(pubkey, msg, sig []byte) error {
	if len(pubkey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidSignature, ed25519.PublicKeySize)
	}
	if !ed25519.Verify(ed25519.PublicKey(pubkey), msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}
