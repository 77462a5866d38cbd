package auth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"kwil-client/util/hashutil"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature types understood by nodes.
const (
	// SignatureTypeEthPersonal is an EIP-191 personal_sign signature by an
	// Ethereum account; the identity is the 20-byte address.
	SignatureTypeEthPersonal = "secp256k1_ep"
	// SignatureTypeSecp256k1 is a plain secp256k1 signature over sha256;
	// the identity is the compressed public key.
	SignatureTypeSecp256k1 = "secp256k1"
	// SignatureTypeEd25519 is an ed25519 signature; the identity is the public key.
	SignatureTypeEd25519 = "ed25519"
)

var (
	// ErrIndeterminateSignatureType is returned when a signer's scheme can't be determined.
	ErrIndeterminateSignatureType = errors.New("indeterminate signature type")

	// ErrUnsupportedSignatureType is returned when verifying an unknown scheme.
	ErrUnsupportedSignatureType = errors.New("unsupported signature type")

	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signature is a signature with the scheme that produced it.
type Signature struct {
	Signature []byte `json:"signature_bytes"`
	Type      string `json:"signature_type"`
}

// Signer signs messages on behalf of an identity.
type Signer interface {
	// Sign signs the message, not a digest of it; each scheme hashes as it needs.
	Sign(msg []byte) ([]byte, error)
	// Identity is the sender identifier nodes derive from the signature.
	Identity() []byte
	// Type is the signature type tag.
	Type() string
}

// EthPersonalSigner signs like an Ethereum wallet's personal_sign.
type EthPersonalSigner struct {
	key *ecdsa.PrivateKey
}

var _ Signer = (*EthPersonalSigner)(nil)

// NewEthPersonalSigner creates a wallet-style signer.
func NewEthPersonalSigner(key *ecdsa.PrivateKey) *EthPersonalSigner {
	return &EthPersonalSigner{key: key}
}

// Sign returns a 65-byte [R || S || V] signature with V in {27, 28}.
func (s *EthPersonalSigner) Sign(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Identity returns the account address.
func (s *EthPersonalSigner) Identity() []byte {
	return hashutil.EthAddress(crypto.FromECDSAPub(&s.key.PublicKey))
}

// Type implements Signer.
func (s *EthPersonalSigner) Type() string {
	return SignatureTypeEthPersonal
}

// Address returns the lower-case 0x-prefixed account address.
func (s *EthPersonalSigner) Address() string {
	return "0x" + hex.EncodeToString(s.Identity())
}

// Secp256k1Signer signs sha256(msg) with a bare secp256k1 key.
type Secp256k1Signer struct {
	key *ecdsa.PrivateKey
}

var _ Signer = (*Secp256k1Signer)(nil)

// NewSecp256k1Signer creates a plain secp256k1 signer.
func NewSecp256k1Signer(key *ecdsa.PrivateKey) *Secp256k1Signer {
	return &Secp256k1Signer{key: key}
}

// Sign returns a 64-byte [R || S] signature.
func (s *Secp256k1Signer) Sign(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(hashutil.Sha256(msg), s.key)
	if err != nil {
		return nil, err
	}
	return sig[:crypto.RecoveryIDOffset], nil
}

// Identity returns the compressed public key.
func (s *Secp256k1Signer) Identity() []byte {
	return crypto.CompressPubkey(&s.key.PublicKey)
}

// Type implements Signer.
func (s *Secp256k1Signer) Type() string {
	return SignatureTypeSecp256k1
}

// Ed25519Signer signs with an ed25519 key.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

var _ Signer = (*Ed25519Signer)(nil)

// NewEd25519Signer creates an ed25519 signer.
func NewEd25519Signer(key ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{key: key}
}

// Sign implements Signer.
func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	if len(s.key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(s.key))
	}
	return ed25519.Sign(s.key, msg), nil
}

// Identity returns the public key.
func (s *Ed25519Signer) Identity() []byte {
	return []byte(s.key.Public().(ed25519.PublicKey))
}

// Type implements Signer.
func (s *Ed25519Signer) Type() string {
	return SignatureTypeEd25519
}

// SignFunc is an opaque signing callback.
type SignFunc func(msg []byte) ([]byte, error)

// CustomSigner wraps a signing callback whose scheme is declared by the caller.
type CustomSigner struct {
	sign     SignFunc
	identity []byte
	sigType  string
}

var _ Signer = (*CustomSigner)(nil)

// NewCustomSigner wraps fn. The scheme of an opaque function can't be
// inferred, so an empty sigType fails with ErrIndeterminateSignatureType.
func NewCustomSigner(fn SignFunc, identity []byte, sigType string) (*CustomSigner, error) {
	if sigType == "" {
		return nil, fmt.Errorf("%w: custom signers must declare a signature type", ErrIndeterminateSignatureType)
	}
	if fn == nil {
		return nil, errors.New("custom signer has no signing function")
	}

	return &CustomSigner{sign: fn, identity: identity, sigType: sigType}, nil
}

// Sign implements Signer.
func (s *CustomSigner) Sign(msg []byte) ([]byte, error) {
	return s.sign(msg)
}

// Identity implements Signer.
func (s *CustomSigner) Identity() []byte {
	return s.identity
}

// Type implements Signer.
func (s *CustomSigner) Type() string {
	return s.sigType
}

// ResolveSignatureType returns the signature type a signer produces.
func ResolveSignatureType(s Signer) (string, error) {
	switch signer := s.(type) {
	case nil:
		return "", fmt.Errorf("%w: no signer", ErrIndeterminateSignatureType)
	case *EthPersonalSigner:
		return SignatureTypeEthPersonal, nil
	case *Secp256k1Signer:
		return SignatureTypeSecp256k1, nil
	case *Ed25519Signer:
		return SignatureTypeEd25519, nil
	default:
		if t := signer.Type(); t != "" {
			return t, nil
		}
		return "", fmt.Errorf("%w: %T", ErrIndeterminateSignatureType, s)
	}
}

// NewSigner parses a hex private key for one of the built-in schemes.
// An empty sigType selects SignatureTypeEthPersonal.
func NewSigner(sigType, privateKeyHex string) (Signer, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	switch sigType {
	case "", SignatureTypeEthPersonal, SignatureTypeSecp256k1:
		key, err := crypto.HexToECDSA(privateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid secp256k1 private key: %w", err)
		}
		if sigType == SignatureTypeSecp256k1 {
			return NewSecp256k1Signer(key), nil
		}
		return NewEthPersonalSigner(key), nil
	case SignatureTypeEd25519:
		raw, err := hex.DecodeString(privateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid ed25519 private key: %w", err)
		}
		switch len(raw) {
		case ed25519.SeedSize:
			return NewEd25519Signer(ed25519.NewKeyFromSeed(raw)), nil
		case ed25519.PrivateKeySize:
			return NewEd25519Signer(ed25519.PrivateKey(raw)), nil
		}
		return nil, fmt.Errorf("invalid ed25519 private key length %d", len(raw))
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedSignatureType, sigType)
}

// FormatIdentity renders an identity the way nodes display it:
// 0x-prefixed addresses for Ethereum accounts, plain hex otherwise.
func FormatIdentity(sigType string, identity []byte) string {
	if sigType == SignatureTypeEthPersonal {
		return "0x" + hex.EncodeToString(identity)
	}
	return hex.EncodeToString(identity)
}
