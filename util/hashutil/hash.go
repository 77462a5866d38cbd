package hashutil

import (
	"crypto/sha256"
	"crypto/sha512"

	"golang.org/x/crypto/sha3"
)

// Sha256 returns sha256 of input data bytes.
func Sha256(data []byte) []byte {
	sha256H := sha256.New()
	sha256H.Reset()
	sha256H.Write(data)
	return sha256H.Sum(nil)
}

// Sha224 returns sha224 of input data bytes.
func Sha224(data []byte) []byte {
	sum := sha256.Sum224(data)
	return sum[:]
}

// Sha384 returns sha384 of input data bytes.
func Sha384(data []byte) []byte {
	sha384H := sha512.New384()
	sha384H.Write(data)
	return sha384H.Sum(nil)
}

// Keccak256 returns the legacy (pre-NIST) Keccak-256 hash used by Ethereum.
func Keccak256(data ...[]byte) []byte {
	keccakH := sha3.NewLegacyKeccak256()
	for _, b := range data {
		keccakH.Write(b)
	}
	return keccakH.Sum(nil)
}

// EthAddress returns the Ethereum address of an uncompressed
// (65-byte, 0x04-prefixed) secp256k1 public key.
func EthAddress(pub []byte) []byte {
	if len(pub) != 65 {
		return nil
	}
	return Keccak256(pub[1:])[12:]
}

// PayloadDigest returns the first 20 bytes of the sha256 of a payload,
// which is what signing messages display.
func PayloadDigest(payload []byte) []byte {
	return Sha256(payload)[:20]
}
