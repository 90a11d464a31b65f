// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// signatureLength is the size of the [R|S] signature without the recovery id.
const signatureLength = crypto.RecoveryIDOffset

// =============================================================================

// Hash returns the hex-encoded SHA-256 digest of the data.
func Hash(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// PublicKeyToAddress converts the public key into the hex-encoded
// uncompressed form that identifies an owner on the chain.
func PublicKeyToAddress(pk ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(&pk))
}

// AddressToPublicKey converts an address back into the public key it
// was produced from.
func AddressToPublicKey(address string) (*ecdsa.PublicKey, error) {
	data, err := hex.DecodeString(address)
	if err != nil {
		return nil, fmt.Errorf("decoding address: %w", err)
	}

	return crypto.UnmarshalPubkey(data)
}

// Sign uses the specified private key to sign the hex-encoded hash. The
// signature is returned hex-encoded in the [R|S] format.
func Sign(hash string, privateKey *ecdsa.PrivateKey) (string, error) {
	digest, err := decodeHash(hash)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", err
	}

	// Check the signature against our own public key before handing it out.
	rs := sig[:signatureLength]
	if !crypto.VerifySignature(crypto.FromECDSAPub(&privateKey.PublicKey), digest, rs) {
		return "", errors.New("invalid signature")
	}

	return hex.EncodeToString(rs), nil
}

// Verify reports whether sig is a valid signature of the hex-encoded hash
// by the owner of the address. Malformed input of any kind is reported
// as an invalid signature.
func Verify(address string, hash string, sig string) bool {
	pubKey, err := hex.DecodeString(address)
	if err != nil || len(pubKey) == 0 {
		return false
	}

	digest, err := decodeHash(hash)
	if err != nil {
		return false
	}

	rs, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	// Accept signatures that still carry the recovery id.
	if len(rs) == crypto.SignatureLength {
		rs = rs[:signatureLength]
	}
	if len(rs) != signatureLength {
		return false
	}

	return crypto.VerifySignature(pubKey, digest, rs)
}

// =============================================================================

// decodeHash converts a hex-encoded hash into the 32 bytes that get signed.
func decodeHash(hash string) ([]byte, error) {
	digest, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("decoding hash: %w", err)
	}

	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("hash must be %d bytes, got %d", sha256.Size, len(digest))
	}

	return digest, nil
}
