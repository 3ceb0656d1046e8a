package ed25519

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/colorfulnotion/rollup/common"
	consensus "github.com/hdevalence/ed25519consensus"
)

const (
	SeedSize       = stded25519.SeedSize
	PublicKeySize  = stded25519.PublicKeySize
	PrivateKeySize = stded25519.PrivateKeySize
	SignatureSize  = stded25519.SignatureSize
)

// PrivateKey aliases the standard library type so key material can be
// handed to crypto/ed25519 without conversion.
type PrivateKey = stded25519.PrivateKey

// PublicKey is the fixed-size form carried inside transactions.
type PublicKey [PublicKeySize]byte

// Signature is the fixed-size form carried inside transactions.
type Signature [SignatureSize]byte

var ErrBadSignature = errors.New("ed25519: signature verification failed")

// NewKeyFromSeed directly uses the standard library behavior: seed 32 bytes -> 64-byte PrivateKey
func NewKeyFromSeed(seed []byte) PrivateKey {
	return stded25519.NewKeyFromSeed(seed)
}

// GenerateKey draws a key pair from r, or crypto/rand when r is nil.
func GenerateKey(r io.Reader) (PublicKey, PrivateKey, error) {
	if r == nil {
		r = rand.Reader
	}
	_, priv, err := stded25519.GenerateKey(r)
	if err != nil {
		return PublicKey{}, nil, err
	}
	return PublicKeyOf(priv), priv, nil
}

// PublicKeyOf returns the public half of priv.
func PublicKeyOf(priv PrivateKey) PublicKey {
	var pk PublicKey
	copy(pk[:], priv.Public().(stded25519.PublicKey))
	return pk
}

// Sign: signing uses the standard library (ZIP-215 issues are mainly about verification rules, not signing).
func Sign(privateKey PrivateKey, message []byte) Signature {
	var sig Signature
	copy(sig[:], stded25519.Sign(privateKey, message))
	return sig
}

// Verify applies ZIP-215 verification rules via ed25519consensus, so every
// node accepts exactly the same set of signatures.
func Verify(publicKey PublicKey, message []byte, sig Signature) error {
	if !consensus.Verify(stded25519.PublicKey(publicKey[:]), message, sig[:]) {
		return ErrBadSignature
	}
	return nil
}

// Address derives the rollup account address: the last 20 bytes of
// hasher(pubkey).
func (pk PublicKey) Address(hasher common.Hasher) common.Address {
	h := hasher.Hash(pk[:])
	return common.BytesToAddress(h.Bytes()[12:])
}

func (pk PublicKey) Hex() string {
	return common.Bytes2Hex(pk[:])
}

func (pk PublicKey) String() string {
	return pk.Hex()
}

func (s Signature) Hex() string {
	return common.Bytes2Hex(s[:])
}

// PublicKeyFromHex parses a 0x-prefixed 32-byte key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b := common.FromHex(s)
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("ed25519: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}
