package types

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/ed25519"
	"github.com/colorfulnotion/rollup/stferrors"
)

// Transaction is a signed runtime message. The signature covers
// hasher(RuntimeMsg || LE64(Nonce)), not the encoded transaction.
type Transaction struct {
	Signature  ed25519.Signature `json:"signature"`
	PubKey     ed25519.PublicKey `json:"pub_key"`
	RuntimeMsg []byte            `json:"runtime_msg"`
	Nonce      uint64            `json:"nonce"`
}

// NewTransaction signs msg with nonce under priv.
func NewTransaction(priv ed25519.PrivateKey, msg []byte, nonce uint64, hasher common.Hasher) *Transaction {
	tx := &Transaction{
		PubKey:     ed25519.PublicKeyOf(priv),
		RuntimeMsg: append([]byte(nil), msg...),
		Nonce:      nonce,
	}
	digest := tx.SigningDigest(hasher)
	tx.Signature = ed25519.Sign(priv, digest.Bytes())
	return tx
}

// SigningDigest is the hash the signature is computed over.
func (tx *Transaction) SigningDigest(hasher common.Hasher) common.Hash {
	return hasher.Hash(tx.RuntimeMsg, common.Uint64ToBytes(tx.Nonce))
}

// Verify checks the signature against the embedded public key.
func (tx *Transaction) Verify(hasher common.Hasher) error {
	digest := tx.SigningDigest(hasher)
	if err := ed25519.Verify(tx.PubKey, digest.Bytes(), tx.Signature); err != nil {
		return fmt.Errorf("%w: pubkey %s nonce %d", stferrors.ErrXSignatureInvalid, tx.PubKey, tx.Nonce)
	}
	return nil
}

// Sender is the account address derived from the public key.
func (tx *Transaction) Sender(hasher common.Hasher) common.Address {
	return tx.PubKey.Address(hasher)
}

func (tx *Transaction) EncodeTo(e *codec.Encoder) {
	e.WriteFixed(tx.Signature[:])
	e.WriteFixed(tx.PubKey[:])
	e.WriteBytes(tx.RuntimeMsg)
	e.WriteU64(tx.Nonce)
}

func (tx *Transaction) DecodeFrom(d *codec.Decoder) error {
	sig, err := d.ReadFixed(ed25519.SignatureSize)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	pk, err := d.ReadFixed(ed25519.PublicKeySize)
	if err != nil {
		return fmt.Errorf("pub_key: %w", err)
	}
	msg, err := d.ReadBytes()
	if err != nil {
		return fmt.Errorf("runtime_msg: %w", err)
	}
	nonce, err := d.ReadU64()
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	copy(tx.Signature[:], sig)
	copy(tx.PubKey[:], pk)
	tx.RuntimeMsg, tx.Nonce = msg, nonce
	return nil
}

// Encode returns the wire form of tx.
func (tx *Transaction) Encode() []byte {
	return codec.Encode(tx)
}

// DecodeTransaction parses the wire form of a transaction.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := codec.Decode(raw, tx); err != nil {
		return nil, fmt.Errorf("%w: %w", stferrors.ErrXTransactionDecode, err)
	}
	return tx, nil
}

func (tx *Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Signature  string `json:"signature"`
		PubKey     string `json:"pub_key"`
		RuntimeMsg string `json:"runtime_msg"`
		Nonce      uint64 `json:"nonce"`
	}{tx.Signature.Hex(), tx.PubKey.Hex(), common.Bytes2Hex(tx.RuntimeMsg), tx.Nonce})
}

// String method returns the Transaction as a formatted JSON string
func (tx *Transaction) String() string {
	jsonData, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}
