package types

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/ed25519"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, ed25519.SeedSize))
}

func TestTransactionWireFormat(t *testing.T) {
	tx := NewTransaction(testKey(), []byte{0xaa, 0xbb}, 0x0102030405060708, common.DefaultHasher)
	raw := tx.Encode()

	// signature, pubkey, compact length 2, message, LE nonce
	require.Len(t, raw, 64+32+1+2+8)
	assert.Equal(t, tx.Signature[:], raw[:64])
	assert.Equal(t, tx.PubKey[:], raw[64:96])
	assert.Equal(t, []byte{0x08, 0xaa, 0xbb}, raw[96:99])
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, raw[99:])

	decoded, err := DecodeTransaction(raw)
	require.NoError(t, err)
	require.Equal(t, tx, decoded)
	require.NoError(t, decoded.Verify(common.DefaultHasher))
}

func TestTransactionDecodeErrors(t *testing.T) {
	raw := NewTransaction(testKey(), []byte("m"), 1, common.DefaultHasher).Encode()

	_, err := DecodeTransaction(raw[:len(raw)-1])
	require.ErrorIs(t, err, stferrors.ErrXTransactionDecode)

	_, err = DecodeTransaction(append(append([]byte(nil), raw...), 0))
	require.ErrorIs(t, err, stferrors.ErrXTransactionDecode)
	require.ErrorIs(t, err, codec.ErrTrailingBytes)
}

func TestSignatureCoversMessageAndNonce(t *testing.T) {
	h := common.DefaultHasher
	tx := NewTransaction(testKey(), []byte("payload"), 5, h)
	digest := h.Hash(append([]byte("payload"), common.Uint64ToBytes(5)...))
	require.Equal(t, digest, tx.SigningDigest(h))

	bumped := *tx
	bumped.Nonce = 6
	require.ErrorIs(t, bumped.Verify(h), stferrors.ErrXSignatureInvalid)

	k, err := common.NewHasher(common.HasherKeccak)
	require.NoError(t, err)
	require.ErrorIs(t, tx.Verify(k), stferrors.ErrXSignatureInvalid)
}

func TestBatchWireFormat(t *testing.T) {
	txs := [][]byte{{1, 2, 3}, {}, bytes.Repeat([]byte{7}, 70)}
	blob := EncodeBatch(txs)

	e := codec.NewEncoder()
	e.WriteUint(3)
	require.Equal(t, e.Bytes(), blob[:1])

	b, err := DecodeBatch(blob)
	require.NoError(t, err)
	require.Equal(t, txs, b.Txs)
	require.Equal(t, 73, b.Size())

	_, err = DecodeBatch(blob[:len(blob)-1])
	require.ErrorIs(t, err, stferrors.ErrXBatchDecode)
	_, err = DecodeBatch(nil)
	require.ErrorIs(t, err, stferrors.ErrXBatchDecode)
	_, err = DecodeBatch([]byte{0xff, 0xff})
	require.ErrorIs(t, err, stferrors.ErrXBatchDecode)
}

func TestReceiptJSON(t *testing.T) {
	r := &BatchReceipt{
		BatchHash: common.Blake2Hash([]byte("blob")),
		TxReceipts: []TransactionReceipt{
			{TxHash: common.Blake2Hash([]byte("tx")), Events: []Event{NewEvent("set", "value_set: 9")}, Effect: TxSuccessful},
			{Effect: TxReverted},
		},
		Outcome: Slashed(StatelessVerificationFailed),
	}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	require.Contains(t, string(b), `"outcome":"Slashed(StatelessVerificationFailed)"`)
	require.Contains(t, string(b), `"effect":"Reverted"`)
	require.Contains(t, string(b), `{"key":"set","value":"value_set: 9"}`)
	require.Equal(t, 1, r.Successful())

	require.Equal(t, "Rewarded", Rewarded().String())
	require.Equal(t, "Ignored", Ignored().String())
}

func TestReceiptTree(t *testing.T) {
	r := &BatchReceipt{
		TxReceipts: []TransactionReceipt{
			{Events: []Event{NewEvent("set", "value_set: 5")}, Effect: TxSuccessful},
			{Effect: TxReverted},
		},
		Outcome: Rewarded(),
	}
	out := ReceiptsTree("slot 1", []*BatchReceipt{r, {Outcome: Slashed(InvalidBatchEncoding)}}).String()
	assert.Contains(t, out, "slot 1")
	assert.Contains(t, out, "set=value_set: 5")
	assert.Contains(t, out, "Reverted")
	assert.Contains(t, out, "Slashed(InvalidBatchEncoding)")
	assert.Contains(t, r.ToTree().String(), "Txs: 2")
}
