package stf

import (
	"testing"

	"github.com/colorfulnotion/rollup/modules/valuesetter"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/stretchr/testify/require"
)

func TestVerifyBatch(t *testing.T) {
	var raws [][]byte
	for i := uint64(0); i < 16; i++ {
		raws = append(raws, signedTx(t, adminKey, &valuesetter.SetValue{NewValue: uint32(i)}, i))
	}
	txs, err := VerifyBatch(raws, hasher, 4)
	require.NoError(t, err)
	require.Len(t, txs, 16)
	for i, tx := range txs {
		require.EqualValues(t, i, tx.Nonce)
	}

	raws[9] = badSigTx(t, userKey, 0)
	raws[3] = []byte{1, 2, 3}
	for n := 0; n < 5; n++ {
		_, err = VerifyBatch(raws, hasher, 0)
		require.ErrorIs(t, err, stferrors.ErrXTransactionDecode)
		require.Contains(t, err.Error(), "tx 3")
	}
}

func TestVerifyStateless(t *testing.T) {
	tx, err := VerifyStateless(signedTx(t, userKey, &valuesetter.SetValue{NewValue: 1}, 4), hasher)
	require.NoError(t, err)
	require.EqualValues(t, 4, tx.Nonce)

	_, err = VerifyStateless(badSigTx(t, userKey, 0), hasher)
	require.ErrorIs(t, err, stferrors.ErrXSignatureInvalid)
}
