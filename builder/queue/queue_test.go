package queue

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/ed25519"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/modules/election"
	"github.com/colorfulnotion/rollup/modules/valuesetter"
	"github.com/colorfulnotion/rollup/runtime"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/stf"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/types"
	"github.com/stretchr/testify/require"
)

var hasher = common.DefaultHasher

func testKey(b byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize))
}

var (
	adminKey = testKey(1)
	userKey  = testKey(2)
	admin    = ed25519.PublicKeyOf(adminKey).Address(hasher)
)

func newRuntime() *runtime.Runtime {
	return runtime.New(hasher, runtime.DevGenesis(admin))
}

// newGenesisStorage returns storage holding the dev genesis.
func newGenesisStorage(t *testing.T) *storage.ProverStorage {
	t.Helper()
	ps, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	s, err := storage.NewProverStorage(ps, hasher, 0)
	require.NoError(t, err)
	_, err = stf.NewAppTemplate(s, newRuntime(), stf.Config{}).InitChain()
	require.NoError(t, err)
	return s
}

func newBuilder(t *testing.T, config Config) *BatchBuilder {
	t.Helper()
	b := NewBatchBuilder(config, newRuntime(), hasher)
	b.SetWorkingSet(state.NewWorkingSet(newGenesisStorage(t)))
	return b
}

func setValueTx(t *testing.T, priv ed25519.PrivateKey, value uint32, nonce uint64) []byte {
	t.Helper()
	return callTx(t, priv, &valuesetter.SetValue{NewValue: value}, nonce)
}

func callTx(t *testing.T, priv ed25519.PrivateKey, call modules.Call, nonce uint64) []byte {
	t.Helper()
	msg, err := runtime.EncodeCall(call)
	require.NoError(t, err)
	return types.NewTransaction(priv, msg, nonce, hasher).Encode()
}

func TestAcceptTxCapacity(t *testing.T) {
	b := NewBatchBuilder(DefaultConfig(), newRuntime(), hasher)
	for i := 0; i < DefaultMaxMempoolSize; i++ {
		require.NoError(t, b.AcceptTx([]byte{byte(i)}))
	}
	err := b.AcceptTx([]byte{0xff})
	require.ErrorIs(t, err, stferrors.ErrMMempoolFull)
	require.Equal(t, DefaultMaxMempoolSize, b.Len())

	// FIFO order is preserved
	for i, raw := range b.mempool {
		require.Equal(t, []byte{byte(i)}, raw)
	}
}

func TestGetNextBlobUninitialized(t *testing.T) {
	b := NewBatchBuilder(DefaultConfig(), newRuntime(), hasher)
	require.NoError(t, b.AcceptTx([]byte{1}))
	_, err := b.GetNextBlob()
	require.ErrorIs(t, err, stferrors.ErrMWorkingSetUninitialized)
	require.Equal(t, 1, b.Len())
}

// bigTx is an admin election call whose size grows with nameLen.
func bigTx(t *testing.T, nonce uint64, nameLen int) []byte {
	t.Helper()
	return callTx(t, adminKey, &election.SetCandidates{Names: []string{strings.Repeat("x", nameLen)}}, nonce)
}

func TestGetNextBlobBudget(t *testing.T) {
	small := setValueTx(t, adminKey, 1, 0)
	// fits an empty batch but not after small
	big := bigTx(t, 1, 200)
	b := newBuilder(t, Config{MaxMempoolSize: 10, MaxBatchBytes: len(big)})
	require.Less(t, len(small), len(big))

	require.NoError(t, b.AcceptTx(small))
	require.NoError(t, b.AcceptTx(big))

	txs, err := b.GetNextBlob()
	require.NoError(t, err)
	require.Equal(t, [][]byte{small}, txs)
	require.Equal(t, 1, b.Len())
	require.Equal(t, big, b.mempool[0])
	require.Empty(t, b.Dismissed())

	// with a fresh budget it is included
	txs, err = b.GetNextBlob()
	require.NoError(t, err)
	require.Equal(t, [][]byte{big}, txs)
	require.Zero(t, b.Len())
}

func TestOversizedTxStaysAtHead(t *testing.T) {
	b := newBuilder(t, Config{MaxMempoolSize: 10, MaxBatchBytes: 256})
	huge := bigTx(t, 0, 300)
	require.Greater(t, len(huge), 256)

	err := b.AcceptTx(huge)
	require.ErrorIs(t, err, ErrTxTooLarge)
	require.Zero(t, b.Len())

	// queued anyway, e.g. after the budget was lowered: it is never dropped
	b.mempool = append(b.mempool, huge)
	for i := 0; i < 2; i++ {
		txs, err := b.GetNextBlob()
		require.NoError(t, err)
		require.Empty(t, txs)
		require.Equal(t, 1, b.Len())
		require.Empty(t, b.Dismissed())
	}
}

func TestFailedCandidatesDoNotConsumeBudget(t *testing.T) {
	failing := setValueTx(t, userKey, 1, 0)
	next := bigTx(t, 0, 100)
	b := newBuilder(t, Config{MaxMempoolSize: 10, MaxBatchBytes: len(next)})
	require.Less(t, len(failing), len(next))

	require.NoError(t, b.AcceptTx(failing))
	require.NoError(t, b.AcceptTx(next))
	txs, err := b.GetNextBlob()
	require.NoError(t, err)
	require.Equal(t, [][]byte{next}, txs)
	require.Len(t, b.Dismissed(), 1)
	require.ErrorIs(t, b.Dismissed()[0].Reason, stferrors.ErrHDispatch)
	require.Zero(t, b.Len())
}

func TestGetNextBlobPushBackKeepsOrder(t *testing.T) {
	a := setValueTx(t, adminKey, 1, 0)
	c := setValueTx(t, adminKey, 2, 1)
	d := setValueTx(t, adminKey, 3, 2)
	b := newBuilder(t, Config{MaxMempoolSize: 10, MaxBatchBytes: len(a) + len(c)})
	for _, raw := range [][]byte{a, c, d} {
		require.NoError(t, b.AcceptTx(raw))
	}

	txs, err := b.GetNextBlob()
	require.NoError(t, err)
	require.Equal(t, [][]byte{a, c}, txs)
	require.Equal(t, [][]byte{d}, b.mempool)

	// the pre-executed nonces carry over to the next build
	txs, err = b.GetNextBlob()
	require.NoError(t, err)
	require.Equal(t, [][]byte{d}, txs)
}

func TestGetNextBlobDismissals(t *testing.T) {
	b := newBuilder(t, DefaultConfig())

	good := setValueTx(t, adminKey, 7, 0)
	badSig, err := types.DecodeTransaction(setValueTx(t, userKey, 1, 0))
	require.NoError(t, err)
	badSig.Signature[5] ^= 1
	notAdmin := setValueTx(t, userKey, 2, 0)
	replay := setValueTx(t, adminKey, 8, 0)
	badCall := types.NewTransaction(userKey, []byte{0xee}, 0, hasher).Encode()

	for _, raw := range [][]byte{[]byte("garbage"), badSig.Encode(), notAdmin, good, replay, badCall} {
		require.NoError(t, b.AcceptTx(raw))
	}
	txs, err := b.GetNextBlob()
	require.NoError(t, err)
	require.Equal(t, [][]byte{good}, txs)
	require.Zero(t, b.Len())

	dismissed := b.Dismissed()
	require.Len(t, dismissed, 5)
	require.ErrorIs(t, dismissed[0].Reason, stferrors.ErrXTransactionDecode)
	require.ErrorIs(t, dismissed[1].Reason, stferrors.ErrXSignatureInvalid)
	require.ErrorIs(t, dismissed[2].Reason, stferrors.ErrHDispatch)
	require.ErrorIs(t, dismissed[3].Reason, stferrors.ErrHPreDispatchHook)
	require.ErrorIs(t, dismissed[4].Reason, stferrors.ErrXCallDecode)
	require.Equal(t, hasher.Hash(notAdmin), dismissed[2].TxHash)

	stats := b.GetStats()
	require.Equal(t, 6, stats.Accepted)
	require.Equal(t, 1, stats.Included)
	require.Equal(t, 5, stats.Rejected)
}

func TestFailedCandidateLeavesNoWrites(t *testing.T) {
	s := newGenesisStorage(t)
	rt := newRuntime()
	b := NewBatchBuilder(DefaultConfig(), rt, hasher)
	ws := state.NewWorkingSet(s)
	b.SetWorkingSet(ws)

	require.NoError(t, b.AcceptTx(setValueTx(t, userKey, 2, 0)))
	txs, err := b.GetNextBlob()
	require.NoError(t, err)
	require.Empty(t, txs)

	// the reverted nonce bump means nonce 0 is still valid for userKey
	_, found, err := rt.Accounts.Address(ws, ed25519.PublicKeyOf(userKey))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 0, ws.Depth())
}

// brokenStorage fails every read.
type brokenStorage struct {
	storage.Storage
}

var errDiskGone = errors.New("disk gone")

func (brokenStorage) Get(key []byte, witness *storage.Witness) ([]byte, bool, error) {
	return nil, false, errDiskGone
}

func TestStorageErrorIsFatal(t *testing.T) {
	b := NewBatchBuilder(DefaultConfig(), newRuntime(), hasher)
	ws := state.NewWorkingSet(brokenStorage{})
	b.SetWorkingSet(ws)
	require.NoError(t, b.AcceptTx(setValueTx(t, adminKey, 1, 0)))

	_, err := b.GetNextBlob()
	require.ErrorIs(t, err, stferrors.ErrFatal)
	require.ErrorIs(t, err, errDiskGone)
	require.True(t, stferrors.IsFatal(err))
	// the candidate scope was still closed
	require.Equal(t, 0, ws.Depth())
	require.Empty(t, b.Dismissed())
}
