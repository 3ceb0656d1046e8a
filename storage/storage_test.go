package storage

import (
	"testing"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/stretchr/testify/require"
)

func newProver(t *testing.T) (*ProverStorage, *PersistenceStore) {
	t.Helper()
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	s, err := NewProverStorage(ps, common.DefaultHasher, 16)
	require.NoError(t, err)
	return s, ps
}

func seed(t *testing.T, s Storage) common.Hash {
	t.Helper()
	changes := &ChangeLog{Entries: []ChangeEntry{
		{Key: []byte("a"), Write: Some([]byte("1"))},
		{Key: []byte("b"), Write: Some(make([]byte, 80))},
		{Key: []byte("c"), Write: Some([]byte("3"))},
	}}
	root, err := s.ValidateAndCommit(changes, NewWitness())
	require.NoError(t, err)
	return root
}

// runSlot reads a, reads missing key z, writes a and deletes c, in native mode.
func runSlot(t *testing.T, s Storage, w *Witness) common.Hash {
	t.Helper()
	a, found, err := s.Get([]byte("a"), w)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), a)

	_, found, err = s.Get([]byte("z"), w)
	require.NoError(t, err)
	require.False(t, found)

	changes := &ChangeLog{Entries: []ChangeEntry{
		{Key: []byte("a"), Read: Some([]byte("1")), Write: Some([]byte("11"))},
		{Key: []byte("c"), Write: None()},
		{Key: []byte("z"), Read: None()},
	}}
	root, err := s.ValidateAndCommit(changes, w)
	require.NoError(t, err)
	return root
}

func TestProverAndZkAgree(t *testing.T) {
	prover, _ := newProver(t)
	genesis := seed(t, prover)
	require.False(t, genesis.IsZero())

	w := NewWitness()
	nativeRoot := runSlot(t, prover, w)
	require.NotEqual(t, genesis, nativeRoot)
	require.Equal(t, 3, w.Len())

	zk := NewZkStorage(genesis, common.DefaultHasher)
	zkRoot := runSlot(t, zk, w.Clone())
	require.Equal(t, nativeRoot, zkRoot)
	require.Equal(t, nativeRoot, zk.Root())
}

func TestZkRejectsForgedRead(t *testing.T) {
	prover, _ := newProver(t)
	genesis := seed(t, prover)
	w := NewWitness()
	runSlot(t, prover, w)

	forged := NewWitness()
	forged.AddHint(encodeOptional([]byte("999"), true))
	replay := w.Clone()
	_, _ = replay.GetHint()
	for replay.Remaining() > 0 {
		h, _ := replay.GetHint()
		forged.AddHint(h)
	}

	zk := NewZkStorage(genesis, common.DefaultHasher)
	v, _, err := zk.Get([]byte("a"), forged)
	require.NoError(t, err)
	require.Equal(t, []byte("999"), v)
	_, _, err = zk.Get([]byte("z"), forged)
	require.NoError(t, err)

	_, err = zk.ValidateAndCommit(&ChangeLog{Entries: []ChangeEntry{
		{Key: []byte("a"), Read: Some([]byte("999"))},
		{Key: []byte("z"), Read: None()},
	}}, forged)
	require.ErrorIs(t, err, stferrors.ErrSWitnessReadMismatch)
}

func TestZkRejectsWrongPriorRoot(t *testing.T) {
	prover, _ := newProver(t)
	seed(t, prover)
	w := NewWitness()
	runSlot(t, prover, w)

	zk := NewZkStorage(common.Blake2Hash([]byte("other")), common.DefaultHasher)
	replay := w.Clone()
	_, _, err := zk.Get([]byte("a"), replay)
	require.NoError(t, err)
	_, _, err = zk.Get([]byte("z"), replay)
	require.NoError(t, err)
	_, err = zk.ValidateAndCommit(&ChangeLog{}, replay)
	require.ErrorIs(t, err, stferrors.ErrSWitnessRootMismatch)
}

func TestZkRejectsUnconsumedHints(t *testing.T) {
	prover, _ := newProver(t)
	genesis := seed(t, prover)
	w := NewWitness()
	runSlot(t, prover, w)

	// a trailing hint nobody asked for
	extra := w.Clone()
	extra.AddHint(encodeOptional([]byte("x"), true))
	zk := NewZkStorage(genesis, common.DefaultHasher)
	for _, k := range []string{"a", "z"} {
		_, _, err := zk.Get([]byte(k), extra)
		require.NoError(t, err)
	}
	_, err := zk.ValidateAndCommit(&ChangeLog{Entries: []ChangeEntry{
		{Key: []byte("a"), Read: Some([]byte("1"))},
		{Key: []byte("z"), Read: None()},
	}}, extra)
	require.ErrorIs(t, err, stferrors.ErrSMalformedWitness)

	// a replay that reads less than the native run
	zk = NewZkStorage(genesis, common.DefaultHasher)
	short := w.Clone()
	_, _, err = zk.Get([]byte("a"), short)
	require.NoError(t, err)
	_, err = zk.ValidateAndCommit(&ChangeLog{Entries: []ChangeEntry{
		{Key: []byte("a"), Read: Some([]byte("1"))},
	}}, short)
	require.ErrorIs(t, err, stferrors.ErrSMalformedWitness)
	require.Equal(t, genesis, zk.Root())
}

func TestZkExhaustedWitness(t *testing.T) {
	zk := NewZkStorage(common.Hash{}, common.DefaultHasher)
	_, _, err := zk.Get([]byte("a"), NewWitness())
	require.ErrorIs(t, err, stferrors.ErrSWitnessExhausted)
}

func TestProverStorageReopen(t *testing.T) {
	prover, ps := newProver(t)
	root := seed(t, prover)

	reopened, err := NewProverStorage(ps, common.DefaultHasher, 0)
	require.NoError(t, err)
	require.Equal(t, root, reopened.Root())

	v, found, err := reopened.Get([]byte("c"), nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("3"), v)

	k, err := common.NewHasher(common.HasherKeccak)
	require.NoError(t, err)
	_, err = NewProverStorage(ps, k, 0)
	require.Error(t, err, "root persisted under another hasher")
}

func TestWitnessEncoding(t *testing.T) {
	w := NewWitness()
	w.AddHint([]byte{1, 2, 3})
	w.AddHint(nil)
	w.AddHint(make([]byte, 300))

	b, err := w.Encode()
	require.NoError(t, err)
	decoded, err := DecodeWitness(b)
	require.NoError(t, err)
	require.Equal(t, 3, decoded.Len())

	h, err := decoded.GetHint()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, h)
	require.Equal(t, 2, decoded.Remaining())

	_, err = DecodeWitness([]byte{0xff})
	require.ErrorIs(t, err, stferrors.ErrSMalformedWitness)
}
