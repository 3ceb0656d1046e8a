package state

import (
	"testing"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *storage.ProverStorage {
	t.Helper()
	ps, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	s, err := storage.NewProverStorage(ps, common.DefaultHasher, 0)
	require.NoError(t, err)
	return s
}

// seedStorage commits key -> value pairs through a working set.
func seedStorage(t *testing.T, s storage.Storage, kv map[string]string) common.Hash {
	t.Helper()
	ws := NewWorkingSet(s)
	for k, v := range kv {
		ws.Set(StorageKey(k), []byte(v))
	}
	changes, witness, err := ws.Freeze()
	require.NoError(t, err)
	root, err := s.ValidateAndCommit(changes, witness)
	require.NoError(t, err)
	return root
}

func mustGet(t *testing.T, ws *WorkingSet, key string) (string, bool) {
	t.Helper()
	v, found, err := ws.Get(StorageKey(key))
	require.NoError(t, err)
	return string(v), found
}

func TestReadThroughScopes(t *testing.T) {
	s := newTestStorage(t)
	seedStorage(t, s, map[string]string{"a": "base"})

	ws := NewWorkingSet(s)
	v, found := mustGet(t, ws, "a")
	require.True(t, found)
	require.Equal(t, "base", v)

	outer := ws.EnterScope()
	ws.Set(StorageKey("a"), []byte("outer"))
	inner := ws.EnterScope()
	v, _ = mustGet(t, ws, "a")
	require.Equal(t, "outer", v, "inner scope sees parent writes")

	ws.Set(StorageKey("a"), []byte("inner"))
	require.NoError(t, inner.Commit())
	v, _ = mustGet(t, ws, "a")
	require.Equal(t, "inner", v)

	require.NoError(t, outer.Revert())
	v, _ = mustGet(t, ws, "a")
	require.Equal(t, "base", v, "revert discards writes merged from committed children")
	require.Equal(t, 0, ws.Depth())
}

func TestCommitMergesIntoParentOnly(t *testing.T) {
	s := newTestStorage(t)
	ws := NewWorkingSet(s)

	outer := ws.EnterScope()
	inner := ws.EnterScope()
	ws.Set(StorageKey("k"), []byte("v"))
	require.NoError(t, inner.Commit())
	require.Equal(t, 1, ws.Depth())

	require.NoError(t, outer.Revert())
	_, found := mustGet(t, ws, "k")
	require.False(t, found, "commit into a reverted parent never reaches the root")
}

func TestDeleteHidesBackendValue(t *testing.T) {
	s := newTestStorage(t)
	seedStorage(t, s, map[string]string{"gone": "x"})
	ws := NewWorkingSet(s)

	sc := ws.EnterScope()
	ws.Delete(StorageKey("gone"))
	_, found := mustGet(t, ws, "gone")
	require.False(t, found)
	require.NoError(t, sc.Commit())

	changes, _, err := ws.Freeze()
	require.NoError(t, err)
	require.Len(t, changes.Entries, 1)
	require.NotNil(t, changes.Entries[0].Write)
	require.False(t, changes.Entries[0].Write.Exists)
}

func TestScopeHandleMisuse(t *testing.T) {
	ws := NewWorkingSet(newTestStorage(t))
	outer := ws.EnterScope()
	inner := ws.EnterScope()

	require.ErrorIs(t, outer.Commit(), stferrors.ErrWScopeNotInnermost)
	require.NoError(t, inner.Revert())
	require.ErrorIs(t, inner.Revert(), stferrors.ErrWScopeConsumed)
	require.ErrorIs(t, inner.Commit(), stferrors.ErrWScopeConsumed)
	require.NoError(t, outer.Commit())
}

func TestFreezeRules(t *testing.T) {
	ws := NewWorkingSet(newTestStorage(t))
	sc := ws.EnterScope()
	_, _, err := ws.Freeze()
	require.ErrorIs(t, err, stferrors.ErrWScopesOpen)

	require.NoError(t, sc.Commit())
	ws.Set(StorageKey("b"), []byte("2"))
	ws.Set(StorageKey("a"), []byte("1"))
	changes, witness, err := ws.Freeze()
	require.NoError(t, err)
	require.NotNil(t, witness)
	require.Equal(t, []byte("a"), changes.Entries[0].Key, "change log is sorted")
	require.Equal(t, []byte("b"), changes.Entries[1].Key)

	_, _, err = ws.Freeze()
	require.ErrorIs(t, err, stferrors.ErrWWorkingSetFrozen)
	assert.Panics(t, func() { ws.Set(StorageKey("c"), nil) })
}

func TestRevertedReadsStayInChangeLog(t *testing.T) {
	s := newTestStorage(t)
	seedStorage(t, s, map[string]string{"r": "1"})
	ws := NewWorkingSet(s)

	sc := ws.EnterScope()
	mustGet(t, ws, "r")
	ws.Set(StorageKey("w"), []byte("x"))
	require.NoError(t, sc.Revert())

	changes, witness, err := ws.Freeze()
	require.NoError(t, err)
	require.Len(t, changes.Entries, 1)
	require.Equal(t, []byte("r"), changes.Entries[0].Key)
	require.Nil(t, changes.Entries[0].Write)
	require.Equal(t, []byte("1"), changes.Entries[0].Read.Value)
	require.Equal(t, 1, witness.Len())
}

func TestNativeAndZkReplayMatch(t *testing.T) {
	s := newTestStorage(t)
	prior := seedStorage(t, s, map[string]string{"a": "1", "b": "2"})

	run := func(ws *WorkingSet) {
		sc := ws.EnterScope()
		mustGet(t, ws, "a")
		ws.Set(StorageKey("c"), []byte("3"))
		require.NoError(t, sc.Revert())

		sc = ws.EnterScope()
		v, _ := mustGet(t, ws, "b")
		ws.Set(StorageKey("b"), append([]byte(v), '!'))
		ws.Delete(StorageKey("a"))
		require.NoError(t, sc.Commit())
	}

	native := NewWorkingSet(s)
	run(native)
	changes, witness, err := native.Freeze()
	require.NoError(t, err)
	nativeRoot, err := s.ValidateAndCommit(changes, witness)
	require.NoError(t, err)

	zk := storage.NewZkStorage(prior, common.DefaultHasher)
	replay := NewWorkingSetWithWitness(zk, witness.Clone())
	run(replay)
	zkChanges, zkWitness, err := replay.Freeze()
	require.NoError(t, err)
	zkRoot, err := zk.ValidateAndCommit(zkChanges, zkWitness)
	require.NoError(t, err)
	require.Equal(t, nativeRoot, zkRoot)
	require.Zero(t, zkWitness.Remaining())
}

func TestBackendErrorPoisonsWorkingSet(t *testing.T) {
	zk := storage.NewZkStorage(common.Hash{}, common.DefaultHasher)
	ws := NewWorkingSetWithWitness(zk, storage.NewWitness())

	_, _, err := ws.Get(StorageKey("a"))
	require.ErrorIs(t, err, stferrors.ErrSWitnessExhausted)
	require.ErrorIs(t, ws.Err(), stferrors.ErrSWitnessExhausted)
	_, _, err = ws.Freeze()
	require.ErrorIs(t, err, stferrors.ErrSWitnessExhausted)
}

func TestEventsFollowScopes(t *testing.T) {
	ws := NewWorkingSet(newTestStorage(t))
	keep := ws.EnterScope()
	ws.AddEvent("k", "kept")
	require.Len(t, keep.Events(), 1)
	require.NoError(t, keep.Commit())

	drop := ws.EnterScope()
	ws.AddEvent("k", "dropped")
	require.NoError(t, drop.Revert())

	events := ws.Events()
	require.Len(t, events, 1)
	require.Equal(t, "kept", string(events[0].Value))
}

func TestPrefixDisplay(t *testing.T) {
	require.Equal(t, "value_setter/value/", NewPrefix("value_setter", "value").String())
	require.Equal(t, `ab\x00\xff`, Prefix([]byte{'a', 'b', 0, 0xff}).String())
	require.Equal(t, StorageKey("m/x"), NewStorageKey(Prefix("m/"), []byte("x")))
}
