package runtime

import (
	"bytes"
	"testing"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/ed25519"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/modules/accounts"
	"github.com/colorfulnotion/rollup/modules/election"
	"github.com/colorfulnotion/rollup/modules/valuesetter"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/types"
	"github.com/stretchr/testify/require"
)

func newWorkingSet(t *testing.T) *state.WorkingSet {
	t.Helper()
	ps, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	s, err := storage.NewProverStorage(ps, common.DefaultHasher, 0)
	require.NoError(t, err)
	return state.NewWorkingSet(s)
}

func TestCallEncoding(t *testing.T) {
	rt := New(common.DefaultHasher, GenesisConfig{})
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, ed25519.SeedSize))
	calls := []modules.Call{
		accounts.NewUpdatePublicKey(priv),
		&valuesetter.SetValue{NewValue: 42},
		&election.SetCandidates{Names: []string{"x", "y"}},
		&election.Vote{Candidate: 1},
		&election.FreezeElection{},
	}
	for _, c := range calls {
		msg, err := EncodeCall(c)
		require.NoError(t, err)
		got, err := rt.DecodeCall(msg)
		require.NoError(t, err)
		require.Equal(t, c, got)
		require.Equal(t, c.Module(), got.Module())
	}

	msg, err := EncodeCall(&valuesetter.SetValue{NewValue: 42})
	require.NoError(t, err)
	require.Equal(t, ValueSetterIndex, msg[0])
}

func TestDecodeCallRejects(t *testing.T) {
	rt := New(common.DefaultHasher, GenesisConfig{})
	_, err := rt.DecodeCall(nil)
	require.Error(t, err)
	_, err = rt.DecodeCall([]byte{0xff})
	require.Error(t, err)

	msg, err := EncodeCall(&election.ClearElection{})
	require.NoError(t, err)
	_, err = rt.DecodeCall(append(msg, 0))
	require.Error(t, err)
}

func TestGenesisAndDispatch(t *testing.T) {
	hasher := common.DefaultHasher
	adminKey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{2}, ed25519.SeedSize))
	adminAddr := ed25519.PublicKeyOf(adminKey).Address(hasher)
	rt := New(hasher, DevGenesis(adminAddr))
	ws := newWorkingSet(t)
	require.NoError(t, rt.Genesis(ws))

	msg, err := EncodeCall(&valuesetter.SetValue{NewValue: 5})
	require.NoError(t, err)
	tx := types.NewTransaction(adminKey, msg, 0, hasher)

	sender, err := rt.PreDispatchTxHook(tx, ws)
	require.NoError(t, err)
	require.Equal(t, adminAddr, sender)
	call, err := rt.DecodeCall(tx.RuntimeMsg)
	require.NoError(t, err)
	err = rt.DispatchCall(call, ws, modules.NewContext(sender))
	require.NoError(t, err)
	require.NoError(t, rt.PostDispatchTxHook(tx, ws))

	v, found, err := rt.ValueSetter.Value(ws)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 5, v)
}
