package valuesetter

import (
	"testing"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/types"
	"github.com/stretchr/testify/require"
)

var admin = common.HexToAddress("0x0000000000000000000000000000000000000001")

func newWorkingSet(t *testing.T) *state.WorkingSet {
	t.Helper()
	ps, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	s, err := storage.NewProverStorage(ps, common.DefaultHasher, 0)
	require.NoError(t, err)
	return state.NewWorkingSet(s)
}

func TestSetValue(t *testing.T) {
	ws := newWorkingSet(t)
	m := New()
	require.NoError(t, m.Genesis(ws, Config{Admin: admin}))

	_, found, err := m.Value(ws)
	require.NoError(t, err)
	require.False(t, found)

	err = m.Call(&SetValue{NewValue: 99}, ws, modules.NewContext(admin))
	require.NoError(t, err)
	v, found, err := m.Value(ws)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 99, v)
	require.Equal(t, []types.Event{types.NewEvent("set", "value_set: 99")}, ws.Events())
}

func TestSetValueNotAdmin(t *testing.T) {
	ws := newWorkingSet(t)
	m := New()
	require.NoError(t, m.Genesis(ws, Config{Admin: admin}))

	err := m.Call(&SetValue{NewValue: 1}, ws, modules.NewContext(common.Address{}))
	require.ErrorIs(t, err, ErrNotAdmin)
	require.Empty(t, ws.Events())
}

func TestDecodeCall(t *testing.T) {
	call, err := DecodeCall(codec.NewDecoder(codec.Encode(&SetValue{NewValue: 7})))
	require.NoError(t, err)
	require.Equal(t, &SetValue{NewValue: 7}, call)

	_, err = DecodeCall(codec.NewDecoder([]byte{9}))
	require.Error(t, err)
	_, err = DecodeCall(codec.NewDecoder([]byte{callSetValue, 1}))
	require.Error(t, err)
}
