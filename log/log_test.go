package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	require.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("TRACE")
	require.NoError(t, err)
	require.Equal(t, LevelTrace, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestModuleFiltering(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var buf bytes.Buffer
	require.NoError(t, InitJSONLogger(&buf, "trace"))

	DisableModule(Mempool)
	Debug(Mempool, "hidden")
	require.Zero(t, buf.Len())

	EnableModule(Mempool)
	defer DisableModule(Mempool)
	Debug(Mempool, "shown", "n", 3)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "shown", rec["msg"])
	require.Equal(t, Mempool, rec["module"])
	require.Equal(t, "DEBUG", rec["level"])
	require.EqualValues(t, 3, rec["n"])
}

func TestInfoIgnoresModuleSwitch(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var buf bytes.Buffer
	require.NoError(t, InitJSONLogger(&buf, "info"))
	DisableModule(STF)
	Info(STF, "always")
	require.Contains(t, buf.String(), "always")
}
