package election

import (
	"testing"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/stretchr/testify/require"
)

var admin = common.HexToAddress("0x0101010101010101010101010101010101010101")

func newStorage(t *testing.T) *storage.ProverStorage {
	t.Helper()
	ps, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	s, err := storage.NewProverStorage(ps, common.DefaultHasher, 0)
	require.NoError(t, err)
	return s
}

func voter(i byte) common.Address {
	return common.BytesToAddress([]byte{0xee, i})
}

// runElection drives a full election and checks the result.
func runElection(t *testing.T, ws *state.WorkingSet) {
	m := New()
	adminCtx := modules.NewContext(admin)
	call := func(c CallMessage, ctx *modules.Context) {
		t.Helper()
		err := m.Call(c, ws, ctx)
		require.NoError(t, err)
	}

	require.NoError(t, m.Genesis(ws, Config{Admin: admin}))
	call(&SetCandidates{Names: []string{"candidate_1", "candidate_2"}}, adminCtx)
	for i := byte(1); i <= 3; i++ {
		call(&AddVoter{Voter: voter(i)}, adminCtx)
	}
	call(&Vote{Candidate: 0}, modules.NewContext(voter(1)))
	call(&Vote{Candidate: 1}, modules.NewContext(voter(2)))
	call(&Vote{Candidate: 1}, modules.NewContext(voter(3)))

	_, err := m.Result(ws)
	require.ErrorIs(t, err, ErrNotFrozen)
	call(&FreezeElection{}, adminCtx)

	winner, err := m.Result(ws)
	require.NoError(t, err)
	require.Equal(t, Candidate{Name: "candidate_2", Count: 2}, winner)
	n, err := m.NumberOfVotes(ws)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestElectionNativeThenZk(t *testing.T) {
	native := state.NewWorkingSet(newStorage(t))
	runElection(t, native)
	_, witness, err := native.Freeze()
	require.NoError(t, err)

	zk := state.NewWorkingSetWithWitness(storage.NewZkStorage(common.Hash{}, common.DefaultHasher), witness.Clone())
	runElection(t, zk)
}

func TestElectionRules(t *testing.T) {
	ws := state.NewWorkingSet(newStorage(t))
	m := New()
	adminCtx := modules.NewContext(admin)
	require.NoError(t, m.Genesis(ws, Config{Admin: admin}))

	err := m.Call(&SetCandidates{Names: []string{"a"}}, ws, modules.NewContext(voter(1)))
	require.ErrorIs(t, err, ErrNotAdmin)

	err = m.Call(&SetCandidates{Names: []string{"a", "b"}}, ws, adminCtx)
	require.NoError(t, err)
	err = m.Call(&SetCandidates{Names: []string{"c"}}, ws, adminCtx)
	require.ErrorIs(t, err, ErrCandidatesSet)

	err = m.Call(&AddVoter{Voter: voter(1)}, ws, adminCtx)
	require.NoError(t, err)
	err = m.Call(&AddVoter{Voter: voter(1)}, ws, adminCtx)
	require.ErrorIs(t, err, ErrVoterExists)

	err = m.Call(&Vote{Candidate: 0}, ws, modules.NewContext(voter(2)))
	require.ErrorIs(t, err, ErrNotAllowedToVote)
	err = m.Call(&Vote{Candidate: 5}, ws, modules.NewContext(voter(1)))
	require.ErrorIs(t, err, ErrUnknownCandidate)
	err = m.Call(&Vote{Candidate: 0}, ws, modules.NewContext(voter(1)))
	require.NoError(t, err)
	err = m.Call(&Vote{Candidate: 0}, ws, modules.NewContext(voter(1)))
	require.ErrorIs(t, err, ErrAlreadyVoted)

	err = m.Call(&FreezeElection{}, ws, adminCtx)
	require.NoError(t, err)
	err = m.Call(&AddVoter{Voter: voter(3)}, ws, adminCtx)
	require.ErrorIs(t, err, ErrFrozen)

	err = m.Call(&ClearElection{}, ws, adminCtx)
	require.NoError(t, err)
	_, err = m.Result(ws)
	require.ErrorIs(t, err, ErrNotFrozen)
	n, err := m.NumberOfVotes(ws)
	require.NoError(t, err)
	require.Zero(t, n)
}
