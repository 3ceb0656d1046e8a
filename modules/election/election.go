// Package election runs a single admin-managed election: the admin sets the
// candidates and the allowed voters, each voter votes once, and the result is
// readable after the admin freezes the election.
package election

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
)

const ModuleName = "election"

var (
	ErrNotAdmin         = errors.New("election: only admin can do this")
	ErrCandidatesSet    = errors.New("election: candidates already set")
	ErrVoterExists      = errors.New("election: voter already exists")
	ErrNotAllowedToVote = errors.New("election: voter is not allowed to vote")
	ErrAlreadyVoted     = errors.New("election: voter already voted")
	ErrFrozen           = errors.New("election: election is frozen")
	ErrNotFrozen        = errors.New("election: election is not frozen")
	ErrUnknownCandidate = errors.New("election: unknown candidate")
	ErrNoCandidates     = errors.New("election: no candidates")
)

type voterStatus uint8

const (
	voterFresh voterStatus = iota
	voterVoted
)

type Candidate struct {
	Name  string `json:"name"`
	Count uint64 `json:"count"`
}

// Candidates is the stored candidate list, in registration order.
type Candidates struct {
	List []Candidate
}

func (c *Candidates) EncodeTo(e *codec.Encoder) {
	e.WriteLength(len(c.List))
	for _, cand := range c.List {
		e.WriteString(cand.Name)
		e.WriteU64(cand.Count)
	}
}

func (c *Candidates) DecodeFrom(d *codec.Decoder) error {
	n, err := d.ReadLength(9)
	if err != nil {
		return err
	}
	c.List = make([]Candidate, n)
	for i := range c.List {
		if c.List[i].Name, err = d.ReadString(); err != nil {
			return err
		}
		if c.List[i].Count, err = d.ReadU64(); err != nil {
			return err
		}
	}
	return nil
}

type statusCodec struct{}

func (statusCodec) Encode(v voterStatus) []byte { return []byte{byte(v)} }

func (statusCodec) Decode(b []byte) (voterStatus, error) {
	if len(b) != 1 || b[0] > byte(voterVoted) {
		return 0, fmt.Errorf("voter status: invalid encoding %x", b)
	}
	return voterStatus(b[0]), nil
}

type Config struct {
	Admin common.Address `yaml:"admin" json:"admin"`
}

type Module struct {
	admin         state.StateValue[common.Address]
	candidates    state.StateValue[*Candidates]
	allowedVoters state.StateMap[common.Address, voterStatus]
	numberOfVotes state.StateValue[uint64]
	isFrozen      state.StateValue[bool]
}

func New() *Module {
	p := func(name string) state.Prefix { return state.NewPrefix(ModuleName, name) }
	return &Module{
		admin: state.NewStateValue[common.Address](p("admin"), state.AddressCodec{}),
		candidates: state.NewStateValue[*Candidates](p("candidates"),
			state.StructCodec[*Candidates]{New: func() *Candidates { return new(Candidates) }}),
		allowedVoters: state.NewStateMap[common.Address, voterStatus](p("allowed_voters"), state.AddressCodec{}, statusCodec{}),
		numberOfVotes: state.NewStateValue[uint64](p("number_of_votes"), state.Uint64Codec{}),
		isFrozen:      state.NewStateValue[bool](p("is_frozen"), state.BoolCodec{}),
	}
}

func (m *Module) Genesis(ws *state.WorkingSet, cfg Config) error {
	m.admin.Set(ws, cfg.Admin)
	m.isFrozen.Set(ws, false)
	return nil
}

func (m *Module) Call(msg CallMessage, ws *state.WorkingSet, ctx *modules.Context) error {
	var err error
	switch c := msg.(type) {
	case *SetCandidates:
		err = m.setCandidates(c.Names, ws, ctx)
	case *AddVoter:
		err = m.addVoter(c.Voter, ws, ctx)
	case *Vote:
		err = m.vote(c.Candidate, ws, ctx)
	case *ClearElection:
		err = m.clear(ws, ctx)
	case *FreezeElection:
		err = m.freeze(ws, ctx)
	default:
		err = fmt.Errorf("election: unhandled call %T", msg)
	}
	if err != nil {
		return err
	}
	return nil
}

func (m *Module) onlyAdmin(ws *state.WorkingSet, ctx *modules.Context) error {
	admin, err := m.admin.GetOrErr(ws)
	if err != nil {
		return err
	}
	if admin != ctx.Sender {
		return ErrNotAdmin
	}
	return nil
}

func (m *Module) notFrozen(ws *state.WorkingSet) error {
	frozen, _, err := m.isFrozen.Get(ws)
	if err != nil {
		return err
	}
	if frozen {
		return ErrFrozen
	}
	return nil
}

func (m *Module) setCandidates(names []string, ws *state.WorkingSet, ctx *modules.Context) error {
	if err := m.onlyAdmin(ws, ctx); err != nil {
		return err
	}
	if err := m.notFrozen(ws); err != nil {
		return err
	}
	_, found, err := m.candidates.Get(ws)
	if err != nil {
		return err
	}
	if found {
		return ErrCandidatesSet
	}
	list := make([]Candidate, len(names))
	for i, n := range names {
		list[i] = Candidate{Name: n}
	}
	m.candidates.Set(ws, &Candidates{List: list})
	ws.AddEvent("Election: set_candidates", fmt.Sprintf("candidates: %d", len(names)))
	return nil
}

func (m *Module) addVoter(voter common.Address, ws *state.WorkingSet, ctx *modules.Context) error {
	if err := m.onlyAdmin(ws, ctx); err != nil {
		return err
	}
	if err := m.notFrozen(ws); err != nil {
		return err
	}
	_, found, err := m.allowedVoters.Get(ws, voter)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s", ErrVoterExists, voter)
	}
	m.allowedVoters.Set(ws, voter, voterFresh)
	ws.AddEvent("Election: add_voter", voter.Hex())
	return nil
}

func (m *Module) vote(index uint64, ws *state.WorkingSet, ctx *modules.Context) error {
	if err := m.notFrozen(ws); err != nil {
		return err
	}
	status, found, err := m.allowedVoters.Get(ws, ctx.Sender)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotAllowedToVote, ctx.Sender)
	}
	if status == voterVoted {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, ctx.Sender)
	}
	cands, found, err := m.candidates.Get(ws)
	if err != nil {
		return err
	}
	if !found || index >= uint64(len(cands.List)) {
		return fmt.Errorf("%w: %d", ErrUnknownCandidate, index)
	}
	cands.List[index].Count++
	m.candidates.Set(ws, cands)
	m.allowedVoters.Set(ws, ctx.Sender, voterVoted)
	n, _, err := m.numberOfVotes.Get(ws)
	if err != nil {
		return err
	}
	m.numberOfVotes.Set(ws, n+1)
	ws.AddEvent("Election: vote", fmt.Sprintf("%s -> %d", ctx.Sender.Hex(), index))
	return nil
}

// clear drops the candidates and the tally and reopens the election.
// Registered voters keep their status.
func (m *Module) clear(ws *state.WorkingSet, ctx *modules.Context) error {
	if err := m.onlyAdmin(ws, ctx); err != nil {
		return err
	}
	m.candidates.Delete(ws)
	m.numberOfVotes.Delete(ws)
	m.isFrozen.Set(ws, false)
	ws.AddEvent("Election: clear", "")
	return nil
}

func (m *Module) freeze(ws *state.WorkingSet, ctx *modules.Context) error {
	if err := m.onlyAdmin(ws, ctx); err != nil {
		return err
	}
	m.isFrozen.Set(ws, true)
	ws.AddEvent("Election: freeze", "")
	return nil
}

// Result returns the winning candidate of a frozen election. Ties go to the
// candidate registered first.
func (m *Module) Result(ws *state.WorkingSet) (Candidate, error) {
	frozen, _, err := m.isFrozen.Get(ws)
	if err != nil {
		return Candidate{}, err
	}
	if !frozen {
		return Candidate{}, ErrNotFrozen
	}
	cands, found, err := m.candidates.Get(ws)
	if err != nil {
		return Candidate{}, err
	}
	if !found || len(cands.List) == 0 {
		return Candidate{}, ErrNoCandidates
	}
	winner := cands.List[0]
	for _, c := range cands.List[1:] {
		if c.Count > winner.Count {
			winner = c
		}
	}
	return winner, nil
}

// NumberOfVotes is the number of votes cast since the last clear.
func (m *Module) NumberOfVotes(ws *state.WorkingSet) (uint64, error) {
	n, _, err := m.numberOfVotes.Get(ws)
	return n, err
}
