package election

import (
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules"
)

const (
	callSetCandidates uint8 = iota
	callAddVoter
	callVote
	callClearElection
	callFreezeElection
)

// CallMessage is a call handled by this module.
type CallMessage interface {
	modules.Call
	codec.Marshaler
	electionCall()
}

type SetCandidates struct{ Names []string }
type AddVoter struct{ Voter common.Address }
type Vote struct{ Candidate uint64 }
type ClearElection struct{}
type FreezeElection struct{}

func (*SetCandidates) Module() string  { return ModuleName }
func (*AddVoter) Module() string       { return ModuleName }
func (*Vote) Module() string           { return ModuleName }
func (*ClearElection) Module() string  { return ModuleName }
func (*FreezeElection) Module() string { return ModuleName }

func (*SetCandidates) electionCall()  {}
func (*AddVoter) electionCall()       {}
func (*Vote) electionCall()           {}
func (*ClearElection) electionCall()  {}
func (*FreezeElection) electionCall() {}

func (c *SetCandidates) EncodeTo(e *codec.Encoder) {
	e.WriteU8(callSetCandidates)
	e.WriteLength(len(c.Names))
	for _, n := range c.Names {
		e.WriteString(n)
	}
}

func (c *AddVoter) EncodeTo(e *codec.Encoder) {
	e.WriteU8(callAddVoter)
	e.WriteFixed(c.Voter.Bytes())
}

func (c *Vote) EncodeTo(e *codec.Encoder) {
	e.WriteU8(callVote)
	e.WriteUint(c.Candidate)
}

func (c *ClearElection) EncodeTo(e *codec.Encoder)  { e.WriteU8(callClearElection) }
func (c *FreezeElection) EncodeTo(e *codec.Encoder) { e.WriteU8(callFreezeElection) }

// DecodeCall reads one CallMessage from d.
func DecodeCall(d *codec.Decoder) (CallMessage, error) {
	tag, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case callSetCandidates:
		n, err := d.ReadLength(1)
		if err != nil {
			return nil, err
		}
		names := make([]string, n)
		for i := range names {
			if names[i], err = d.ReadString(); err != nil {
				return nil, err
			}
		}
		return &SetCandidates{Names: names}, nil
	case callAddVoter:
		b, err := d.ReadFixed(common.AddressLength)
		if err != nil {
			return nil, err
		}
		return &AddVoter{Voter: common.BytesToAddress(b)}, nil
	case callVote:
		idx, err := d.ReadUint()
		if err != nil {
			return nil, err
		}
		return &Vote{Candidate: idx}, nil
	case callClearElection:
		return &ClearElection{}, nil
	case callFreezeElection:
		return &FreezeElection{}, nil
	default:
		return nil, fmt.Errorf("election: unknown call tag %d", tag)
	}
}
