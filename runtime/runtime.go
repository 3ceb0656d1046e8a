// Package runtime assembles the rollup's modules into one dispatcher. A
// runtime message is a module index byte followed by that module's call
// encoding.
package runtime

import (
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/modules/accounts"
	"github.com/colorfulnotion/rollup/modules/election"
	"github.com/colorfulnotion/rollup/modules/sequencer"
	"github.com/colorfulnotion/rollup/modules/valuesetter"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/types"
)

const (
	AccountsIndex    uint8 = 0
	ValueSetterIndex uint8 = 1
	ElectionIndex    uint8 = 2
)

// GenesisConfig holds every module's genesis section.
type GenesisConfig struct {
	Accounts    accounts.Config    `yaml:"accounts" json:"accounts"`
	Sequencer   sequencer.Config   `yaml:"sequencer" json:"sequencer"`
	ValueSetter valuesetter.Config `yaml:"value_setter" json:"value_setter"`
	Election    election.Config    `yaml:"election" json:"election"`
}

type Runtime struct {
	hasher  common.Hasher
	genesis GenesisConfig

	Accounts    *accounts.Module
	Sequencer   *sequencer.Module
	ValueSetter *valuesetter.Module
	Election    *election.Module
}

var _ modules.Runtime = (*Runtime)(nil)

func New(hasher common.Hasher, genesis GenesisConfig) *Runtime {
	return &Runtime{
		hasher:      hasher,
		genesis:     genesis,
		Accounts:    accounts.New(hasher),
		Sequencer:   sequencer.New(),
		ValueSetter: valuesetter.New(),
		Election:    election.New(),
	}
}

func (r *Runtime) Genesis(ws *state.WorkingSet) error {
	if err := r.Accounts.Genesis(ws, r.genesis.Accounts); err != nil {
		return err
	}
	if err := r.Sequencer.Genesis(ws, r.genesis.Sequencer); err != nil {
		return err
	}
	if err := r.ValueSetter.Genesis(ws, r.genesis.ValueSetter); err != nil {
		return err
	}
	return r.Election.Genesis(ws, r.genesis.Election)
}

// EncodeCall produces the runtime message for a module call.
func EncodeCall(call modules.Call) ([]byte, error) {
	e := codec.NewEncoder()
	switch c := call.(type) {
	case accounts.CallMessage:
		e.WriteU8(AccountsIndex)
		c.EncodeTo(e)
	case valuesetter.CallMessage:
		e.WriteU8(ValueSetterIndex)
		c.EncodeTo(e)
	case election.CallMessage:
		e.WriteU8(ElectionIndex)
		c.EncodeTo(e)
	default:
		return nil, fmt.Errorf("runtime: no module for call %T", call)
	}
	return e.Bytes(), nil
}

// DecodeCall parses a runtime message. The whole message must be consumed.
func (r *Runtime) DecodeCall(msg []byte) (modules.Call, error) {
	d := codec.NewDecoder(msg)
	idx, err := d.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("runtime: module index: %w", err)
	}
	var call modules.Call
	switch idx {
	case AccountsIndex:
		call, err = accounts.DecodeCall(d)
	case ValueSetterIndex:
		call, err = valuesetter.DecodeCall(d)
	case ElectionIndex:
		call, err = election.DecodeCall(d)
	default:
		return nil, fmt.Errorf("runtime: unknown module index %d", idx)
	}
	if err != nil {
		return nil, fmt.Errorf("runtime: %d: %w", idx, err)
	}
	if err := d.Finish(); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	return call, nil
}

func (r *Runtime) DispatchCall(call modules.Call, ws *state.WorkingSet, ctx *modules.Context) error {
	switch c := call.(type) {
	case accounts.CallMessage:
		return r.Accounts.Call(c, ws, ctx)
	case valuesetter.CallMessage:
		return r.ValueSetter.Call(c, ws, ctx)
	case election.CallMessage:
		return r.Election.Call(c, ws, ctx)
	default:
		return fmt.Errorf("runtime: no module for call %T", call)
	}
}

func (r *Runtime) PreDispatchTxHook(tx *types.Transaction, ws *state.WorkingSet) (common.Address, error) {
	return r.Accounts.PreDispatchTxHook(tx, ws)
}

func (r *Runtime) PostDispatchTxHook(tx *types.Transaction, ws *state.WorkingSet) error {
	return r.Accounts.PostDispatchTxHook(tx, ws)
}

func (r *Runtime) BeginBlobHook(sender []byte, rawBlob []byte, ws *state.WorkingSet) error {
	return r.Sequencer.BeginBlobHook(sender, rawBlob, ws)
}

func (r *Runtime) EndBlobHook(result modules.BlobResult, ws *state.WorkingSet) error {
	return r.Sequencer.EndBlobHook(result, ws)
}
