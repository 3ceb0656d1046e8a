// Package modules defines the contracts between the state transition
// orchestrator and the runtime: call dispatch, transaction hooks and blob
// hooks.
package modules

import (
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/types"
)

// Context is what a call sees about its transaction.
type Context struct {
	Sender common.Address
}

func NewContext(sender common.Address) *Context {
	return &Context{Sender: sender}
}

// Call is a decoded runtime message, one variant per module.
type Call interface {
	Module() string
}

// Dispatcher decodes runtime messages and routes them to their module.
type Dispatcher interface {
	DecodeCall(msg []byte) (Call, error)
	DispatchCall(call Call, ws *state.WorkingSet, ctx *Context) error
}

// TxHooks run around each transaction's dispatch, inside its scope.
type TxHooks interface {
	// PreDispatchTxHook performs stateful checks and resolves the sender.
	PreDispatchTxHook(tx *types.Transaction, ws *state.WorkingSet) (common.Address, error)
	// PostDispatchTxHook runs whether or not dispatch succeeded.
	PostDispatchTxHook(tx *types.Transaction, ws *state.WorkingSet) error
}

// BlobResult summarizes a processed blob for the end-blob hook.
type BlobResult struct {
	Sequencer  []byte
	Successful int
	Reverted   int
}

// ApplyBlobHooks run around each blob.
type ApplyBlobHooks interface {
	// BeginBlobHook is not a slashing point: a rejected sequencer's blob is ignored.
	BeginBlobHook(sequencer []byte, rawBlob []byte, ws *state.WorkingSet) error
	// EndBlobHook is not invoked for slashed or ignored blobs. Its failure
	// means the state is inconsistent.
	EndBlobHook(result BlobResult, ws *state.WorkingSet) error
}

// Runtime is everything the orchestrator needs from a concrete rollup.
type Runtime interface {
	Dispatcher
	TxHooks
	ApplyBlobHooks
	// Genesis writes the initial state of every module.
	Genesis(ws *state.WorkingSet) error
}
