// Package stf applies blobs of signed transactions to rollup state, one slot
// at a time, and reports a receipt per blob.
package stf

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/types"
)

var (
	ErrNoSlot         = errors.New("stf: no slot in progress")
	ErrSlotInProgress = errors.New("stf: slot already in progress")
)

type Config struct {
	// VerifyParallelism bounds concurrent signature checks; 0 uses GOMAXPROCS.
	VerifyParallelism int `yaml:"verify_parallelism" json:"verify_parallelism"`
	// SaveTxBodies keeps the raw transaction in each receipt.
	SaveTxBodies bool `yaml:"save_tx_bodies" json:"save_tx_bodies"`
}

// MisbehaviorHint claims the transaction at TxIndex fails stateless
// verification. That transaction is checked first; if the claim does not
// hold the hint is dropped and the blob is processed as usual.
type MisbehaviorHint struct {
	TxIndex int
}

// AppTemplate drives the runtime over a storage backend. It is not safe for
// concurrent use.
type AppTemplate struct {
	storage storage.Storage
	runtime modules.Runtime
	hasher  common.Hasher
	cfg     Config

	ws *state.WorkingSet
}

func NewAppTemplate(s storage.Storage, rt modules.Runtime, cfg Config) *AppTemplate {
	return &AppTemplate{
		storage: s,
		runtime: rt,
		hasher:  s.Hasher(),
		cfg:     cfg,
	}
}

// Root is the last committed state root.
func (a *AppTemplate) Root() common.Hash {
	return a.storage.Root()
}

// InitChain writes the runtime's genesis state and returns the genesis root.
func (a *AppTemplate) InitChain() (common.Hash, error) {
	if a.ws != nil {
		return common.Hash{}, ErrSlotInProgress
	}
	ws := state.NewWorkingSet(a.storage)
	if err := a.runtime.Genesis(ws); err != nil {
		return common.Hash{}, fmt.Errorf("genesis: %w", err)
	}
	changes, witness, err := ws.Freeze()
	if err != nil {
		return common.Hash{}, fmt.Errorf("genesis: %w", err)
	}
	root, err := a.storage.ValidateAndCommit(changes, witness)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: genesis: %w", stferrors.ErrFatal, err)
	}
	log.Info(log.STF, "InitChain", "root", root, "entries", changes.Len())
	return root, nil
}

// BeginSlot opens the slot's working set. A nil witness starts an empty one;
// ZK replay passes the witness recorded by the native run.
func (a *AppTemplate) BeginSlot(witness *storage.Witness) error {
	if a.ws != nil {
		return ErrSlotInProgress
	}
	a.ws = state.NewWorkingSetWithWitness(a.storage, witness)
	log.Debug(log.STF, "BeginSlot", "prevRoot", a.storage.Root())
	return nil
}

// EndSlot commits everything applied since BeginSlot and returns the new
// root and the witness. Any failure here is fatal.
func (a *AppTemplate) EndSlot() (common.Hash, *storage.Witness, error) {
	if a.ws == nil {
		return common.Hash{}, nil, ErrNoSlot
	}
	ws := a.ws
	a.ws = nil
	changes, witness, err := ws.Freeze()
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("%w: freeze: %w", stferrors.ErrFatal, err)
	}
	root, err := a.storage.ValidateAndCommit(changes, witness)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("%w: commit: %w", stferrors.ErrFatal, err)
	}
	log.Debug(log.STF, "EndSlot", "root", root, "entries", changes.Len(), "writes", changes.Writes(), "hints", witness.Len())
	return root, witness, nil
}

// fatal wraps err for conditions the node cannot recover from.
func fatal(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", stferrors.ErrFatal, what, err)
}

// storageErr reports a backend failure seen by the working set. Such
// failures surface through hooks and modules as ordinary errors, so they are
// checked before an error is attributed to the blob.
func (a *AppTemplate) storageErr() error {
	if err := a.ws.Err(); err != nil {
		return fatal("storage", err)
	}
	return nil
}

// ApplyBlob applies one sequencer blob. A non-nil error is fatal; every
// sequencer fault is reported through the receipt's outcome.
func (a *AppTemplate) ApplyBlob(blob []byte, sequencer []byte, hint *MisbehaviorHint) (*types.BatchReceipt, error) {
	if a.ws == nil {
		return nil, ErrNoSlot
	}
	ws := a.ws
	receipt := &types.BatchReceipt{
		BatchHash:  types.BatchHash(a.hasher, blob),
		TxReceipts: []types.TransactionReceipt{},
	}

	blobScope := ws.EnterScope()
	entry := ws.EnterScope()
	if err := a.runtime.BeginBlobHook(sequencer, blob, ws); err != nil {
		if serr := a.storageErr(); serr != nil {
			return nil, serr
		}
		if err := revertAll(entry, blobScope); err != nil {
			return nil, err
		}
		log.Warn(log.STF, "ApplyBlob: blob ignored", "batch", receipt.BatchHash, "err", fmt.Errorf("%w: %w", stferrors.ErrHBeginBlobHook, err))
		receipt.Outcome = types.Ignored()
		return receipt, nil
	}
	if err := entry.Commit(); err != nil {
		return nil, fatal("commit entry", err)
	}

	slash := func(reason types.SlashingReason, cause error, scopes ...*state.Scope) (*types.BatchReceipt, error) {
		if err := revertAll(scopes...); err != nil {
			return nil, err
		}
		log.Warn(log.STF, "ApplyBlob: sequencer slashed", "batch", receipt.BatchHash, "reason", reason, "err", cause)
		receipt.TxReceipts = []types.TransactionReceipt{}
		receipt.Outcome = types.Slashed(reason)
		return receipt, nil
	}

	batch, err := types.DecodeBatch(blob)
	if err != nil {
		return slash(types.InvalidBatchEncoding, err, blobScope)
	}

	if hint != nil {
		if hint.TxIndex >= 0 && hint.TxIndex < len(batch.Txs) {
			if _, err := VerifyStateless(batch.Txs[hint.TxIndex], a.hasher); err != nil {
				return slash(types.StatelessVerificationFailed, fmt.Errorf("tx %d: %w", hint.TxIndex, err), blobScope)
			}
		}
		// a refuted hint is dropped and the whole batch is verified
		log.Warn(log.STF, "ApplyBlob: misbehavior hint refuted", "batch", receipt.BatchHash,
			"err", fmt.Errorf("%w: index %d of %d", stferrors.ErrXRefutedHint, hint.TxIndex, len(batch.Txs)))
	}
	txs, err := VerifyBatch(batch.Txs, a.hasher, a.cfg.VerifyParallelism)
	if err != nil {
		return slash(types.StatelessVerificationFailed, err, blobScope)
	}

	result := modules.BlobResult{Sequencer: sequencer}
	for i, tx := range txs {
		txScope := ws.EnterScope()
		tr := types.TransactionReceipt{
			TxHash: a.hasher.Hash(batch.Txs[i]),
			Events: []types.Event{},
		}
		if a.cfg.SaveTxBodies {
			tr.BodyToSave = batch.Txs[i]
		}
		decodeErr, err := a.applyTx(tx, txScope, &tr)
		if err != nil {
			return nil, err
		}
		if decodeErr != nil {
			return slash(types.InvalidTransactionEncoding, fmt.Errorf("tx %d: %w: %w", i, stferrors.ErrXCallDecode, decodeErr), txScope, blobScope)
		}
		if tr.Effect == types.TxSuccessful {
			result.Successful++
		} else {
			result.Reverted++
		}
		receipt.TxReceipts = append(receipt.TxReceipts, tr)
	}

	if err := a.runtime.EndBlobHook(result, ws); err != nil {
		if serr := a.storageErr(); serr != nil {
			return nil, serr
		}
		return nil, fmt.Errorf("%w: %w: %w", stferrors.ErrFatal, stferrors.ErrHEndBlobHook, err)
	}
	if err := blobScope.Commit(); err != nil {
		return nil, fatal("commit blob", err)
	}
	receipt.Outcome = types.Rewarded()
	log.Debug(log.STF, "ApplyBlob", "batch", receipt.BatchHash, "txs", len(txs),
		"successful", result.Successful, "reverted", result.Reverted)
	return receipt, nil
}

// applyTx runs one transaction inside txScope and fills in the receipt's
// effect and events. The call is decoded only after the pre-dispatch hook
// accepts the transaction; a decode failure is returned as decodeErr with
// txScope still open. Otherwise txScope is consumed.
func (a *AppTemplate) applyTx(tx *types.Transaction, txScope *state.Scope, tr *types.TransactionReceipt) (decodeErr error, err error) {
	ws := a.ws
	sender, err := a.runtime.PreDispatchTxHook(tx, ws)
	if err != nil {
		if serr := a.storageErr(); serr != nil {
			return nil, serr
		}
		log.Debug(log.STF, "tx rejected", "tx", tr.TxHash, "err", fmt.Errorf("%w: %w", stferrors.ErrHPreDispatchHook, err))
		tr.Effect = types.TxReverted
		if err := txScope.Revert(); err != nil {
			return nil, fatal("revert tx", err)
		}
		return nil, nil
	}
	if serr := a.storageErr(); serr != nil {
		return nil, serr
	}

	call, err := a.runtime.DecodeCall(tx.RuntimeMsg)
	if err != nil {
		return err, nil
	}

	dispatchErr := a.runtime.DispatchCall(call, ws, modules.NewContext(sender))
	if err := a.runtime.PostDispatchTxHook(tx, ws); err != nil {
		log.Error(log.STF, "PostDispatchTxHook", "tx", tr.TxHash, "err", err)
	}
	if serr := a.storageErr(); serr != nil {
		return nil, serr
	}

	if dispatchErr != nil {
		log.Debug(log.STF, "tx reverted", "tx", tr.TxHash, "module", call.Module(), "err", fmt.Errorf("%w: %w", stferrors.ErrHDispatch, dispatchErr))
		tr.Effect = types.TxReverted
		if err := txScope.Revert(); err != nil {
			return nil, fatal("revert tx", err)
		}
		return nil, nil
	}
	tr.Effect = types.TxSuccessful
	tr.Events = append(tr.Events, txScope.Events()...)
	if err := txScope.Commit(); err != nil {
		return nil, fatal("commit tx", err)
	}
	return nil, nil
}

// revertAll reverts scopes innermost first.
func revertAll(scopes ...*state.Scope) error {
	for _, s := range scopes {
		if err := s.Revert(); err != nil {
			return fatal("revert", err)
		}
	}
	return nil
}
