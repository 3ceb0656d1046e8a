// Package queue provides the sequencer's mempool and batch builder. Raw
// transactions wait in a bounded FIFO and are packed into byte-bounded
// batches by pre-executing them against a working set, so that only
// transactions that dispatch successfully are proposed.
package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/colorfulnotion/rollup/common"
	log "github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/stf"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/colorfulnotion/rollup/types"
)

// Configuration parameters for the mempool
const (
	DefaultMaxMempoolSize = 100     // Maximum raw transactions waiting
	DefaultMaxBatchBytes  = 1 << 20 // Sum of raw transaction lengths per batch
)

var ErrTxTooLarge = errors.New("queue: transaction exceeds the batch byte budget")

// Config holds configuration for the batch builder
type Config struct {
	MaxMempoolSize int `yaml:"max_mempool_size" json:"max_mempool_size"`
	MaxBatchBytes  int `yaml:"max_batch_bytes" json:"max_batch_bytes"`
}

// DefaultConfig returns the default batch builder configuration
func DefaultConfig() Config {
	return Config{
		MaxMempoolSize: DefaultMaxMempoolSize,
		MaxBatchBytes:  DefaultMaxBatchBytes,
	}
}

// Dismissal records a transaction dropped while building a batch.
type Dismissal struct {
	Raw    []byte
	TxHash common.Hash
	Reason error
}

// BatchBuilder is the mempool. All methods are safe for concurrent use; a
// build holds the lock for its whole duration.
type BatchBuilder struct {
	mu sync.Mutex

	config  Config
	runtime modules.Runtime
	hasher  common.Hasher

	// FIFO of raw transactions, head first
	mempool [][]byte

	ws        *state.WorkingSet
	dismissed []Dismissal

	// Operational counters
	accepted int
	included int
	rejected int
}

// NewBatchBuilder creates a builder that pre-executes through rt.
func NewBatchBuilder(config Config, rt modules.Runtime, hasher common.Hasher) *BatchBuilder {
	if config.MaxMempoolSize <= 0 {
		config.MaxMempoolSize = DefaultMaxMempoolSize
	}
	if config.MaxBatchBytes <= 0 {
		config.MaxBatchBytes = DefaultMaxBatchBytes
	}
	return &BatchBuilder{
		config:  config,
		runtime: rt,
		hasher:  hasher,
	}
}

// SetWorkingSet attaches the working set candidates are executed against.
// Pre-execution leaves its effects there, so later candidates in the same
// build see earlier ones.
func (b *BatchBuilder) SetWorkingSet(ws *state.WorkingSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ws = ws
}

// AcceptTx appends raw to the tail. Content is not checked until the
// transaction is considered for a batch, but a transaction larger than the
// whole byte budget is refused since it could never leave the head.
func (b *BatchBuilder) AcceptTx(raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(raw) > b.config.MaxBatchBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrTxTooLarge, len(raw), b.config.MaxBatchBytes)
	}
	if len(b.mempool) >= b.config.MaxMempoolSize {
		return fmt.Errorf("%w: %d transactions queued", stferrors.ErrMMempoolFull, len(b.mempool))
	}
	b.mempool = append(b.mempool, append([]byte(nil), raw...))
	b.accepted++
	log.Trace(log.Mempool, "AcceptTx", "bytes", len(raw), "queued", len(b.mempool))
	return nil
}

// Len returns the number of queued transactions.
func (b *BatchBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mempool)
}

// Dismissed returns the transactions dropped by the last GetNextBlob.
func (b *BatchBuilder) Dismissed() []Dismissal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Dismissal(nil), b.dismissed...)
}

// GetNextBlob pops candidates from the head until the byte budget is
// reached and returns, in queue order, those that executed successfully.
// The first candidate that does not fit stays at the head.
func (b *BatchBuilder) GetNextBlob() ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ws == nil {
		return nil, stferrors.ErrMWorkingSetUninitialized
	}
	b.dismissed = nil

	var (
		txs  [][]byte
		used int
	)
	for len(b.mempool) > 0 {
		raw := b.mempool[0]
		if used+len(raw) > b.config.MaxBatchBytes {
			break
		}
		b.mempool = b.mempool[1:]

		if err := b.tryExecute(raw); err != nil {
			if stferrors.IsFatal(err) {
				return nil, err
			}
			b.dismiss(raw, err)
			continue
		}
		txs = append(txs, raw)
		used += len(raw)
	}
	b.included += len(txs)
	log.Debug(log.Mempool, "GetNextBlob", "txs", len(txs), "bytes", used,
		"dismissed", len(b.dismissed), "queued", len(b.mempool))
	return txs, nil
}

// tryExecute runs raw in its own scope, kept only when dispatch succeeds.
func (b *BatchBuilder) tryExecute(raw []byte) error {
	tx, err := stf.VerifyStateless(raw, b.hasher)
	if err != nil {
		return err
	}

	scope := b.ws.EnterScope()
	err = b.execute(tx)
	if werr := b.ws.Err(); werr != nil {
		return fmt.Errorf("%w: %w", stferrors.ErrFatal, errors.Join(werr, scope.Revert()))
	}
	if err != nil {
		if rerr := scope.Revert(); rerr != nil {
			return fmt.Errorf("%w: %w", stferrors.ErrFatal, rerr)
		}
		return err
	}
	if cerr := scope.Commit(); cerr != nil {
		return fmt.Errorf("%w: %w", stferrors.ErrFatal, cerr)
	}
	return nil
}

// execute mirrors the transaction loop of stf.ApplyBlob: the call is only
// decoded once the pre-dispatch hook accepts the transaction.
func (b *BatchBuilder) execute(tx *types.Transaction) error {
	sender, err := b.runtime.PreDispatchTxHook(tx, b.ws)
	if err != nil {
		return fmt.Errorf("%w: %w", stferrors.ErrHPreDispatchHook, err)
	}
	call, err := b.runtime.DecodeCall(tx.RuntimeMsg)
	if err != nil {
		return fmt.Errorf("%w: %w", stferrors.ErrXCallDecode, err)
	}
	err = b.runtime.DispatchCall(call, b.ws, modules.NewContext(sender))
	if perr := b.runtime.PostDispatchTxHook(tx, b.ws); perr != nil {
		log.Warn(log.Mempool, "PostDispatchTxHook", "err", perr)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", stferrors.ErrHDispatch, err)
	}
	return nil
}

func (b *BatchBuilder) dismiss(raw []byte, reason error) {
	d := Dismissal{Raw: raw, TxHash: b.hasher.Hash(raw), Reason: reason}
	b.dismissed = append(b.dismissed, d)
	b.rejected++
	log.Debug(log.Mempool, "tx dismissed", "tx", d.TxHash, "reason", stferrors.GetErrorName(reason), "err", reason)
}

// Stats holds lifetime counters of a BatchBuilder.
type Stats struct {
	Queued   int
	Accepted int
	Included int
	Rejected int
}

// GetStats returns the current counters
func (b *BatchBuilder) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Queued:   len(b.mempool),
		Accepted: b.accepted,
		Included: b.included,
		Rejected: b.rejected,
	}
}
