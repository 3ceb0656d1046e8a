package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/colorfulnotion/rollup/common"
	log "github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/stf"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/colorfulnotion/rollup/builder/queue"

// SlotResult is what one slot produced.
type SlotResult struct {
	Slot    uint64
	Blob    []byte
	Receipt *types.BatchReceipt
	Root    common.Hash
	Witness *storage.Witness
}

// SlotFunc is called after every committed slot
type SlotFunc func(result *SlotResult)

// Runner manages the sequencer loop: every tick it builds a blob from the
// mempool and applies it as one slot.
type Runner struct {
	mu sync.RWMutex

	builder   *BatchBuilder
	app       *stf.AppTemplate
	storage   storage.Storage
	sequencer []byte
	onSlot    SlotFunc
	tracer    trace.Tracer

	slot uint64

	// Control
	tickInterval time.Duration
	skipEmpty    bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	err          error
}

// RunnerConfig holds configuration for the runner
type RunnerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
	// SkipEmpty leaves slots with no transactions unapplied.
	SkipEmpty bool `yaml:"skip_empty" json:"skip_empty"`
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		TickInterval: 6 * time.Second,
		SkipEmpty:    true,
	}
}

// NewRunner creates a sequencer runner. sequencer is the DA address blobs
// are attributed to.
func NewRunner(config RunnerConfig, builder *BatchBuilder, app *stf.AppTemplate, s storage.Storage, sequencer []byte, onSlot SlotFunc) *Runner {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultRunnerConfig().TickInterval
	}
	return &Runner{
		builder:      builder,
		app:          app,
		storage:      s,
		sequencer:    append([]byte(nil), sequencer...),
		onSlot:       onSlot,
		tracer:       otel.Tracer(tracerName),
		tickInterval: config.TickInterval,
		skipEmpty:    config.SkipEmpty,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins the slot loop
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	log.Info(log.Runner, "Runner: Starting",
		"sequencer", common.Bytes2Hex(r.sequencer),
		"tickInterval", r.tickInterval)

	go r.runLoop(ctx)
}

// Stop stops the slot loop
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stopCh)
	r.running = false

	log.Info(log.Runner, "Runner: Stopped", "slot", r.slot)
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Done is closed when the loop exits.
func (r *Runner) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doneCh
}

// Err returns the fatal error that stopped the loop, if any.
func (r *Runner) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// runLoop is the main processing loop
func (r *Runner) runLoop(ctx context.Context) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	r.mu.RLock()
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.RUnlock()
	defer close(doneCh)

	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := r.RunSlot(ctx); err != nil {
				log.Error(log.Runner, "Runner: slot failed, halting", "slot", r.currentSlot(), "error", err)
				r.mu.Lock()
				r.err = err
				r.mu.Unlock()
				r.Stop()
				return
			}
		}
	}
}

func (r *Runner) currentSlot() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slot
}

var errSlotSkipped = errors.New("slot skipped")

// RunSlot builds one blob and applies it. It returns nil, nil when the slot
// was skipped for lack of transactions. Every returned error is fatal.
func (r *Runner) RunSlot(ctx context.Context) (*SlotResult, error) {
	r.mu.Lock()
	slot := r.slot + 1
	r.mu.Unlock()

	_, span := r.tracer.Start(ctx, "slot", trace.WithAttributes(attribute.Int64("slot", int64(slot))))
	defer span.End()

	res, err := r.runSlot(slot)
	if errors.Is(err, errSlotSkipped) {
		span.SetAttributes(attribute.Bool("skipped", true))
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("txs", len(res.Receipt.TxReceipts)),
		attribute.Int("successful", res.Receipt.Successful()),
		attribute.String("outcome", res.Receipt.Outcome.String()),
		attribute.String("root", res.Root.Hex()),
		attribute.Int("witness_hints", res.Witness.Len()),
	)

	r.mu.Lock()
	r.slot = slot
	r.mu.Unlock()
	if r.onSlot != nil {
		r.onSlot(res)
	}
	return res, nil
}

func (r *Runner) runSlot(slot uint64) (*SlotResult, error) {
	// candidates run against committed state; the slot's own working set is
	// owned by the app
	r.builder.SetWorkingSet(state.NewWorkingSetWithWitness(r.storage, nil))
	txs, err := r.builder.GetNextBlob()
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 && r.skipEmpty {
		return nil, errSlotSkipped
	}
	blob := types.EncodeBatch(txs)

	if err := r.app.BeginSlot(nil); err != nil {
		return nil, err
	}
	receipt, err := r.app.ApplyBlob(blob, r.sequencer, nil)
	if err != nil {
		return nil, err
	}
	root, witness, err := r.app.EndSlot()
	if err != nil {
		return nil, err
	}
	log.Info(log.Runner, "Runner: slot applied",
		"slot", slot,
		"txs", len(txs),
		"outcome", receipt.Outcome,
		"root", root.Hex())
	return &SlotResult{Slot: slot, Blob: blob, Receipt: receipt, Root: root, Witness: witness}, nil
}
