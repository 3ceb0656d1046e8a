// Package sequencer keeps the registered sequencer and its bond. A bond is
// locked when a blob starts and released, with a per-transaction reward,
// when the blob ends.
package sequencer

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
	"github.com/holiman/uint256"
)

const ModuleName = "sequencer"

var (
	ErrUnknownSequencer  = errors.New("sequencer: blob sender is not the registered sequencer")
	ErrInsufficientFunds = errors.New("sequencer: balance below the required bond")
	ErrNoLockedBond      = errors.New("sequencer: no bond locked for this blob")
)

// Config is the genesis registration. Amounts are decimal strings.
type Config struct {
	SeqRollupAddress common.Address `yaml:"seq_rollup_address" json:"seq_rollup_address"`
	SeqDAAddress     string         `yaml:"seq_da_address" json:"seq_da_address"`
	CoinsToLock      string         `yaml:"coins_to_lock" json:"coins_to_lock"`
	InitialBalance   string         `yaml:"initial_balance" json:"initial_balance"`
	RewardPerTx      string         `yaml:"reward_per_tx" json:"reward_per_tx"`
}

type amountCodec struct{}

func (amountCodec) Encode(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

func (amountCodec) Decode(b []byte) (*uint256.Int, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("amount: want 32 bytes, got %d", len(b))
	}
	return new(uint256.Int).SetBytes32(b), nil
}

type Module struct {
	rollupAddress state.StateValue[common.Address]
	daAddress     state.StateValue[[]byte]
	coinsToLock   state.StateValue[*uint256.Int]
	rewardPerTx   state.StateValue[*uint256.Int]
	locked        state.StateValue[*uint256.Int]
	balances      state.StateMap[common.Address, *uint256.Int]
}

func New() *Module {
	p := func(name string) state.Prefix { return state.NewPrefix(ModuleName, name) }
	return &Module{
		rollupAddress: state.NewStateValue[common.Address](p("seq_rollup_address"), state.AddressCodec{}),
		daAddress:     state.NewStateValue[[]byte](p("seq_da_address"), state.BytesCodec{}),
		coinsToLock:   state.NewStateValue[*uint256.Int](p("coins_to_lock"), amountCodec{}),
		rewardPerTx:   state.NewStateValue[*uint256.Int](p("reward_per_tx"), amountCodec{}),
		locked:        state.NewStateValue[*uint256.Int](p("locked"), amountCodec{}),
		balances:      state.NewStateMap[common.Address, *uint256.Int](p("balances"), state.AddressCodec{}, amountCodec{}),
	}
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

func (m *Module) Genesis(ws *state.WorkingSet, cfg Config) error {
	da, err := hex.DecodeString(strings.TrimPrefix(cfg.SeqDAAddress, "0x"))
	if err != nil {
		return fmt.Errorf("sequencer genesis: seq_da_address: %w", err)
	}
	if len(da) == 0 {
		return fmt.Errorf("sequencer genesis: seq_da_address is empty")
	}
	amounts := map[string]string{
		"coins_to_lock":   cfg.CoinsToLock,
		"initial_balance": cfg.InitialBalance,
		"reward_per_tx":   cfg.RewardPerTx,
	}
	parsed := make(map[string]*uint256.Int, len(amounts))
	for name, s := range amounts {
		v, err := parseAmount(s)
		if err != nil {
			return fmt.Errorf("sequencer genesis: %s: %w", name, err)
		}
		parsed[name] = v
	}
	m.rollupAddress.Set(ws, cfg.SeqRollupAddress)
	m.daAddress.Set(ws, da)
	m.coinsToLock.Set(ws, parsed["coins_to_lock"])
	m.rewardPerTx.Set(ws, parsed["reward_per_tx"])
	m.balances.Set(ws, cfg.SeqRollupAddress, parsed["initial_balance"])
	return nil
}

// Balance returns the balance of addr, zero when unknown.
func (m *Module) Balance(ws *state.WorkingSet, addr common.Address) (*uint256.Int, error) {
	bal, found, err := m.balances.Get(ws, addr)
	if err != nil {
		return nil, err
	}
	if !found {
		return new(uint256.Int), nil
	}
	return bal, nil
}

// BeginBlobHook checks the blob came from the registered sequencer and
// locks its bond.
func (m *Module) BeginBlobHook(sequencer []byte, rawBlob []byte, ws *state.WorkingSet) error {
	da, err := m.daAddress.GetOrErr(ws)
	if err != nil {
		return err
	}
	if !bytes.Equal(da, sequencer) {
		return fmt.Errorf("%w: got %x", ErrUnknownSequencer, sequencer)
	}
	addr, err := m.rollupAddress.GetOrErr(ws)
	if err != nil {
		return err
	}
	lock, err := m.coinsToLock.GetOrErr(ws)
	if err != nil {
		return err
	}
	bal, err := m.Balance(ws, addr)
	if err != nil {
		return err
	}
	if bal.Lt(lock) {
		return fmt.Errorf("%w: balance %s, bond %s", ErrInsufficientFunds, bal.Dec(), lock.Dec())
	}
	m.balances.Set(ws, addr, new(uint256.Int).Sub(bal, lock))
	m.locked.Set(ws, lock)
	log.Trace(log.State, "sequencer: bond locked", "addr", addr, "amount", lock.Dec(), "blobBytes", len(rawBlob))
	return nil
}

// EndBlobHook releases the bond and pays the reward for successful txs.
func (m *Module) EndBlobHook(result modules.BlobResult, ws *state.WorkingSet) error {
	lock, found, err := m.locked.Get(ws)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoLockedBond
	}
	addr, err := m.rollupAddress.GetOrErr(ws)
	if err != nil {
		return err
	}
	perTx, err := m.rewardPerTx.GetOrErr(ws)
	if err != nil {
		return err
	}
	bal, err := m.Balance(ws, addr)
	if err != nil {
		return err
	}
	reward := new(uint256.Int).Mul(perTx, uint256.NewInt(uint64(result.Successful)))
	next := new(uint256.Int).Add(bal, lock)
	next.Add(next, reward)
	m.balances.Set(ws, addr, next)
	m.locked.Delete(ws)
	log.Trace(log.State, "sequencer: bond released", "addr", addr, "reward", reward.Dec(),
		"successful", result.Successful, "reverted", result.Reverted)
	return nil
}
