// Package accounts maps signing keys to addresses and enforces transaction
// nonces.
package accounts

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/ed25519"
	"github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
	"github.com/colorfulnotion/rollup/types"
)

const ModuleName = "accounts"

// UpdateAccountMsg is signed by a new key to prove possession.
var UpdateAccountMsg = bytes.Repeat([]byte{1}, 32)

var (
	ErrBadNonce         = errors.New("accounts: bad nonce")
	ErrAddressTaken     = errors.New("accounts: address already bound to another key")
	ErrPublicKeyInUse   = errors.New("accounts: public key already in use")
	ErrUnknownAccount   = errors.New("accounts: unknown account")
	ErrBadUpdateSigning = errors.New("accounts: new key did not sign the update message")
)

// Account is keyed by address so that its key can be rotated.
type Account struct {
	PubKey ed25519.PublicKey `json:"pub_key"`
	Nonce  uint64            `json:"nonce"`
}

func (a *Account) EncodeTo(e *codec.Encoder) {
	e.WriteFixed(a.PubKey[:])
	e.WriteU64(a.Nonce)
}

func (a *Account) DecodeFrom(d *codec.Decoder) error {
	pk, err := d.ReadFixed(ed25519.PublicKeySize)
	if err != nil {
		return err
	}
	copy(a.PubKey[:], pk)
	a.Nonce, err = d.ReadU64()
	return err
}

type pubKeyCodec struct{}

func (pubKeyCodec) Encode(pk ed25519.PublicKey) []byte { return pk[:] }

func (pubKeyCodec) Decode(b []byte) (ed25519.PublicKey, error) {
	var pk ed25519.PublicKey
	if len(b) != ed25519.PublicKeySize {
		return pk, fmt.Errorf("public key: want %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// Config lists keys whose accounts exist from genesis.
type Config struct {
	PubKeys []string `yaml:"pub_keys" json:"pub_keys"`
}

type Module struct {
	hasher     common.Hasher
	accounts   state.StateMap[common.Address, *Account]
	publicKeys state.StateMap[ed25519.PublicKey, common.Address]
}

func New(hasher common.Hasher) *Module {
	return &Module{
		hasher: hasher,
		accounts: state.NewStateMap[common.Address, *Account](
			state.NewPrefix(ModuleName, "accounts"),
			state.AddressCodec{},
			state.StructCodec[*Account]{New: func() *Account { return new(Account) }},
		),
		publicKeys: state.NewStateMap[ed25519.PublicKey, common.Address](
			state.NewPrefix(ModuleName, "public_keys"),
			pubKeyCodec{},
			state.AddressCodec{},
		),
	}
}

func (m *Module) Genesis(ws *state.WorkingSet, cfg Config) error {
	for _, s := range cfg.PubKeys {
		pk, err := ed25519.PublicKeyFromHex(s)
		if err != nil {
			return fmt.Errorf("accounts genesis: %w", err)
		}
		if _, err := m.resolve(ws, pk); err != nil {
			return fmt.Errorf("accounts genesis: %w", err)
		}
	}
	return nil
}

// resolve returns the address bound to pk, creating a fresh account on
// first use.
func (m *Module) resolve(ws *state.WorkingSet, pk ed25519.PublicKey) (common.Address, error) {
	addr, found, err := m.publicKeys.Get(ws, pk)
	if err != nil || found {
		return addr, err
	}
	addr = pk.Address(m.hasher)
	_, taken, err := m.accounts.Get(ws, addr)
	if err != nil {
		return addr, err
	}
	if taken {
		return addr, fmt.Errorf("%w: %s", ErrAddressTaken, addr)
	}
	m.accounts.Set(ws, addr, &Account{PubKey: pk})
	m.publicKeys.Set(ws, pk, addr)
	log.Trace(log.State, "accounts: created", "addr", addr, "pubkey", pk)
	return addr, nil
}

// PreDispatchTxHook resolves the sender, checks the nonce and bumps it.
// The bump lives in the transaction's scope and is dropped if it reverts.
func (m *Module) PreDispatchTxHook(tx *types.Transaction, ws *state.WorkingSet) (common.Address, error) {
	addr, err := m.resolve(ws, tx.PubKey)
	if err != nil {
		return addr, err
	}
	acc, err := m.accounts.GetOrErr(ws, addr)
	if err != nil {
		return addr, err
	}
	if tx.Nonce != acc.Nonce {
		return addr, fmt.Errorf("%w: tx nonce %d, account nonce %d", ErrBadNonce, tx.Nonce, acc.Nonce)
	}
	acc.Nonce++
	m.accounts.Set(ws, addr, acc)
	return addr, nil
}

func (m *Module) PostDispatchTxHook(tx *types.Transaction, ws *state.WorkingSet) error {
	return nil
}

// Account returns the account at addr.
func (m *Module) Account(ws *state.WorkingSet, addr common.Address) (*Account, bool, error) {
	return m.accounts.Get(ws, addr)
}

// Address returns the address bound to pk.
func (m *Module) Address(ws *state.WorkingSet, pk ed25519.PublicKey) (common.Address, bool, error) {
	return m.publicKeys.Get(ws, pk)
}

func (m *Module) Call(msg CallMessage, ws *state.WorkingSet, ctx *modules.Context) error {
	switch c := msg.(type) {
	case *UpdatePublicKey:
		return m.updatePublicKey(c, ws, ctx)
	default:
		return fmt.Errorf("accounts: unhandled call %T", msg)
	}
}

func (m *Module) updatePublicKey(c *UpdatePublicKey, ws *state.WorkingSet, ctx *modules.Context) error {
	acc, found, err := m.accounts.Get(ws, ctx.Sender)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, ctx.Sender)
	}
	_, inUse, err := m.publicKeys.Get(ws, c.NewPubKey)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: %s", ErrPublicKeyInUse, c.NewPubKey)
	}
	if err := ed25519.Verify(c.NewPubKey, UpdateAccountMsg, c.Signature); err != nil {
		return ErrBadUpdateSigning
	}
	m.publicKeys.Delete(ws, acc.PubKey)
	m.publicKeys.Set(ws, c.NewPubKey, ctx.Sender)
	acc.PubKey = c.NewPubKey
	m.accounts.Set(ws, ctx.Sender, acc)
	ws.AddEvent("accounts: update_public_key", ctx.Sender.Hex())
	return nil
}
