// Package valuesetter stores a single admin-controlled value.
package valuesetter

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/state"
)

const ModuleName = "value_setter"

var ErrNotAdmin = errors.New("value_setter: only admin can change the value")

type Config struct {
	Admin common.Address `yaml:"admin" json:"admin"`
}

const callSetValue uint8 = 0

// CallMessage is a call handled by this module.
type CallMessage interface {
	modules.Call
	codec.Marshaler
	valueSetterCall()
}

type SetValue struct {
	NewValue uint32
}

func (*SetValue) Module() string   { return ModuleName }
func (*SetValue) valueSetterCall() {}

func (c *SetValue) EncodeTo(e *codec.Encoder) {
	e.WriteU8(callSetValue)
	e.WriteU32(c.NewValue)
}

// DecodeCall reads one CallMessage from d.
func DecodeCall(d *codec.Decoder) (CallMessage, error) {
	tag, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case callSetValue:
		v, err := d.ReadU32()
		if err != nil {
			return nil, err
		}
		return &SetValue{NewValue: v}, nil
	default:
		return nil, fmt.Errorf("value_setter: unknown call tag %d", tag)
	}
}

type Module struct {
	value state.StateValue[uint32]
	admin state.StateValue[common.Address]
}

func New() *Module {
	return &Module{
		value: state.NewStateValue[uint32](state.NewPrefix(ModuleName, "value"), state.Uint32Codec{}),
		admin: state.NewStateValue[common.Address](state.NewPrefix(ModuleName, "admin"), state.AddressCodec{}),
	}
}

func (m *Module) Genesis(ws *state.WorkingSet, cfg Config) error {
	m.admin.Set(ws, cfg.Admin)
	return nil
}

func (m *Module) Call(msg CallMessage, ws *state.WorkingSet, ctx *modules.Context) error {
	switch c := msg.(type) {
	case *SetValue:
		admin, err := m.admin.GetOrErr(ws)
		if err != nil {
			return err
		}
		if admin != ctx.Sender {
			return ErrNotAdmin
		}
		m.value.Set(ws, c.NewValue)
		ws.AddEvent("set", fmt.Sprintf("value_set: %d", c.NewValue))
		return nil
	default:
		return fmt.Errorf("value_setter: unhandled call %T", msg)
	}
}

// Value returns the stored value, found=false before the first SetValue.
func (m *Module) Value(ws *state.WorkingSet) (uint32, bool, error) {
	return m.value.Get(ws)
}
