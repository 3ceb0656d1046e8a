package accounts

import (
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/ed25519"
	"github.com/colorfulnotion/rollup/modules"
)

const callUpdatePublicKey uint8 = 0

// CallMessage is a call handled by this module.
type CallMessage interface {
	modules.Call
	codec.Marshaler
	accountsCall()
}

// UpdatePublicKey rebinds the sender's account to NewPubKey. Signature is
// NewPubKey's signature over UpdateAccountMsg.
type UpdatePublicKey struct {
	NewPubKey ed25519.PublicKey
	Signature ed25519.Signature
}

// NewUpdatePublicKey builds the call that rotates an account to priv.
func NewUpdatePublicKey(priv ed25519.PrivateKey) *UpdatePublicKey {
	return &UpdatePublicKey{
		NewPubKey: ed25519.PublicKeyOf(priv),
		Signature: ed25519.Sign(priv, UpdateAccountMsg),
	}
}

func (*UpdatePublicKey) Module() string { return ModuleName }
func (*UpdatePublicKey) accountsCall()  {}

func (c *UpdatePublicKey) EncodeTo(e *codec.Encoder) {
	e.WriteU8(callUpdatePublicKey)
	e.WriteFixed(c.NewPubKey[:])
	e.WriteFixed(c.Signature[:])
}

// DecodeCall reads one CallMessage from d.
func DecodeCall(d *codec.Decoder) (CallMessage, error) {
	tag, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case callUpdatePublicKey:
		c := new(UpdatePublicKey)
		pk, err := d.ReadFixed(ed25519.PublicKeySize)
		if err != nil {
			return nil, err
		}
		sig, err := d.ReadFixed(ed25519.SignatureSize)
		if err != nil {
			return nil, err
		}
		copy(c.NewPubKey[:], pk)
		copy(c.Signature[:], sig)
		return c, nil
	default:
		return nil, fmt.Errorf("accounts: unknown call tag %d", tag)
	}
}
