package state

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
)

// Codec converts typed values to and from their stored bytes.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
}

type Uint64Codec struct{}

func (Uint64Codec) Encode(v uint64) []byte { return common.Uint64ToBytes(v) }

func (Uint64Codec) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("uint64: want 8 bytes, got %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

type Uint32Codec struct{}

func (Uint32Codec) Encode(v uint32) []byte { return common.Uint32ToBytes(v) }

func (Uint32Codec) Decode(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("uint32: want 4 bytes, got %d", len(b))
	}
	return common.BytesToUint32(b), nil
}

type BoolCodec struct{}

func (BoolCodec) Encode(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func (BoolCodec) Decode(b []byte) (bool, error) {
	if len(b) != 1 || b[0] > 1 {
		return false, fmt.Errorf("bool: invalid encoding %x", b)
	}
	return b[0] == 1, nil
}

type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) []byte          { return v }
func (BytesCodec) Decode(b []byte) ([]byte, error) { return b, nil }

type StringCodec struct{}

func (StringCodec) Encode(v string) []byte          { return []byte(v) }
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }

type AddressCodec struct{}

func (AddressCodec) Encode(v common.Address) []byte { return v.Bytes() }

func (AddressCodec) Decode(b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("address: want %d bytes, got %d", common.AddressLength, len(b))
	}
	return common.BytesToAddress(b), nil
}

// Serializable is a pointer type with a hand-written JAM encoding.
type Serializable interface {
	codec.Marshaler
	codec.Unmarshaler
}

// StructCodec stores Serializable values. New must return a fresh zero value.
type StructCodec[T Serializable] struct {
	New func() T
}

func (c StructCodec[T]) Encode(v T) []byte { return codec.Encode(v) }

func (c StructCodec[T]) Decode(b []byte) (T, error) {
	v := c.New()
	err := codec.Decode(b, v)
	return v, err
}
