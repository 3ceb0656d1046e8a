package state

import (
	"fmt"

	"github.com/colorfulnotion/rollup/stferrors"
)

// StateValue is a single typed value stored under a prefix.
type StateValue[T any] struct {
	prefix Prefix
	codec  Codec[T]
}

func NewStateValue[T any](prefix Prefix, c Codec[T]) StateValue[T] {
	return StateValue[T]{prefix: prefix, codec: c}
}

func (v StateValue[T]) Prefix() Prefix {
	return v.prefix
}

func (v StateValue[T]) key() StorageKey {
	return NewStorageKey(v.prefix, nil)
}

// Get returns the value, or found=false when nothing is stored.
func (v StateValue[T]) Get(ws *WorkingSet) (T, bool, error) {
	var zero T
	b, found, err := ws.Get(v.key())
	if err != nil || !found {
		return zero, false, err
	}
	out, err := v.codec.Decode(b)
	if err != nil {
		return zero, false, fmt.Errorf("%w: %s: %v", stferrors.ErrWValueDecode, v.prefix, err)
	}
	return out, true, nil
}

// GetOrErr is Get with a missing value reported as an error.
func (v StateValue[T]) GetOrErr(ws *WorkingSet) (T, error) {
	out, found, err := v.Get(ws)
	if err != nil {
		return out, err
	}
	if !found {
		return out, fmt.Errorf("value %s is not set", v.prefix)
	}
	return out, nil
}

func (v StateValue[T]) Set(ws *WorkingSet, value T) {
	ws.Set(v.key(), v.codec.Encode(value))
}

func (v StateValue[T]) Delete(ws *WorkingSet) {
	ws.Delete(v.key())
}

// StateMap is a typed map stored under a prefix.
type StateMap[K, V any] struct {
	prefix     Prefix
	keyCodec   Codec[K]
	valueCodec Codec[V]
}

func NewStateMap[K, V any](prefix Prefix, kc Codec[K], vc Codec[V]) StateMap[K, V] {
	return StateMap[K, V]{prefix: prefix, keyCodec: kc, valueCodec: vc}
}

func (m StateMap[K, V]) Prefix() Prefix {
	return m.prefix
}

func (m StateMap[K, V]) key(k K) StorageKey {
	return NewStorageKey(m.prefix, m.keyCodec.Encode(k))
}

// Get returns the value under k, or found=false when absent.
func (m StateMap[K, V]) Get(ws *WorkingSet, k K) (V, bool, error) {
	var zero V
	b, found, err := ws.Get(m.key(k))
	if err != nil || !found {
		return zero, false, err
	}
	out, err := m.valueCodec.Decode(b)
	if err != nil {
		return zero, false, fmt.Errorf("%w: %s: %v", stferrors.ErrWValueDecode, m.prefix, err)
	}
	return out, true, nil
}

// GetOrErr is Get with a missing key reported as an error.
func (m StateMap[K, V]) GetOrErr(ws *WorkingSet, k K) (V, error) {
	out, found, err := m.Get(ws, k)
	if err != nil {
		return out, err
	}
	if !found {
		return out, fmt.Errorf("key %x not found in map %s", m.keyCodec.Encode(k), m.prefix)
	}
	return out, nil
}

func (m StateMap[K, V]) Set(ws *WorkingSet, k K, v V) {
	ws.Set(m.key(k), m.valueCodec.Encode(v))
}

func (m StateMap[K, V]) Delete(ws *WorkingSet, k K) {
	ws.Delete(m.key(k))
}
