package codec

import (
	"fmt"
)

// Marshaler is implemented by types with a hand-written JAM encoding.
type Marshaler interface {
	EncodeTo(e *Encoder)
}

// Unmarshaler is the decoding counterpart of Marshaler.
type Unmarshaler interface {
	DecodeFrom(d *Decoder) error
}

// Encode serializes the given object using the JAM codec rules.
func Encode(obj Marshaler) []byte {
	e := NewEncoder()
	obj.EncodeTo(e)
	return e.Bytes()
}

// Decode deserializes inp into obj and requires that all of inp is consumed.
func Decode(inp []byte, obj Unmarshaler) error {
	d := NewDecoder(inp)
	if err := obj.DecodeFrom(d); err != nil {
		return fmt.Errorf("decoding failed: %w", err)
	}
	if err := d.Finish(); err != nil {
		return fmt.Errorf("decoding failed: %w", err)
	}
	return nil
}
