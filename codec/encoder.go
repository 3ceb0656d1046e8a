package codec

import (
	"bytes"
	"encoding/binary"
)

// Encoder appends JAM-codec values to an in-memory buffer. Writes to a
// bytes.Buffer cannot fail, so the methods do not return errors.
type Encoder struct {
	buf bytes.Buffer
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded output.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) Len() int {
	return e.buf.Len()
}

// WriteUint encodes unsigned integers with JAM compact encoding
func (e *Encoder) WriteUint(i uint64) {
	switch {
	case i < 1<<6:
		e.buf.WriteByte(byte(i) << 2)
	case i < 1<<14:
		var o [2]byte
		binary.LittleEndian.PutUint16(o[:], uint16(i<<2)+1)
		e.buf.Write(o[:])
	case i < 1<<30:
		var o [4]byte
		binary.LittleEndian.PutUint32(o[:], uint32(i<<2)+2)
		e.buf.Write(o[:])
	default:
		var o [8]byte
		m := i
		var numBytes int
		for numBytes = 0; numBytes < 8 && m != 0; numBytes++ {
			m = m >> 8
		}
		if numBytes < 4 {
			numBytes = 4
		}
		e.buf.WriteByte(uint8(numBytes-4)<<2 + 3)
		binary.LittleEndian.PutUint64(o[:], i)
		e.buf.Write(o[:numBytes])
	}
}

// WriteLength encodes the length of a collection
func (e *Encoder) WriteLength(l int) {
	e.WriteUint(uint64(l))
}

// WriteBytes encodes a byte slice with length prefix
func (e *Encoder) WriteBytes(b []byte) {
	e.WriteLength(len(b))
	e.buf.Write(b)
}

// WriteFixed writes b verbatim, for fixed-width fields such as keys and signatures.
func (e *Encoder) WriteFixed(b []byte) {
	e.buf.Write(b)
}

func (e *Encoder) WriteString(s string) {
	e.WriteBytes([]byte(s))
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf.WriteByte(0x01)
	} else {
		e.buf.WriteByte(0x00)
	}
}

func (e *Encoder) WriteU8(v uint8) {
	e.buf.WriteByte(v)
}

func (e *Encoder) WriteU32(v uint32) {
	var o [4]byte
	binary.LittleEndian.PutUint32(o[:], v)
	e.buf.Write(o[:])
}

func (e *Encoder) WriteU64(v uint64) {
	var o [8]byte
	binary.LittleEndian.PutUint64(o[:], v)
	e.buf.Write(o[:])
}
