package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrUnexpectedEOF            = errors.New("unexpected end of input")
	ErrTrailingBytes            = errors.New("trailing bytes after value")
	ErrU16OutOfRange            = errors.New("uint16 out of range")
	ErrU32OutOfRange            = errors.New("uint32 out of range")
	ErrU64OutOfRange            = errors.New("uint64 out of range")
	ErrCompactUintPrefixUnknown = errors.New("unknown prefix for compact uint")
	ErrLengthTooLarge           = errors.New("length exceeds remaining input")
	errDecodeBool               = errors.New("failed to decode bool")
)

// Decoder reads JAM-codec values from a byte slice.
type Decoder struct {
	data []byte
	pos  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// Finish fails if any input is left unread.
func (d *Decoder) Finish() error {
	if r := d.Remaining(); r != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, r)
	}
	return nil
}

func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, ErrUnexpectedEOF
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

// ReadFixed returns the next n bytes as a copy.
func (d *Decoder) ReadFixed(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrUnexpectedEOF, n, d.Remaining())
	}
	out := make([]byte, n)
	copy(out, d.data[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

// ReadUint decodes a JAM compact unsigned integer, rejecting non-canonical forms.
func (d *Decoder) ReadUint() (uint64, error) {
	prefix, err := d.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("reading byte: %w", err)
	}
	switch prefix % 4 {
	case 0:
		return uint64(prefix >> 2), nil
	case 1:
		b, err := d.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("reading byte: %w", err)
		}
		value := uint64(binary.LittleEndian.Uint16([]byte{prefix, b}) >> 2)
		if value < 1<<6 {
			return 0, fmt.Errorf("%w: %d (%b)", ErrU16OutOfRange, value, value)
		}
		return value, nil
	case 2:
		buf, err := d.ReadFixed(3)
		if err != nil {
			return 0, fmt.Errorf("reading bytes: %w", err)
		}
		value := uint64(binary.LittleEndian.Uint32(append([]byte{prefix}, buf...)) >> 2)
		if value < 1<<14 {
			return 0, fmt.Errorf("%w: %d (%b)", ErrU32OutOfRange, value, value)
		}
		return value, nil
	default:
		byteLen := int(prefix>>2) + 4
		if byteLen > 8 {
			return 0, fmt.Errorf("%w: %d", ErrCompactUintPrefixUnknown, prefix)
		}
		buf, err := d.ReadFixed(byteLen)
		if err != nil {
			return 0, fmt.Errorf("reading bytes: %w", err)
		}
		var tmp [8]byte
		copy(tmp[:], buf)
		value := binary.LittleEndian.Uint64(tmp[:])
		if value < 1<<30 || (byteLen > 4 && buf[byteLen-1] == 0) {
			return 0, fmt.Errorf("%w: %d (%b)", ErrU64OutOfRange, value, value)
		}
		return value, nil
	}
}

// ReadLength decodes a collection length and checks it against the remaining input,
// where each element occupies at least minElemSize bytes.
func (d *Decoder) ReadLength(minElemSize int) (int, error) {
	l, err := d.ReadUint()
	if err != nil {
		return 0, err
	}
	if minElemSize < 1 {
		minElemSize = 1
	}
	if l > uint64(d.Remaining()/minElemSize) {
		return 0, fmt.Errorf("%w: %d", ErrLengthTooLarge, l)
	}
	return int(l), nil
}

// ReadBytes decodes a length-prefixed byte slice.
func (d *Decoder) ReadBytes() ([]byte, error) {
	l, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	return d.ReadFixed(l)
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	return string(b), err
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02x", errDecodeBool, b)
	}
}

func (d *Decoder) ReadU8() (uint8, error) {
	return d.ReadByte()
}

func (d *Decoder) ReadU32() (uint32, error) {
	buf, err := d.ReadFixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (d *Decoder) ReadU64() (uint64, error) {
	buf, err := d.ReadFixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}
