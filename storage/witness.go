package storage

import (
	"fmt"

	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/ethereum/go-ethereum/rlp"
)

// Witness is the ordered list of hints a native execution leaves behind.
// A constrained replay consumes the hints in the same order.
type Witness struct {
	hints  [][]byte
	cursor int
}

func NewWitness() *Witness {
	return &Witness{}
}

// AddHint appends a hint.
func (w *Witness) AddHint(h []byte) {
	w.hints = append(w.hints, h)
}

// GetHint returns the next unconsumed hint.
func (w *Witness) GetHint() ([]byte, error) {
	if w.cursor >= len(w.hints) {
		return nil, fmt.Errorf("%w: consumed %d", stferrors.ErrSWitnessExhausted, w.cursor)
	}
	h := w.hints[w.cursor]
	w.cursor++
	return h, nil
}

// Len is the total number of hints.
func (w *Witness) Len() int {
	return len(w.hints)
}

// Remaining is the number of unconsumed hints.
func (w *Witness) Remaining() int {
	return len(w.hints) - w.cursor
}

// Clone returns a copy with the cursor rewound, ready for replay.
func (w *Witness) Clone() *Witness {
	hints := make([][]byte, len(w.hints))
	for i, h := range w.hints {
		hints[i] = append([]byte(nil), h...)
	}
	return &Witness{hints: hints}
}

// Encode serializes the hints with RLP. The cursor is not part of the encoding.
func (w *Witness) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(w.hints)
}

// DecodeWitness parses bytes produced by Encode.
func DecodeWitness(b []byte) (*Witness, error) {
	var hints [][]byte
	if err := rlp.DecodeBytes(b, &hints); err != nil {
		return nil, fmt.Errorf("%w: %v", stferrors.ErrSMalformedWitness, err)
	}
	return &Witness{hints: hints}, nil
}
