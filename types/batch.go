package types

import (
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/stferrors"
)

// Batch is the ordered list of raw transactions a sequencer proposes.
type Batch struct {
	Txs [][]byte
}

func (b *Batch) EncodeTo(e *codec.Encoder) {
	e.WriteLength(len(b.Txs))
	for _, tx := range b.Txs {
		e.WriteBytes(tx)
	}
}

func (b *Batch) DecodeFrom(d *codec.Decoder) error {
	n, err := d.ReadLength(1)
	if err != nil {
		return fmt.Errorf("tx count: %w", err)
	}
	b.Txs = make([][]byte, n)
	for i := range b.Txs {
		if b.Txs[i], err = d.ReadBytes(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}
	return nil
}

// EncodeBatch returns the blob payload for txs.
func EncodeBatch(txs [][]byte) []byte {
	return codec.Encode(&Batch{Txs: txs})
}

// DecodeBatch parses a blob payload.
func DecodeBatch(blob []byte) (*Batch, error) {
	b := new(Batch)
	if err := codec.Decode(blob, b); err != nil {
		return nil, fmt.Errorf("%w: %w", stferrors.ErrXBatchDecode, err)
	}
	return b, nil
}

// Size is the sum of raw transaction lengths.
func (b *Batch) Size() int {
	n := 0
	for _, tx := range b.Txs {
		n += len(tx)
	}
	return n
}

// BatchHash is hasher(blob).
func BatchHash(hasher common.Hasher, blob []byte) common.Hash {
	return hasher.Hash(blob)
}
