package stf

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/types"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// ApplySlot applies blobs, all from sequencer, as one slot. On error the
// slot is abandoned without committing.
func (a *AppTemplate) ApplySlot(witness *storage.Witness, sequencer []byte, blobs [][]byte) ([]*types.BatchReceipt, common.Hash, *storage.Witness, error) {
	if err := a.BeginSlot(witness); err != nil {
		return nil, common.Hash{}, nil, err
	}
	receipts := make([]*types.BatchReceipt, 0, len(blobs))
	for i, blob := range blobs {
		r, err := a.ApplyBlob(blob, sequencer, nil)
		if err != nil {
			a.ws = nil
			return nil, common.Hash{}, nil, fmt.Errorf("blob %d: %w", i, err)
		}
		receipts = append(receipts, r)
	}
	root, w, err := a.EndSlot()
	if err != nil {
		return nil, common.Hash{}, nil, err
	}
	return receipts, root, w, nil
}

// ReplayZk re-executes a slot from its witness alone, starting at prevRoot.
func ReplayZk(rt modules.Runtime, hasher common.Hasher, prevRoot common.Hash, cfg Config, witness *storage.Witness, sequencer []byte, blobs [][]byte) ([]*types.BatchReceipt, common.Hash, error) {
	app := NewAppTemplate(storage.NewZkStorage(prevRoot, hasher), rt, cfg)
	receipts, root, _, err := app.ApplySlot(witness.Clone(), sequencer, blobs)
	return receipts, root, err
}

// DiffReceipts returns an ascii diff of two receipt lists, or "" when they
// match.
func DiffReceipts(want, got []*types.BatchReceipt) (string, error) {
	left, err := json.Marshal(want)
	if err != nil {
		return "", err
	}
	right, err := json.Marshal(got)
	if err != nil {
		return "", err
	}
	// gojsondiff compares objects at the top level
	left = []byte(fmt.Sprintf(`{"receipts":%s}`, left))
	right = []byte(fmt.Sprintf(`{"receipts":%s}`, right))

	differ := gojsondiff.New()
	delta, err := differ.Compare(left, right)
	if err != nil {
		return "", err
	}
	if !delta.Modified() {
		return "", nil
	}
	var leftObj interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return "", err
	}
	cfg := formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	}
	return formatter.NewAsciiFormatter(leftObj, cfg).Format(delta)
}
