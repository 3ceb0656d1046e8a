package stf

import (
	"fmt"
	"runtime"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/types"
	"golang.org/x/sync/errgroup"
)

// VerifyStateless decodes raw and checks its signature.
func VerifyStateless(raw []byte, hasher common.Hasher) (*types.Transaction, error) {
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return nil, err
	}
	if err := tx.Verify(hasher); err != nil {
		return nil, err
	}
	return tx, nil
}

// VerifyBatch verifies every transaction with at most parallelism workers.
// Every transaction is checked; the reported error is the one with the
// lowest index, so the result does not depend on scheduling.
func VerifyBatch(raws [][]byte, hasher common.Hasher, parallelism int) ([]*types.Transaction, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	txs := make([]*types.Transaction, len(raws))
	errs := make([]error, len(raws))
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, raw := range raws {
		g.Go(func() error {
			txs[i], errs[i] = VerifyStateless(raw, hasher)
			return errs[i]
		})
	}
	if g.Wait() == nil {
		return txs, nil
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
	}
	return txs, nil
}
