package types

import (
	"fmt"

	"github.com/xlab/treeprint"
)

func (r *BatchReceipt) header() string {
	return fmt.Sprintf("\033[1;34mBatch: %s\033[0m, \033[1;32mOutcome: %s\033[0m, Txs: %d",
		r.BatchHash.String_short(), r.Outcome, len(r.TxReceipts))
}

func (r *BatchReceipt) addTxs(branch treeprint.Tree) {
	for i, tr := range r.TxReceipts {
		tx := branch.AddBranch(fmt.Sprintf("#%d %s %s", i, tr.TxHash.String_short(), tr.Effect))
		for _, ev := range tr.Events {
			tx.AddNode(ev.String())
		}
	}
}

// ToTree renders the receipt with one branch per transaction.
func (r *BatchReceipt) ToTree() treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(r.header())
	r.addTxs(tree)
	return tree
}

// ReceiptsTree renders a slot's receipts under one root.
func ReceiptsTree(label string, receipts []*BatchReceipt) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(label)
	for _, r := range receipts {
		r.addTxs(tree.AddBranch(r.header()))
	}
	return tree
}
