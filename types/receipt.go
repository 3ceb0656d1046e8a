package types

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/rollup/common"
)

// TxEffect is the per-transaction outcome.
type TxEffect uint8

const (
	TxSuccessful TxEffect = iota
	TxReverted
)

func (e TxEffect) String() string {
	switch e {
	case TxSuccessful:
		return "Successful"
	case TxReverted:
		return "Reverted"
	default:
		return fmt.Sprintf("TxEffect(%d)", uint8(e))
	}
}

func (e TxEffect) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *TxEffect) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Successful":
		*e = TxSuccessful
	case "Reverted":
		*e = TxReverted
	default:
		return fmt.Errorf("unknown tx effect %q", s)
	}
	return nil
}

// SlashingReason explains a Slashed outcome.
type SlashingReason uint8

const (
	InvalidBatchEncoding SlashingReason = iota + 1
	StatelessVerificationFailed
	InvalidTransactionEncoding
)

func (r SlashingReason) String() string {
	switch r {
	case InvalidBatchEncoding:
		return "InvalidBatchEncoding"
	case StatelessVerificationFailed:
		return "StatelessVerificationFailed"
	case InvalidTransactionEncoding:
		return "InvalidTransactionEncoding"
	default:
		return fmt.Sprintf("SlashingReason(%d)", uint8(r))
	}
}

// OutcomeKind tags a SequencerOutcome.
type OutcomeKind uint8

const (
	OutcomeRewarded OutcomeKind = iota
	OutcomeSlashed
	OutcomeIgnored
)

// SequencerOutcome is Rewarded, Slashed(Reason) or Ignored. Reason is only
// meaningful when Kind is OutcomeSlashed.
type SequencerOutcome struct {
	Kind   OutcomeKind
	Reason SlashingReason
}

func Rewarded() SequencerOutcome { return SequencerOutcome{Kind: OutcomeRewarded} }

func Ignored() SequencerOutcome { return SequencerOutcome{Kind: OutcomeIgnored} }

func Slashed(reason SlashingReason) SequencerOutcome {
	return SequencerOutcome{Kind: OutcomeSlashed, Reason: reason}
}

func (o SequencerOutcome) String() string {
	switch o.Kind {
	case OutcomeRewarded:
		return "Rewarded"
	case OutcomeIgnored:
		return "Ignored"
	case OutcomeSlashed:
		return fmt.Sprintf("Slashed(%s)", o.Reason)
	default:
		return fmt.Sprintf("SequencerOutcome(%d)", uint8(o.Kind))
	}
}

func (o SequencerOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// TransactionReceipt records what one transaction did.
type TransactionReceipt struct {
	TxHash     common.Hash `json:"tx_hash"`
	BodyToSave []byte      `json:"body_to_save,omitempty"`
	Events     []Event     `json:"events"`
	Effect     TxEffect    `json:"effect"`
}

// BatchReceipt records what one blob did. TxReceipts are in batch order.
type BatchReceipt struct {
	BatchHash  common.Hash          `json:"batch_hash"`
	TxReceipts []TransactionReceipt `json:"tx_receipts"`
	Outcome    SequencerOutcome     `json:"outcome"`
}

// Successful counts receipts with effect Successful.
func (r *BatchReceipt) Successful() int {
	n := 0
	for _, tr := range r.TxReceipts {
		if tr.Effect == TxSuccessful {
			n++
		}
	}
	return n
}

// String method returns the BatchReceipt as a formatted JSON string
func (r *BatchReceipt) String() string {
	jsonData, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}
