package runtime

import (
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/modules/election"
	"github.com/colorfulnotion/rollup/modules/sequencer"
	"github.com/colorfulnotion/rollup/modules/valuesetter"
)

var (
	// DevSequencerDA is the DA address registered by DevGenesis.
	DevSequencerDA      = []byte("sequencer-da-address")
	DevSequencerAddress = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

// DevGenesis registers a funded sequencer and makes admin the admin of the
// example modules.
func DevGenesis(admin common.Address) GenesisConfig {
	return GenesisConfig{
		Sequencer: sequencer.Config{
			SeqRollupAddress: DevSequencerAddress,
			SeqDAAddress:     common.Bytes2Hex(DevSequencerDA),
			CoinsToLock:      "50",
			InitialBalance:   "1000",
			RewardPerTx:      "1",
		},
		ValueSetter: valuesetter.Config{Admin: admin},
		Election:    election.Config{Admin: admin},
	}
}
