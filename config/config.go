// Package config loads the node configuration from YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/colorfulnotion/rollup/builder/queue"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/runtime"
	"github.com/colorfulnotion/rollup/stf"
	"github.com/colorfulnotion/rollup/storage"
	"gopkg.in/yaml.v2"
)

const (
	DefaultLogLevel     = "info"
	DefaultHasher       = common.HasherBlake2b
	DefaultSlotInterval = 6 * time.Second
)

type NodeConfig struct {
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	LogJSON       bool   `yaml:"log_json" json:"log_json"`
	Hasher        string `yaml:"hasher" json:"hasher"`
	ReadCacheSize int    `yaml:"read_cache_size" json:"read_cache_size"`
	// SequencerDA is the hex DA address this node submits blobs as.
	SequencerDA       string                `yaml:"sequencer_da_address" json:"sequencer_da_address"`
	TelemetryEndpoint string                `yaml:"telemetry_endpoint" json:"telemetry_endpoint"`
	Mempool           queue.Config          `yaml:"mempool" json:"mempool"`
	Runner            queue.RunnerConfig    `yaml:"runner" json:"runner"`
	STF               stf.Config            `yaml:"stf" json:"stf"`
	Genesis           runtime.GenesisConfig `yaml:"genesis" json:"genesis"`
}

// DefaultConfig returns a config for a single dev sequencer.
func DefaultConfig() *NodeConfig {
	runner := queue.DefaultRunnerConfig()
	runner.TickInterval = DefaultSlotInterval
	return &NodeConfig{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".rollup"),
		LogLevel:      DefaultLogLevel,
		Hasher:        DefaultHasher,
		ReadCacheSize: storage.DefaultReadCacheSize,
		SequencerDA:   common.Bytes2Hex(runtime.DevSequencerDA),
		Mempool:       queue.DefaultConfig(),
		Runner:        runner,
		Genesis:       runtime.DevGenesis(common.Address{}),
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*NodeConfig, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *NodeConfig) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if _, err := common.NewHasher(c.Hasher); err != nil {
		return fmt.Errorf("config: hasher: %w", err)
	}
	if len(c.SequencerDAAddress()) == 0 {
		return fmt.Errorf("config: sequencer_da_address is empty or not hex")
	}
	if c.Mempool.MaxMempoolSize <= 0 || c.Mempool.MaxBatchBytes <= 0 {
		return fmt.Errorf("config: mempool limits must be positive")
	}
	return nil
}

// SequencerDAAddress decodes SequencerDA.
func (c *NodeConfig) SequencerDAAddress() []byte {
	if !strings.HasPrefix(c.SequencerDA, "0x") {
		return nil
	}
	return common.FromHex(c.SequencerDA)
}

func (c *NodeConfig) NewHasher() common.Hasher {
	h, err := common.NewHasher(c.Hasher)
	if err != nil {
		return common.DefaultHasher
	}
	return h
}

// String method returns the NodeConfig as a formatted JSON string
func (c *NodeConfig) String() string {
	jsonData, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}
