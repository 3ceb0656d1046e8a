// rollup runs a single-sequencer rollup node: it fills a mempool, builds one
// blob per slot, applies it natively and records the witness that lets the
// slot be replayed without the database.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/colorfulnotion/rollup/builder/queue"
	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/config"
	"github.com/colorfulnotion/rollup/ed25519"
	log "github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/modules/valuesetter"
	"github.com/colorfulnotion/rollup/runtime"
	"github.com/colorfulnotion/rollup/stf"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/telemetry"
	"github.com/colorfulnotion/rollup/types"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func loadConfig(path string) (*config.NodeConfig, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func initLogging(cfg *config.NodeConfig) error {
	if cfg.LogJSON {
		return log.InitJSONLogger(os.Stdout, cfg.LogLevel)
	}
	log.InitLogger(cfg.LogLevel)
	return nil
}

// readHexLines reads one 0x-prefixed hex value per line. Blank lines and
// lines starting with # are skipped.
func readHexLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "0x") {
			return nil, fmt.Errorf("%s:%d: expected 0x-prefixed hex", path, n)
		}
		out = append(out, common.FromHex(line))
	}
	return out, sc.Err()
}

func seedKey(seedHex string) (ed25519.PrivateKey, error) {
	if seedHex == "" {
		_, priv, err := ed25519.GenerateKey(nil)
		return priv, err
	}
	seed := common.FromHex(seedHex)
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func runNode(configPath, txsPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TelemetryEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.TelemetryEndpoint, "")
		if err != nil {
			return err
		}
		shutdown := telemetry.Install(tp)
		defer shutdown(context.Background())
		log.Info(log.Node, "Telemetry enabled", "endpoint", cfg.TelemetryEndpoint)
	}

	hasher := cfg.NewHasher()
	ps, err := storage.NewPersistenceStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer ps.Close()
	s, err := storage.NewProverStorage(ps, hasher, cfg.ReadCacheSize)
	if err != nil {
		return err
	}

	rt := runtime.New(hasher, cfg.Genesis)
	app := stf.NewAppTemplate(s, rt, cfg.STF)
	if s.Root() == (common.Hash{}) {
		root, err := app.InitChain()
		if err != nil {
			return err
		}
		log.Info(log.Node, "Genesis written", "root", root)
	} else {
		log.Info(log.Node, "Resuming", "root", s.Root())
	}

	builder := queue.NewBatchBuilder(cfg.Mempool, rt, hasher)
	if txsPath != "" {
		txs, err := readHexLines(txsPath)
		if err != nil {
			return err
		}
		for i, tx := range txs {
			if err := builder.AcceptTx(tx); err != nil {
				log.Warn(log.Mempool, "tx not accepted", "line", i, "err", err)
			}
		}
		log.Info(log.Mempool, "Preloaded mempool", "txs", builder.Len())
	}

	onSlot := func(res *queue.SlotResult) {
		fmt.Println(types.ReceiptsTree(fmt.Sprintf("slot %d root %s", res.Slot, res.Root.String_short()),
			[]*types.BatchReceipt{res.Receipt}).String())
	}
	runner := queue.NewRunner(cfg.Runner, builder, app, s, cfg.SequencerDAAddress(), onSlot)
	runner.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info(log.Node, "Shutting down", "signal", sig)
		runner.Stop()
	case <-runner.Done():
	}
	return runner.Err()
}

func replay(configPath, blobsPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	blobs, err := readHexLines(blobsPath)
	if err != nil {
		return err
	}
	hasher := cfg.NewHasher()
	sequencer := cfg.SequencerDAAddress()

	ps, err := storage.NewMemoryPersistenceStore()
	if err != nil {
		return err
	}
	defer ps.Close()
	s, err := storage.NewProverStorage(ps, hasher, cfg.ReadCacheSize)
	if err != nil {
		return err
	}
	app := stf.NewAppTemplate(s, runtime.New(hasher, cfg.Genesis), cfg.STF)
	genesis, err := app.InitChain()
	if err != nil {
		return err
	}
	receipts, root, witness, err := app.ApplySlot(nil, sequencer, blobs)
	if err != nil {
		return fmt.Errorf("native: %w", err)
	}
	zkReceipts, zkRoot, err := stf.ReplayZk(runtime.New(hasher, cfg.Genesis), hasher, genesis, cfg.STF, witness, sequencer, blobs)
	if err != nil {
		return fmt.Errorf("zk: %w", err)
	}

	fmt.Println(types.ReceiptsTree(fmt.Sprintf("native root %s", root), receipts).String())
	diff, err := stf.DiffReceipts(receipts, zkReceipts)
	if err != nil {
		return err
	}
	if diff != "" {
		fmt.Println(diff)
		return fmt.Errorf("receipts differ")
	}
	if root != zkRoot {
		return fmt.Errorf("root mismatch: native %s zk %s", root, zkRoot)
	}
	fmt.Printf("✓ zk replay matches: %d blobs, %d witness hints, root %s\n", len(blobs), witness.Len(), zkRoot)
	return nil
}

func main() {
	var rootCmd = &cobra.Command{
		Use:          "rollup",
		Short:        "Single-sequencer rollup node",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		configPath string
		txsPath    string
		blobsPath  string
		seedHex    string
		nonce      uint64
		value      uint32
	)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults when empty)")

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Start the sequencer loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(configPath, txsPath)
		},
	}
	runCmd.Flags().StringVar(&txsPath, "txs", "", "File of hex transactions to preload into the mempool")

	var replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Apply blobs from genesis natively, then replay them from the witness alone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return replay(configPath, blobsPath)
		},
	}
	replayCmd.Flags().StringVar(&blobsPath, "blobs", "", "File of hex blobs, one per line")
	replayCmd.MarkFlagRequired("blobs")

	var keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Print an ed25519 key and its rollup address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			priv, err := seedKey(seedHex)
			if err != nil {
				return err
			}
			pk := ed25519.PublicKeyOf(priv)
			fmt.Printf("seed:    %s\n", common.Bytes2Hex(priv.Seed()))
			fmt.Printf("pubkey:  %s\n", pk.Hex())
			fmt.Printf("address: %s\n", pk.Address(cfg.NewHasher()))
			return nil
		},
	}
	keygenCmd.Flags().StringVar(&seedHex, "seed", "", "32-byte hex seed (random when empty)")

	var setValueCmd = &cobra.Command{
		Use:   "set-value",
		Short: "Print a signed value_setter transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			priv, err := seedKey(seedHex)
			if err != nil {
				return err
			}
			msg, err := runtime.EncodeCall(&valuesetter.SetValue{NewValue: value})
			if err != nil {
				return err
			}
			tx := types.NewTransaction(priv, msg, nonce, cfg.NewHasher())
			fmt.Println(common.Bytes2Hex(tx.Encode()))
			return nil
		},
	}
	setValueCmd.Flags().StringVar(&seedHex, "seed", "", "32-byte hex seed of the signer")
	setValueCmd.Flags().Uint64Var(&nonce, "nonce", 0, "Signer nonce")
	setValueCmd.Flags().Uint32Var(&value, "value", 0, "Value to set")
	setValueCmd.MarkFlagRequired("seed")

	rootCmd.AddCommand(runCmd, replayCmd, keygenCmd, setValueCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
