// Command chaind runs the single-node proof-of-work chain: it parses CLI
// flags and an optional TOML config file, opens the object store and chain
// store, constructs the chain engine, and serves the JSON-RPC adapter until
// signaled to stop.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/rubinchain/chaind/chainerr"
	"github.com/rubinchain/chaind/chainstore"
	"github.com/rubinchain/chaind/engine"
	"github.com/rubinchain/chaind/internal/log"
	"github.com/rubinchain/chaind/internal/nodecfg"
	"github.com/rubinchain/chaind/mempool"
	"github.com/rubinchain/chaind/objectstore"
	"github.com/rubinchain/chaind/rpc"
)

const offchainDirName = "offchain_storage"

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "data-dir",
		Usage: "data directory for the chain store and off-chain blobs",
		Value: nodecfg.DefaultConfig().DataDir,
	}
	rpcAddrFlag = &cli.StringFlag{
		Name:  "rpc-addr",
		Usage: "listen address for the JSON-RPC server",
		Value: nodecfg.DefaultConfig().RPCAddr,
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	rpcJWTSecretFlag = &cli.StringFlag{
		Name:  "rpc-jwtsecret",
		Usage: "file containing a hex-encoded secret for RPC bearer authentication",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn, or error",
		Value: nodecfg.DefaultConfig().LogLevel,
	}
	mempoolSizeFlag = &cli.IntFlag{
		Name:  "mempool-size",
		Usage: "maximum pending transactions held in the mempool",
		Value: nodecfg.DefaultConfig().MempoolSize,
	}
	maxBlockTxsFlag = &cli.IntFlag{
		Name:  "max-block-txs",
		Usage: "maximum transactions drawn from the mempool per mined block",
		Value: nodecfg.DefaultConfig().MaxBlockTxs,
	}
)

var app = &cli.App{
	Name:  "chaind",
	Usage: "single-node proof-of-work chain daemon",
	Flags: []cli.Flag{
		dataDirFlag,
		rpcAddrFlag,
		configFlag,
		rpcJWTSecretFlag,
		logLevelFlag,
		mempoolSizeFlag,
		maxBlockTxsFlag,
	},
	Action: run,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (nodecfg.Config, error) {
	cfg := nodecfg.DefaultConfig()

	if file := ctx.String(configFlag.Name); file != "" {
		if err := nodecfg.LoadFile(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(rpcAddrFlag.Name) {
		cfg.RPCAddr = ctx.String(rpcAddrFlag.Name)
	}
	if ctx.IsSet(rpcJWTSecretFlag.Name) {
		cfg.RPCJWTSecretFile = ctx.String(rpcJWTSecretFlag.Name)
	}
	if ctx.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = ctx.String(logLevelFlag.Name)
	}
	if ctx.IsSet(mempoolSizeFlag.Name) {
		cfg.MempoolSize = ctx.Int(mempoolSizeFlag.Name)
	}
	if ctx.IsSet(maxBlockTxsFlag.Name) {
		cfg.MaxBlockTxs = ctx.Int(maxBlockTxsFlag.Name)
	}

	return cfg, cfg.Validate()
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("chaind: invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("chaind: creating data directory: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New("chaind", level, os.Stdout)
	fileLogger := log.NewFileLogger("chaind", level, filepath.Join(cfg.DataDir, "chaind.log"))

	store, err := chainstore.Open(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open chain store", "err", err)
		fileLogger.Error("failed to open chain store", "err", err)
		return err
	}
	defer store.Close()

	objStore, err := objectstore.Open(filepath.Join(cfg.DataDir, offchainDirName))
	if err != nil {
		logger.Error("failed to open object store", "err", err)
		return err
	}

	pool := mempool.New(cfg.MempoolSize)
	chainEngine, err := engine.New(store, pool, engine.WithMaxTransactionsPerBlock(cfg.MaxBlockTxs))
	if err != nil {
		logger.Error("failed to initialize chain engine", "err", err)
		return err
	}
	if err := chainEngine.InitializeGenesisIfNeeded(); err != nil {
		logger.Error("failed to write genesis block", "err", err)
		return err
	}

	rpcOpts := []rpc.Option{rpc.WithLogger(logger)}
	if cfg.RPCJWTSecretFile != "" {
		raw, err := os.ReadFile(cfg.RPCJWTSecretFile)
		if err != nil {
			return chainerr.New(chainerr.KindInitialization, "chaind.run", err)
		}
		secret, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return chainerr.New(chainerr.KindInitialization, "chaind.run", err)
		}
		rpcOpts = append(rpcOpts, rpc.WithJWTSecret(secret))
	}
	server := rpc.New(chainEngine, objStore, rpcOpts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(cfg.RPCAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("rpc server exited", "err", err)
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		return nil
	}
}
