package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dexledger/core/params"
	"github.com/dexledger/core/pkg/api"
	"github.com/dexledger/core/pkg/asset"
	"github.com/dexledger/core/pkg/dex"
	"github.com/dexledger/core/pkg/executor"
	"github.com/dexledger/core/pkg/genesis"
	"github.com/dexledger/core/pkg/kvstore"
	"github.com/dexledger/core/pkg/mempool"
	"github.com/dexledger/core/pkg/util"
)

const (
	blockInterval  = 250 * time.Millisecond
	maxTxsPerBlock = 500
)

func main() {
	cfg := params.LoadFromEnv("")

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	store, err := kvstore.Open(cfg.Ledger.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "err", err, "path", cfg.Ledger.DBPath)
	}
	defer store.Close()

	assetSvc := asset.NewService(store)
	dexSvc := dex.NewService(store, assetSvc)

	if os.Getenv("SKIP_GENESIS") != "true" {
		genesisPath := cfg.Node.GenesisPath
		if genesisPath == "" {
			genesisPath = "genesis.json"
		}
		raw, err := os.ReadFile(genesisPath)
		if err != nil {
			sugar.Fatalw("genesis_read_failed", "err", err, "path", genesisPath)
		}
		payload, err := genesis.Decode(raw)
		if err != nil {
			sugar.Fatalw("genesis_decode_failed", "err", err)
		}
		if err := genesis.Apply(assetSvc, dexSvc, payload); err != nil {
			sugar.Fatalw("genesis_apply_failed", "err", err)
		}
		sugar.Infow("genesis_applied", "assets", len(payload.Assets), "order_validity", payload.OrderValidity)
	} else {
		sugar.Info("genesis_skipped - recovering existing state")
	}

	exec := executor.New(assetSvc, dexSvc)
	mp := mempool.New()

	var height uint64
	apiServer := api.NewServer(assetSvc, dexSvc, mp, func() uint64 { return height })

	apiAddr := cfg.Node.HTTPAddr
	if apiAddr == "" {
		apiAddr = ":8080"
	}
	go func() {
		sugar.Infow("api_server_starting", "addr", apiAddr)
		if err := apiServer.Start(apiAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("node_starting", "block_interval_ms", blockInterval.Milliseconds(), "max_txs_per_block", maxTxsPerBlock)

	ticker := time.NewTicker(blockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Info("node_shutting_down")
			return
		case <-ticker.C:
			txs := mp.Drain(maxTxsPerBlock)

			height++
			blk := executor.Block{Height: height, Txs: txs}
			result := exec.FinalizeBlock(blk)

			topics := make([]string, 0, len(result.Events))
			for _, ev := range result.Events {
				topics = append(topics, ev.Topic)
			}

			if len(txs) > 0 || len(result.Events) > 0 {
				sugar.Infow("block_finalized", "height", height, "tx_count", len(txs), "event_count", len(result.Events))
			}

			apiServer.BroadcastBlock(height, len(txs), topics)
		}
	}
}
