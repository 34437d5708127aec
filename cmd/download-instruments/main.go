package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"nifty-pivot-research/internal/config"
	"nifty-pivot-research/internal/csvio"
	"nifty-pivot-research/internal/kite"
	"nifty-pivot-research/internal/models"
	chstore "nifty-pivot-research/internal/storage/clickhouse"
	"nifty-pivot-research/pkg/logger"
)

func main() {
	logger.Init()
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "path to config file")
	outCSV := flag.String("out", "instruments.csv", "CSV dump path (empty to skip)")
	skipCH := flag.Bool("no-clickhouse", false, "skip ClickHouse insert")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	creds, err := config.LoadCredentials(cfg.Kite.EnvFile)
	if err != nil {
		logger.Fatal("load credentials", zap.Error(err))
	}

	loc := models.ExchangeLocation()
	client, err := kite.NewFromSession(creds, cfg.Kite.SessionFile, loc)
	if err != nil {
		logger.Fatal("kite session", zap.Error(err))
	}

	ctx := context.Background()
	instruments, err := client.Instruments(ctx)
	if err != nil {
		logger.Fatal("download instruments", zap.Error(err))
	}
	logger.Info("downloaded instruments", zap.Int("rows", len(instruments)))

	if *outCSV != "" {
		if err := csvio.WriteInstruments(*outCSV, instruments); err != nil {
			logger.Fatal("write csv", zap.Error(err))
		}
		logger.Info("saved", zap.String("path", *outCSV))
	}

	if !*skipCH {
		store, err := chstore.Open(ctx, cfg.Data, loc)
		if err != nil {
			logger.Fatal("clickhouse", zap.Error(err))
		}
		defer store.Close()
		if err := store.InsertInstruments(ctx, time.Now().In(loc), instruments); err != nil {
			logger.Fatal("insert instruments", zap.Error(err))
		}
	}
}
