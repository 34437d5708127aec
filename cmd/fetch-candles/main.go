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
	"nifty-pivot-research/internal/options"
	chstore "nifty-pivot-research/internal/storage/clickhouse"
	"nifty-pivot-research/pkg/logger"
)

// Downloads the lookback window of 5m candles for the near-month
// NIFTY future into ClickHouse, with a CSV copy for the backtests.
func main() {
	logger.Init()
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "path to config file")
	instrumentsCSV := flag.String("instruments", "instruments.csv", "instrument dump CSV")
	outCSV := flag.String("out", "nifty_fut_5m.csv", "candle CSV output path (empty to skip)")
	name := flag.String("name", "NIFTY", "underlying name")
	lookback := flag.Int("lookback-days", 0, "override lookback window")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *lookback > 0 {
		cfg.Data.LookbackDays = *lookback
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

	instruments, err := csvio.LoadInstruments(*instrumentsCSV)
	if err != nil {
		logger.Fatal("load instruments (run cmd/download-instruments first)", zap.Error(err))
	}
	fut, err := options.NearFuture(instruments, *name, time.Now().In(loc))
	if err != nil {
		logger.Fatal("resolve near future", zap.Error(err))
	}
	logger.Info("near future",
		zap.String("symbol", fut.TradingSymbol),
		zap.Int64("token", fut.Token),
		zap.Time("expiry", fut.Expiry))

	ctx := context.Background()
	to := time.Now().In(loc)
	from := to.AddDate(0, 0, -cfg.Data.LookbackDays)

	candles, err := client.HistoricalChunked(ctx, fut.Token, cfg.Data.Interval, from, to, cfg.Data.ChunkDays)
	if err != nil {
		logger.Fatal("fetch candles", zap.Error(err))
	}
	if len(candles) == 0 {
		logger.Fatal("no candles returned")
	}
	logger.Info("fetched candles", zap.Int("rows", len(candles)))

	store, err := chstore.Open(ctx, cfg.Data, loc)
	if err != nil {
		logger.Fatal("clickhouse", zap.Error(err))
	}
	defer store.Close()
	if err := store.InsertCandles(ctx, fut.TradingSymbol, cfg.Data.Interval, candles); err != nil {
		logger.Fatal("insert candles", zap.Error(err))
	}

	if *outCSV != "" {
		if err := csvio.WriteCandles(*outCSV, candles); err != nil {
			logger.Fatal("write csv", zap.Error(err))
		}
		logger.Info("saved", zap.String("path", *outCSV))
	}
}
