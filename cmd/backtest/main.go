package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nifty-pivot-research/internal/backtest"
	"nifty-pivot-research/internal/config"
	"nifty-pivot-research/internal/csvio"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/internal/signal"
	chstore "nifty-pivot-research/internal/storage/clickhouse"
	"nifty-pivot-research/pkg/logger"
)

func main() {
	logger.Init()
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "path to config file")
	csvPath := flag.String("csv", "nifty_fut_5m.csv", "candle CSV; empty to read from ClickHouse")
	symbol := flag.String("symbol", "", "ClickHouse symbol (with -csv \"\")")
	from := flag.String("from", "", "ClickHouse range start, YYYY-MM-DD")
	to := flag.String("to", "", "ClickHouse range end, YYYY-MM-DD")
	outCSV := flag.String("out", "fut_backtest_scaleout_results.csv", "results CSV path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	loc := models.ExchangeLocation()
	candles, err := loadCandles(cfg, loc, *csvPath, *symbol, *from, *to)
	if err != nil {
		logger.Fatal("load candles", zap.Error(err))
	}
	if len(candles) == 0 {
		logger.Fatal("no candles to backtest")
	}

	engine, err := signal.FromConfig(cfg.Strategy)
	if err != nil {
		logger.Fatal("strategy config", zap.Error(err))
	}

	series := signal.Prepare(candles)
	signals := engine.Generate(series)
	if len(signals) == 0 {
		fmt.Println("No signals found.")
		return
	}

	sim := backtest.NewSimulator(engine.TargetPoints)
	results := make([]models.ScaleOutResult, 0, len(signals))
	for _, sig := range signals {
		results = append(results, sim.Run(series.Candles, sig))
	}

	if err := csvio.WriteScaleOutResults(*outCSV, results); err != nil {
		logger.Fatal("write results", zap.Error(err))
	}

	sum := backtest.Summarize(results)
	fmt.Printf("Saved results to: %s (run %s)\n", *outCSV, sum.RunID)
	fmt.Printf("Total trades: %d\n", sum.Trades)
	fmt.Printf("Wins (2-lot net > 0): %d | Losses: %d | Win rate: %s%%\n",
		sum.Wins, sum.Losses, sum.WinRate.StringFixed(2))
	fmt.Printf("TP1 hit count: %d/%d (%s%%)\n", sum.TP1Hits, sum.Trades, sum.TP1HitRate.StringFixed(2))
	fmt.Printf("Net FUT points (2 lots combined): %s\n", sum.NetPoints.StringFixed(2))
	fmt.Printf("Avg per trade (2 lots combined): %s\n", sum.AvgPoints.StringFixed(2))
	fmt.Printf("Effective avg points per lot: %s\n", sum.AvgPerLot.StringFixed(2))

	fmt.Println("\nLast trades:")
	tail := results
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	for _, r := range tail {
		s := r.Signal
		fmt.Printf("%s | %-5s | %s (%s) | Entry=%s SL=%s | lot1=%s %s | lot2=%s %s | total=%s\n",
			s.EntryTime.Format("2006-01-02 15:04"), s.Side, s.LevelName, s.LevelValue.StringFixed(2),
			s.FutEntry.StringFixed(2), s.FutSL.StringFixed(2),
			r.Lot1.Reason, r.Lot1.PnL.StringFixed(2),
			r.Lot2.Reason, r.Lot2.PnL.StringFixed(2),
			r.TotalPoints.StringFixed(2))
	}
}

func loadCandles(cfg *config.Config, loc *time.Location, csvPath, symbol, from, to string) ([]models.Candle, error) {
	if csvPath != "" {
		return csvio.LoadCandles(csvPath, loc)
	}
	if symbol == "" || from == "" || to == "" {
		return nil, fmt.Errorf("with -csv \"\" the -symbol, -from and -to flags are required")
	}
	fromT, err := time.ParseInLocation("2006-01-02", from, loc)
	if err != nil {
		return nil, fmt.Errorf("parse -from: %w", err)
	}
	toT, err := time.ParseInLocation("2006-01-02", to, loc)
	if err != nil {
		return nil, fmt.Errorf("parse -to: %w", err)
	}

	ctx := context.Background()
	store, err := chstore.Open(ctx, cfg.Data, loc)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.QueryCandles(ctx, symbol, cfg.Data.Interval, fromT, toT.AddDate(0, 0, 1))
}
