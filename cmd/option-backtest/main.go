package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nifty-pivot-research/internal/backtest"
	"nifty-pivot-research/internal/config"
	"nifty-pivot-research/internal/csvio"
	"nifty-pivot-research/internal/kite"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/internal/options"
	"nifty-pivot-research/internal/report"
	"nifty-pivot-research/internal/signal"
	"nifty-pivot-research/pkg/logger"
)

// Replays the futures scale-out run as long ATM option buys, pricing
// the legs from the broker's option candles with slippage and charges
// applied.
func main() {
	logger.Init()
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "path to config file")
	csvPath := flag.String("csv", "nifty_fut_5m.csv", "futures candle CSV")
	instrumentsCSV := flag.String("instruments", "instruments.csv", "instrument dump CSV")
	name := flag.String("name", "NIFTY", "underlying name")
	outCSV := flag.String("out", "option_paper_backtest_scaleout.csv", "results CSV path")
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

	candles, err := csvio.LoadCandles(*csvPath, loc)
	if err != nil {
		logger.Fatal("load candles (run cmd/fetch-candles first)", zap.Error(err))
	}
	instruments, err := csvio.LoadInstruments(*instrumentsCSV)
	if err != nil {
		logger.Fatal("load instruments (run cmd/download-instruments first)", zap.Error(err))
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
	futResults := make([]models.ScaleOutResult, 0, len(signals))
	for _, sig := range signals {
		futResults = append(futResults, sim.Run(series.Candles, sig))
	}

	trader := &options.PaperTrader{
		Resolver: options.NewResolver(instruments, *name, cfg.Costs.LotSizeDefault),
		Source:   client,
		Costs: options.CostModel{
			SlippagePerSide:        decimal.NewFromFloat(cfg.Costs.SlippagePerSide),
			ChargesPerLotRoundtrip: decimal.NewFromFloat(cfg.Costs.ChargesPerLotRoundtrip),
		},
	}
	trades := trader.Run(context.Background(), futResults)

	if err := csvio.WriteOptionTrades(*outCSV, trades); err != nil {
		logger.Fatal("write results", zap.Error(err))
	}
	fmt.Printf("Saved option scale-out results to: %s\n", *outCSV)
	fmt.Printf("Cost assumptions -> slippage/side: %.2f, charges/lot roundtrip: %.2f\n",
		cfg.Costs.SlippagePerSide, cfg.Costs.ChargesPerLotRoundtrip)

	valid := report.Valid(trades)
	if len(valid) == 0 {
		fmt.Println("No valid mapped option trades.")
		return
	}

	var gross, afterSlip, charges, net decimal.Decimal
	var grossWins, netWins int
	for _, t := range valid {
		gross = gross.Add(t.GrossTotal)
		afterSlip = afterSlip.Add(t.TotalAfterSlip)
		charges = charges.Add(t.TotalCharges)
		net = net.Add(t.NetTotal)
		if t.GrossTotal.IsPositive() {
			grossWins++
		}
		if t.NetTotal.IsPositive() {
			netWins++
		}
	}
	n := len(valid)
	fmt.Printf("\nValid option trades: %d (of %d signals)\n", n, len(trades))
	fmt.Println("\n--- Gross (before costs) ---")
	fmt.Printf("Wins: %d | Losses: %d | Net PnL (2 lots total): %s\n",
		grossWins, n-grossWins, gross.StringFixed(2))
	fmt.Println("\n--- Net (after slippage + charges) ---")
	fmt.Printf("Wins: %d | Losses: %d | Net PnL (2 lots total): %s\n",
		netWins, n-netWins, net.StringFixed(2))
	fmt.Println("\n--- Cost impact ---")
	fmt.Printf("Slippage impact: %s | Charges: %s | Total: %s\n",
		gross.Sub(afterSlip).StringFixed(2), charges.StringFixed(2),
		gross.Sub(afterSlip).Add(charges).StringFixed(2))
}
