package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nifty-pivot-research/internal/config"
	"nifty-pivot-research/internal/csvio"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/internal/options"
	"nifty-pivot-research/pkg/logger"
)

// Resolves the near-month future token and the ATM CE/PE pair for a
// given spot, straight off the instrument dump.
func main() {
	logger.Init()
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "path to config file")
	instrumentsCSV := flag.String("instruments", "instruments.csv", "instrument dump CSV")
	name := flag.String("name", "NIFTY", "underlying name")
	spot := flag.Float64("spot", 0, "current spot price (required)")
	flag.Parse()

	if *spot <= 0 {
		fmt.Fprintln(os.Stderr, "usage: find-tokens -spot 22510 [-instruments instruments.csv]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	instruments, err := csvio.LoadInstruments(*instrumentsCSV)
	if err != nil {
		logger.Fatal("load instruments (run cmd/download-instruments first)", zap.Error(err))
	}

	loc := models.ExchangeLocation()
	now := time.Now().In(loc)

	fut, err := options.NearFuture(instruments, *name, now)
	if err != nil {
		logger.Fatal("resolve near future", zap.Error(err))
	}
	fmt.Printf("%s FUT (near): %s | token: %d | expiry: %s\n",
		*name, fut.TradingSymbol, fut.Token, fut.Expiry.Format("2006-01-02"))

	strike := options.RoundToStrike(decimal.NewFromFloat(*spot))
	resolver := options.NewResolver(instruments, *name, cfg.Costs.LotSizeDefault)

	for _, optType := range []string{"CE", "PE"} {
		contract, err := resolver.ResolveATM(now, strike, optType)
		if err != nil {
			logger.Fatal("resolve ATM", zap.String("type", optType), zap.Error(err))
		}
		fmt.Printf("%s: %s | token: %d | strike: %s | expiry: %s | lot: %d\n",
			optType, contract.TradingSymbol, contract.Token,
			contract.Strike.String(), contract.Expiry.Format("2006-01-02"), contract.LotSize)
	}
}
