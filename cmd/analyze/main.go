package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"nifty-pivot-research/internal/csvio"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/internal/report"
	"nifty-pivot-research/pkg/logger"
)

// Breaks an option paper run down by side, level, entry time bucket
// and exit pattern, and writes one report CSV per grouping.
func main() {
	logger.Init()
	defer logger.Sync()

	inCSV := flag.String("in", "option_paper_backtest_scaleout.csv", "option paper results CSV")
	outDir := flag.String("out-dir", ".", "directory for report CSVs")
	flag.Parse()

	trades, err := csvio.LoadOptionTrades(*inCSV, models.ExchangeLocation())
	if err != nil {
		logger.Fatal("load option trades (run cmd/option-backtest first)", zap.Error(err))
	}

	valid := report.Valid(trades)
	fmt.Printf("Valid trades: %d (of %d rows)\n", len(valid), len(trades))
	if len(valid) == 0 {
		return
	}

	groupings := []struct {
		title  string
		header string
		file   string
		key    report.GroupKey
	}{
		{"By Side", "side", "report_by_side.csv", report.BySide},
		{"By Level", "level", "report_by_level.csv", report.ByLevel},
		{"By Side + Level", "side_level", "report_by_side_level.csv", report.BySideLevel},
		{"By Time Bucket", "time_bucket", "report_by_time_bucket.csv", report.ByTimeBucket},
		{"By Exit Pattern", "exit_pattern", "report_by_exit_pattern.csv", report.ByExitPattern},
	}

	for _, g := range groupings {
		stats := report.Summarize(trades, g.key)
		fmt.Printf("\n=== %s ===\n", g.title)
		printStats(stats)
		path := filepath.Join(*outDir, g.file)
		if err := report.WriteCSV(path, g.header, stats); err != nil {
			logger.Fatal("write report", zap.String("path", path), zap.Error(err))
		}
	}
	fmt.Printf("\nSaved breakdown CSV reports to %s\n", *outDir)
}

func printStats(stats []report.GroupStat) {
	fmt.Printf("%-22s %7s %5s %7s %9s %12s %10s %7s\n",
		"group", "trades", "wins", "losses", "win%", "net_pnl", "avg_pnl", "pf")
	for _, st := range stats {
		fmt.Printf("%-22s %7d %5d %7d %9s %12s %10s %7s\n",
			st.Key, st.Trades, st.Wins, st.Losses,
			st.WinRate.StringFixed(2), st.NetPnL.StringFixed(2),
			st.AvgPnL.StringFixed(2), st.ProfitFactor.StringFixed(2))
	}
}
