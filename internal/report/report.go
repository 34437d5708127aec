package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

// TimeBucket maps an entry time to the session bucket used in the
// breakdown reports.
func TimeBucket(ts time.Time) string {
	if ts.IsZero() {
		return "UNKNOWN"
	}
	hhmm := ts.Hour()*100 + ts.Minute()
	switch {
	case hhmm < 1100:
		return "09:15-11:00"
	case hhmm < 1300:
		return "11:00-13:00"
	case hhmm < 1430:
		return "13:00-14:30"
	default:
		return "14:30-15:30"
	}
}

// GroupKey extracts the grouping key for one trade.
type GroupKey func(models.OptionTrade) string

func BySide(t models.OptionTrade) string  { return string(t.Fut.Signal.Side) }
func ByLevel(t models.OptionTrade) string { return t.Fut.Signal.LevelName }
func BySideLevel(t models.OptionTrade) string {
	return string(t.Fut.Signal.Side) + " " + t.Fut.Signal.LevelName
}
func ByTimeBucket(t models.OptionTrade) string { return TimeBucket(t.Fut.Signal.EntryTime) }
func ByExitPattern(t models.OptionTrade) string {
	return string(t.Fut.Lot1.Reason) + " | " + string(t.Fut.Lot2.Reason)
}

// GroupStat is one row of a grouped breakdown over net option PnL.
type GroupStat struct {
	Key          string
	Trades       int
	Wins         int
	Losses       int
	WinRate      decimal.Decimal
	NetPnL       decimal.Decimal
	AvgPnL       decimal.Decimal
	MedianPnL    decimal.Decimal
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal
	MaxWin       decimal.Decimal
	MaxLoss      decimal.Decimal
	ProfitFactor decimal.Decimal // zero when there are no losses
}

// Valid filters out trades that failed option mapping.
func Valid(trades []models.OptionTrade) []models.OptionTrade {
	out := make([]models.OptionTrade, 0, len(trades))
	for _, t := range trades {
		if t.Err == "" {
			out = append(out, t)
		}
	}
	return out
}

// Summarize groups valid trades by key and computes per-group stats,
// sorted by net PnL, then trade count, descending.
func Summarize(trades []models.OptionTrade, key GroupKey) []GroupStat {
	groups := make(map[string][]decimal.Decimal)
	for _, t := range trades {
		if t.Err != "" {
			continue
		}
		groups[key(t)] = append(groups[key(t)], t.NetTotal)
	}

	stats := make([]GroupStat, 0, len(groups))
	for k, pnls := range groups {
		stats = append(stats, summarizeGroup(k, pnls))
	}
	sort.Slice(stats, func(i, j int) bool {
		if !stats[i].NetPnL.Equal(stats[j].NetPnL) {
			return stats[i].NetPnL.GreaterThan(stats[j].NetPnL)
		}
		return stats[i].Trades > stats[j].Trades
	})
	return stats
}

func summarizeGroup(key string, pnls []decimal.Decimal) GroupStat {
	st := GroupStat{Key: key, Trades: len(pnls)}
	if len(pnls) == 0 {
		return st
	}

	winSum, lossSum := decimal.Zero, decimal.Zero
	st.MaxWin, st.MaxLoss = pnls[0], pnls[0]
	for _, p := range pnls {
		st.NetPnL = st.NetPnL.Add(p)
		if p.IsPositive() {
			st.Wins++
			winSum = winSum.Add(p)
		} else {
			st.Losses++
			lossSum = lossSum.Add(p)
		}
		st.MaxWin = decimal.Max(st.MaxWin, p)
		st.MaxLoss = decimal.Min(st.MaxLoss, p)
	}

	n := decimal.NewFromInt(int64(len(pnls)))
	st.AvgPnL = st.NetPnL.Div(n)
	st.WinRate = decimal.NewFromInt(int64(st.Wins)).Mul(decimal.NewFromInt(100)).Div(n)

	sorted := make([]decimal.Decimal, len(pnls))
	copy(sorted, pnls)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		st.MedianPnL = sorted[mid]
	} else {
		st.MedianPnL = sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
	}

	if st.Wins > 0 {
		st.AvgWin = winSum.Div(decimal.NewFromInt(int64(st.Wins)))
	}
	if st.Losses > 0 {
		st.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(st.Losses)))
		if !lossSum.IsZero() {
			st.ProfitFactor = winSum.Div(lossSum.Abs())
		}
	}
	return st
}

// WriteCSV writes one breakdown to disk.
func WriteCSV(path, keyHeader string, stats []GroupStat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{keyHeader, "trades", "wins", "losses", "win_rate_pct",
		"net_pnl", "avg_pnl", "median_pnl", "avg_win", "avg_loss",
		"max_win", "max_loss", "profit_factor"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, st := range stats {
		row := []string{
			st.Key,
			fmt.Sprintf("%d", st.Trades),
			fmt.Sprintf("%d", st.Wins),
			fmt.Sprintf("%d", st.Losses),
			st.WinRate.StringFixed(2),
			st.NetPnL.StringFixed(2),
			st.AvgPnL.StringFixed(2),
			st.MedianPnL.StringFixed(2),
			st.AvgWin.StringFixed(2),
			st.AvgLoss.StringFixed(2),
			st.MaxWin.StringFixed(2),
			st.MaxLoss.StringFixed(2),
			st.ProfitFactor.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
