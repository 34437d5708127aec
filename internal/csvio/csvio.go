package csvio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/pkg/logger"
)

const timeLayout = "2006-01-02 15:04:05-07:00"

var parseLayouts = []string{
	timeLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if strings.Contains(layout, "-07") || strings.Contains(layout, "Z07") {
			if t, err := time.Parse(layout, s); err == nil {
				return t.In(loc), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// decodingReader wraps the file with a UTF-16 decoder when a BOM is
// present; broker CSV exports occasionally come out UTF-16.
func decodingReader(f *os.File) (io.Reader, error) {
	br := bufio.NewReader(f)
	head, _ := br.Peek(2)
	if len(head) >= 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		return transform.NewReader(f, dec), nil
	}
	return br, nil
}

// LoadCandles reads a date,open,high,low,close,volume CSV. Rows are
// sorted by time and duplicate timestamps collapse to the last row.
func LoadCandles(path string, loc *time.Location) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader, err := decodingReader(f)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var candles []models.Candle
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line++
			continue
		}
		if len(rec) < 6 {
			line++
			continue
		}
		first := strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff")
		if line == 0 && (strings.EqualFold(first, "date") || strings.EqualFold(first, "timestamp")) {
			line++
			continue
		}

		ts, err := parseTime(first, loc)
		if err != nil {
			line++
			continue
		}
		var vals [5]decimal.Decimal
		bad := false
		for i := 0; i < 5; i++ {
			v, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
			if err != nil {
				if i == 4 {
					v = decimal.Zero // missing volume is tolerable
				} else {
					bad = true
					break
				}
			}
			vals[i] = v
		}
		if bad {
			line++
			continue
		}
		candles = append(candles, models.Candle{
			Date:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
		line++
	}

	if len(candles) > 1 {
		sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
		uniq := candles[:0]
		for _, c := range candles {
			if len(uniq) > 0 && uniq[len(uniq)-1].Date.Equal(c.Date) {
				uniq[len(uniq)-1] = c
				continue
			}
			uniq = append(uniq, c)
		}
		candles = uniq
	}

	logger.Info("loaded candles", zap.String("path", path), zap.Int("rows", len(candles)))
	return candles, nil
}

// WriteCandles writes candles in the same format LoadCandles reads.
func WriteCandles(path string, candles []models.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range candles {
		row := []string{
			c.Date.Format(timeLayout),
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(),
			c.Volume.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

// WriteScaleOutResults dumps the futures scale-out run.
func WriteScaleOutResults(path string, results []models.ScaleOutResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"signal_time", "entry_time", "side", "level_name", "level_value",
		"fut_signal_close", "fut_entry", "fut_sl", "fut_tp",
		"lot1_exit_time", "lot1_exit_price", "lot1_exit_reason", "lot1_pnl_points",
		"lot2_exit_time", "lot2_exit_price", "lot2_exit_reason", "lot2_pnl_points",
		"lot2_final_sl", "mfe_points", "mae_points",
		"risk_points", "tp1_points", "tp1_rr",
		"total_points_2lots", "effective_points_per_lot",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		s := r.Signal
		row := []string{
			fmtTime(s.SignalTime), fmtTime(s.EntryTime), string(s.Side), s.LevelName, s.LevelValue.String(),
			s.FutSignalClose.String(), s.FutEntry.String(), s.FutSL.String(), s.FutTP.String(),
			fmtTime(r.Lot1.Time), r.Lot1.Price.String(), string(r.Lot1.Reason), r.Lot1.PnL.String(),
			fmtTime(r.Lot2.Time), r.Lot2.Price.String(), string(r.Lot2.Reason), r.Lot2.PnL.String(),
			r.Lot2Final.String(), r.MFEPoints.String(), r.MAEPoints.String(),
			r.RiskPoints.String(), r.TP1Points.String(), r.TP1RR.StringFixed(4),
			r.TotalPoints.String(), r.EffectivePerLot.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteOptionTrades dumps the option paper run, including failed rows
// with their error.
func WriteOptionTrades(path string, trades []models.OptionTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"entry_time", "side", "level_name",
		"opt_symbol", "opt_token", "opt_expiry", "opt_strike", "opt_type", "lot_size",
		"opt_entry_time_used", "opt_entry_price_raw",
		"opt_lot1_exit_time_used", "opt_lot1_exit_price_raw",
		"opt_lot2_exit_time_used", "opt_lot2_exit_price_raw",
		"opt_gross_total_pnl_2lots",
		"opt_total_pnl_after_slippage_2lots", "opt_total_charges_2lots",
		"opt_net_total_pnl_2lots", "opt_net_effective_pnl_per_lot",
		"lot1_exit_reason", "lot2_exit_reason", "opt_error",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		sig := t.Fut.Signal
		row := []string{
			fmtTime(sig.EntryTime), string(sig.Side), sig.LevelName,
			t.Contract.TradingSymbol, fmt.Sprintf("%d", t.Contract.Token),
			fmtTime(t.Contract.Expiry), t.Contract.Strike.String(), t.Contract.Type,
			fmt.Sprintf("%d", t.Contract.LotSize),
			fmtTime(t.EntryTimeUsed), t.EntryPriceRaw.String(),
			fmtTime(t.Lot1ExitTimeUsed), t.Lot1ExitPriceRaw.String(),
			fmtTime(t.Lot2ExitTimeUsed), t.Lot2ExitPriceRaw.String(),
			t.GrossTotal.StringFixed(2),
			t.TotalAfterSlip.StringFixed(2), t.TotalCharges.StringFixed(2),
			t.NetTotal.StringFixed(2), t.NetPerLot.StringFixed(2),
			string(t.Fut.Lot1.Reason), string(t.Fut.Lot2.Reason), t.Err,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
