package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

const expiryLayout = "2006-01-02"

// WriteInstruments saves an instrument dump.
func WriteInstruments(path string, instruments []models.Instrument) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"instrument_token", "tradingsymbol", "name", "expiry",
		"strike", "lot_size", "instrument_type", "segment", "exchange"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, in := range instruments {
		expiry := ""
		if !in.Expiry.IsZero() {
			expiry = in.Expiry.Format(expiryLayout)
		}
		row := []string{
			strconv.FormatInt(in.Token, 10),
			in.TradingSymbol,
			in.Name,
			expiry,
			in.Strike.String(),
			strconv.Itoa(in.LotSize),
			in.InstrumentType,
			in.Segment,
			in.Exchange,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// headerIndex maps column names to positions, case-insensitively.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// LoadInstruments reads an instrument dump by header name, so the full
// broker export with extra columns parses too.
func LoadInstruments(path string) ([]models.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := headerIndex(header)
	for _, req := range []string{"instrument_token", "tradingsymbol"} {
		if _, ok := idx[req]; !ok {
			return nil, fmt.Errorf("column %q missing in %s", req, path)
		}
	}

	var out []models.Instrument
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		token, err := strconv.ParseInt(field(rec, idx, "instrument_token"), 10, 64)
		if err != nil {
			continue
		}
		strike, err := decimal.NewFromString(field(rec, idx, "strike"))
		if err != nil {
			strike = decimal.Zero
		}
		lotSize, _ := strconv.Atoi(field(rec, idx, "lot_size"))
		var expiry time.Time
		if v := field(rec, idx, "expiry"); v != "" {
			expiry, _ = time.ParseInLocation(expiryLayout, v, models.ExchangeLocation())
		}

		out = append(out, models.Instrument{
			Token:          token,
			TradingSymbol:  field(rec, idx, "tradingsymbol"),
			Name:           field(rec, idx, "name"),
			Expiry:         expiry,
			Strike:         strike,
			LotSize:        lotSize,
			InstrumentType: field(rec, idx, "instrument_type"),
			Segment:        field(rec, idx, "segment"),
			Exchange:       field(rec, idx, "exchange"),
		})
	}
	return out, nil
}

// LoadOptionTrades reads back the columns the breakdown reports need
// from an option paper-run CSV.
func LoadOptionTrades(path string, loc *time.Location) ([]models.OptionTrade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := headerIndex(header)
	if _, ok := idx["opt_net_total_pnl_2lots"]; !ok {
		return nil, fmt.Errorf("column opt_net_total_pnl_2lots missing in %s", path)
	}

	var out []models.OptionTrade
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		var t models.OptionTrade
		if v := field(rec, idx, "entry_time"); v != "" {
			if ts, err := parseTime(v, loc); err == nil {
				t.Fut.Signal.EntryTime = ts
			}
		}
		t.Fut.Signal.Side = models.Side(field(rec, idx, "side"))
		t.Fut.Signal.LevelName = field(rec, idx, "level_name")
		t.Fut.Lot1.Reason = models.ExitReason(field(rec, idx, "lot1_exit_reason"))
		t.Fut.Lot2.Reason = models.ExitReason(field(rec, idx, "lot2_exit_reason"))
		t.Err = field(rec, idx, "opt_error")
		if v := field(rec, idx, "opt_net_total_pnl_2lots"); v != "" {
			if pnl, err := decimal.NewFromString(v); err == nil {
				t.NetTotal = pnl
			}
		}
		out = append(out, t)
	}
	return out, nil
}
