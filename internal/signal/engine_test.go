package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func ts(hour, min int) time.Time {
	return time.Date(2025, 6, 3, hour, min, 0, 0, models.ExchangeLocation())
}

func TestBeforeEntryCutoff(t *testing.T) {
	cases := []struct {
		hour, min int
		want      bool
	}{
		{9, 30, true},
		{13, 59, true},
		{14, 0, true}, // inclusive of the exact cutoff minute
		{14, 1, false},
		{15, 25, false},
	}
	for _, tc := range cases {
		got := BeforeEntryCutoff(ts(tc.hour, tc.min), 14, 0)
		if got != tc.want {
			t.Errorf("BeforeEntryCutoff(%02d:%02d, 14:00) = %v, want %v", tc.hour, tc.min, got, tc.want)
		}
	}

	// non-zero cutoff minute
	if !BeforeEntryCutoff(ts(14, 45), 14, 45) {
		t.Error("14:45 should pass a 14:45 cutoff")
	}
	if BeforeEntryCutoff(ts(14, 46), 14, 45) {
		t.Error("14:46 should fail a 14:45 cutoff")
	}
}

func TestAfterOpeningRange(t *testing.T) {
	if AfterOpeningRange(ts(9, 29)) {
		t.Error("09:29 is inside the opening range")
	}
	if !AfterOpeningRange(ts(9, 30)) {
		t.Error("09:30 should pass")
	}
	if !AfterOpeningRange(ts(10, 0)) {
		t.Error("10:00 should pass")
	}
}

func TestAllowlistV2(t *testing.T) {
	e := NewEngine()

	if !e.AllowLong.Allows(models.LevelR1) || !e.AllowLong.Allows(models.LevelR2) {
		t.Error("long side must allow R1 and R2")
	}
	if !e.AllowShort.Allows(models.LevelS1) {
		t.Error("short side must allow S1")
	}
	if e.AllowShort.Allows(models.LevelS2) {
		t.Error("short side must exclude S2 under the v2 policy")
	}
}

// buildSeries hand-assembles a prepared series so tests control the
// indicator columns without hundreds of warmup candles.
func buildSeries(candles []models.Candle, piv models.PivotSet, longOK bool) *Series {
	n := len(candles)
	s := &Series{
		Candles: candles,
		Pivots:  make([]models.PivotSet, n),
		EMA50:   make([]float64, n),
		EMA222:  make([]float64, n),
		VWAP:    make([]float64, n),
	}
	for i := range candles {
		s.Pivots[i] = piv
		close := candles[i].Close.InexactFloat64()
		if longOK {
			s.VWAP[i] = close - 10
			s.EMA50[i] = close - 5
			s.EMA222[i] = close - 20
		} else {
			s.VWAP[i] = close + 10
			s.EMA50[i] = close + 5
			s.EMA222[i] = close + 20
		}
	}
	return s
}

func candle(at time.Time, open, high, low, close float64) models.Candle {
	return models.Candle{Date: at, Open: d(open), High: d(high), Low: d(low), Close: d(close), Volume: d(1000)}
}

func longBreakCandles() []models.Candle {
	// R1 at 22500: prev closes below, signal breaks and closes above,
	// confirmation holds above, entry at the next open
	return []models.Candle{
		candle(ts(10, 0), 22480, 22495, 22470, 22490),  // prev
		candle(ts(10, 5), 22490, 22520, 22485, 22510),  // signal-1
		candle(ts(10, 10), 22510, 22530, 22505, 22525), // signal-2, low > R1
		candle(ts(10, 15), 22526, 22560, 22520, 22550), // entry
		candle(ts(10, 20), 22550, 22570, 22540, 22560),
	}
}

func r1Pivots() models.PivotSet {
	return models.PivotSet{
		P: d(22400), R1: d(22500), R2: d(22600), S1: d(22300), S2: d(22200), Valid: true,
	}
}

func TestGenerateLongBreak(t *testing.T) {
	s := buildSeries(longBreakCandles(), r1Pivots(), true)
	signals := NewEngine().Generate(s)

	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.Side != models.SideLong || sig.LevelName != models.LevelR1 {
		t.Fatalf("got %s %s, want LONG R1", sig.Side, sig.LevelName)
	}
	if !sig.FutEntry.Equal(d(22526)) {
		t.Errorf("entry = %s, want 22526 (third candle open)", sig.FutEntry)
	}
	if !sig.FutSL.Equal(d(22485)) {
		t.Errorf("SL = %s, want 22485 (signal-1 low)", sig.FutSL)
	}
	if !sig.FutTP.Equal(d(22566)) {
		t.Errorf("TP = %s, want entry+40", sig.FutTP)
	}
	if sig.EntryIdx != 3 {
		t.Errorf("entry idx = %d, want 3", sig.EntryIdx)
	}
}

func TestGenerateRejectsTouchedConfirmation(t *testing.T) {
	candles := longBreakCandles()
	candles[2].Low = d(22499) // confirmation candle dips back to R1
	s := buildSeries(candles, r1Pivots(), true)

	if got := NewEngine().Generate(s); len(got) != 0 {
		t.Fatalf("got %d signals, want 0 when the confirmation candle touches the level", len(got))
	}
}

func TestGenerateRejectsLateEntry(t *testing.T) {
	candles := longBreakCandles()
	for i := range candles {
		candles[i].Date = candles[i].Date.Add(4*time.Hour + 10*time.Minute) // entry lands at 14:25
	}
	s := buildSeries(candles, r1Pivots(), true)

	if got := NewEngine().Generate(s); len(got) != 0 {
		t.Fatalf("got %d signals, want 0 past the entry cutoff", len(got))
	}
}

func TestGenerateRejectsCrossSession(t *testing.T) {
	candles := longBreakCandles()
	for i := 2; i < len(candles); i++ {
		candles[i].Date = candles[i].Date.AddDate(0, 0, 1)
	}
	s := buildSeries(candles, r1Pivots(), true)

	if got := NewEngine().Generate(s); len(got) != 0 {
		t.Fatalf("got %d signals, want 0 across sessions", len(got))
	}
}

func TestGenerateRejectsTrendFilter(t *testing.T) {
	s := buildSeries(longBreakCandles(), r1Pivots(), false) // price below VWAP/EMAs
	if got := NewEngine().Generate(s); len(got) != 0 {
		t.Fatalf("got %d signals, want 0 with the trend filter against the trade", len(got))
	}
}

// shortBreakCandles breaks down through a level at 22500.
func shortBreakCandles() []models.Candle {
	return []models.Candle{
		candle(ts(10, 0), 22520, 22530, 22505, 22510),  // prev closes above level
		candle(ts(10, 5), 22510, 22515, 22470, 22480),  // signal-1 closes below
		candle(ts(10, 10), 22480, 22490, 22450, 22460), // signal-2, high < level
		candle(ts(10, 15), 22458, 22465, 22400, 22420), // entry
		candle(ts(10, 20), 22420, 22430, 22380, 22400),
	}
}

func TestGenerateShortS1AllowedS2Blocked(t *testing.T) {
	piv := models.PivotSet{
		P: d(22600), R1: d(22700), R2: d(22800), S1: d(22500), S2: d(22500), Valid: true,
	}
	// identical S1/S2 values: only the S1 signal may come through
	s := buildSeries(shortBreakCandles(), piv, false)
	signals := NewEngine().Generate(s)

	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].LevelName != models.LevelS1 {
		t.Fatalf("level = %s, want S1 (S2 excluded)", signals[0].LevelName)
	}
	if signals[0].Side != models.SideShort {
		t.Fatalf("side = %s, want SHORT", signals[0].Side)
	}
	if !signals[0].FutSL.Equal(d(22515)) {
		t.Errorf("SL = %s, want signal-1 high 22515", signals[0].FutSL)
	}

	// widening the short allowlist brings S2 back
	e := NewEngine()
	e.AllowShort = NewAllowlist([]string{models.LevelS1, models.LevelS2})
	if got := e.Generate(s); len(got) != 2 {
		t.Fatalf("got %d signals with S2 allowed, want 2", len(got))
	}
}

func TestGenerateRejectsBadStopStructure(t *testing.T) {
	candles := longBreakCandles()
	candles[1].Low = d(22540) // signal-1 low above the entry open
	s := buildSeries(candles, r1Pivots(), true)

	if got := NewEngine().Generate(s); len(got) != 0 {
		t.Fatalf("got %d signals, want 0 when the stop would fill instantly", len(got))
	}
}

func TestGenerateSkipsInvalidPivots(t *testing.T) {
	s := buildSeries(longBreakCandles(), models.PivotSet{}, true)
	if got := NewEngine().Generate(s); len(got) != 0 {
		t.Fatalf("got %d signals, want 0 on the first session without pivots", len(got))
	}
}
