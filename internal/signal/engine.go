package signal

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nifty-pivot-research/internal/indicators"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/pkg/logger"
)

// BeforeEntryCutoff reports whether the timestamp's time-of-day is at
// or before the configured cutoff. Inclusive of the exact cutoff
// minute: with a 14:00 cutoff, 14:00 passes and 14:01 does not.
func BeforeEntryCutoff(ts time.Time, cutoffHour, cutoffMinute int) bool {
	h, m := ts.Hour(), ts.Minute()
	return h < cutoffHour || (h == cutoffHour && m <= cutoffMinute)
}

// AfterOpeningRange reports whether the timestamp is at or past 09:30,
// skipping the first fifteen minutes of the session.
func AfterOpeningRange(ts time.Time) bool {
	h, m := ts.Hour(), ts.Minute()
	return h > 9 || (h == 9 && m >= 30)
}

// Allowlist restricts which pivot levels may produce signals.
type Allowlist map[string]bool

func NewAllowlist(levels []string) Allowlist {
	a := make(Allowlist, len(levels))
	for _, l := range levels {
		a[l] = true
	}
	return a
}

func (a Allowlist) Allows(level string) bool { return a[level] }

// Series is a prepared candle series with the indicator columns the
// engine filters on.
type Series struct {
	Candles []models.Candle
	Pivots  []models.PivotSet
	EMA50   []float64
	EMA222  []float64
	VWAP    []float64
}

// Prepare sorts the candles by time and computes pivots, EMAs and the
// session VWAP.
func Prepare(candles []models.Candle) *Series {
	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	return &Series{
		Candles: sorted,
		Pivots:  indicators.DailyPivots(sorted),
		EMA50:   indicators.EMA(sorted, 50),
		EMA222:  indicators.EMA(sorted, 222),
		VWAP:    indicators.VWAP(sorted),
	}
}

// Engine generates pivot-break signals under the v2 filter set.
type Engine struct {
	CutoffHour   int
	CutoffMinute int
	AllowLong    Allowlist
	AllowShort   Allowlist
	TargetPoints decimal.Decimal
}

// NewEngine returns an engine with the v2 defaults: cutoff 14:00,
// long R1/R2, short S1 only.
func NewEngine() *Engine {
	return &Engine{
		CutoffHour:   14,
		CutoffMinute: 0,
		AllowLong:    NewAllowlist([]string{models.LevelR1, models.LevelR2}),
		AllowShort:   NewAllowlist([]string{models.LevelS1}),
		TargetPoints: decimal.NewFromInt(40),
	}
}

func (e *Engine) longFilter(s *Series, i int) bool {
	v, e50, e222 := s.VWAP[i], s.EMA50[i], s.EMA222[i]
	if math.IsNaN(v) || math.IsNaN(e50) || math.IsNaN(e222) {
		return false
	}
	close := s.Candles[i].Close.InexactFloat64()
	return close > v && close > e50 && e50 > e222
}

func (e *Engine) shortFilter(s *Series, i int) bool {
	v, e50, e222 := s.VWAP[i], s.EMA50[i], s.EMA222[i]
	if math.IsNaN(v) || math.IsNaN(e50) || math.IsNaN(e222) {
		return false
	}
	close := s.Candles[i].Close.InexactFloat64()
	return close < v && close < e50 && e50 < e222
}

// Generate walks the series and emits confirmed signals. The pattern
// needs candles t-1, t, t+1 and t+2, all within one session:
// signal-1 (t) breaks and closes through the level, signal-2 (t+1)
// must not touch it, entry fills at the t+2 open.
func (e *Engine) Generate(s *Series) []models.Signal {
	var signals []models.Signal

	for i := 1; i < len(s.Candles)-2; i++ {
		piv := s.Pivots[i]
		if !piv.Valid {
			continue
		}

		ct := s.Candles[i]
		prev := s.Candles[i-1]
		confirm := s.Candles[i+1]
		entry := s.Candles[i+2]

		if !AfterOpeningRange(ct.Date) {
			continue
		}
		if !BeforeEntryCutoff(entry.Date, e.CutoffHour, e.CutoffMinute) {
			continue
		}
		// all three candles must sit in the same session
		if ct.SessionDate() != confirm.SessionDate() || ct.SessionDate() != entry.SessionDate() {
			continue
		}

		for _, levelName := range []string{models.LevelR1, models.LevelR2} {
			if !e.AllowLong.Allows(levelName) {
				continue
			}
			level, _ := piv.Level(levelName)

			broke := ct.Close.GreaterThan(level) && prev.Close.LessThanOrEqual(level)
			held := confirm.Low.GreaterThan(level)
			if !(broke && held && e.longFilter(s, i)) {
				continue
			}

			futEntry := entry.Open
			futSL := ct.Low
			if futSL.GreaterThanOrEqual(futEntry) {
				// bad structure, stop would fill instantly
				continue
			}
			signals = append(signals, models.Signal{
				SignalTime:     ct.Date,
				EntryTime:      entry.Date,
				Side:           models.SideLong,
				LevelName:      levelName,
				LevelValue:     level,
				FutSignalClose: ct.Close,
				FutEntry:       futEntry,
				FutSL:          futSL,
				FutTP:          futEntry.Add(e.TargetPoints),
				Signal1Idx:     i,
				Signal2Idx:     i + 1,
				EntryIdx:       i + 2,
			})
		}

		for _, levelName := range []string{models.LevelS1, models.LevelS2} {
			if !e.AllowShort.Allows(levelName) {
				continue
			}
			level, _ := piv.Level(levelName)

			broke := ct.Close.LessThan(level) && prev.Close.GreaterThanOrEqual(level)
			held := confirm.High.LessThan(level)
			if !(broke && held && e.shortFilter(s, i)) {
				continue
			}

			futEntry := entry.Open
			futSL := ct.High
			if futSL.LessThanOrEqual(futEntry) {
				continue
			}
			signals = append(signals, models.Signal{
				SignalTime:     ct.Date,
				EntryTime:      entry.Date,
				Side:           models.SideShort,
				LevelName:      levelName,
				LevelValue:     level,
				FutSignalClose: ct.Close,
				FutEntry:       futEntry,
				FutSL:          futSL,
				FutTP:          futEntry.Sub(e.TargetPoints),
				Signal1Idx:     i,
				Signal2Idx:     i + 1,
				EntryIdx:       i + 2,
			})
		}
	}

	logger.Debug("signal generation done",
		zap.Int("candles", len(s.Candles)),
		zap.Int("signals", len(signals)))
	return signals
}
