package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

// EMA computes an exponential moving average of candle closes.
// Entries before the warmup period are NaN.
func EMA(candles []models.Candle, period int) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
	}
	if len(closes) < period {
		out := make([]float64, len(closes))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	ema := talib.Ema(closes, period)
	for i := 0; i < period-1 && i < len(ema); i++ {
		ema[i] = math.NaN()
	}
	return ema
}

// VWAP computes the intraday volume-weighted average price, resetting
// at each session boundary. Candles must be sorted by time. Entries
// with zero cumulative volume are NaN.
func VWAP(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	var cumPV, cumVol float64
	session := ""
	for i, c := range candles {
		if s := c.SessionDate(); s != session {
			session = s
			cumPV, cumVol = 0, 0
		}
		tp := c.High.Add(c.Low).Add(c.Close).InexactFloat64() / 3.0
		vol := c.Volume.InexactFloat64()
		cumPV += tp * vol
		cumVol += vol
		if cumVol == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cumPV / cumVol
	}
	return out
}

type dayOHLC struct {
	high  decimal.Decimal
	low   decimal.Decimal
	close decimal.Decimal
}

// DailyPivots maps traditional previous-day pivots onto each intraday
// candle. The first session of the series gets an invalid set.
//
//	P  = (prevHigh + prevLow + prevClose) / 3
//	R1 = 2P - prevLow     S1 = 2P - prevHigh
//	R2 = P + (prevHigh - prevLow)
//	S2 = P - (prevHigh - prevLow)
func DailyPivots(candles []models.Candle) []models.PivotSet {
	out := make([]models.PivotSet, len(candles))
	if len(candles) == 0 {
		return out
	}

	daily := make(map[string]*dayOHLC)
	order := make([]string, 0, 8)
	for _, c := range candles {
		key := c.SessionDate()
		d, ok := daily[key]
		if !ok {
			daily[key] = &dayOHLC{high: c.High, low: c.Low, close: c.Close}
			order = append(order, key)
			continue
		}
		if c.High.GreaterThan(d.high) {
			d.high = c.High
		}
		if c.Low.LessThan(d.low) {
			d.low = c.Low
		}
		d.close = c.Close // candles sorted, last write wins
	}

	two := decimal.NewFromInt(2)
	three := decimal.NewFromInt(3)
	pivots := make(map[string]models.PivotSet, len(order))
	for i, key := range order {
		if i == 0 {
			pivots[key] = models.PivotSet{}
			continue
		}
		prev := daily[order[i-1]]
		p := prev.high.Add(prev.low).Add(prev.close).Div(three)
		rng := prev.high.Sub(prev.low)
		pivots[key] = models.PivotSet{
			P:     p,
			R1:    two.Mul(p).Sub(prev.low),
			S1:    two.Mul(p).Sub(prev.high),
			R2:    p.Add(rng),
			S2:    p.Sub(rng),
			Valid: true,
		}
	}

	for i, c := range candles {
		out[i] = pivots[c.SessionDate()]
	}
	return out
}
