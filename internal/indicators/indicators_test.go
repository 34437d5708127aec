package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func candleAt(day, hour, min int, high, low, close, vol float64) models.Candle {
	return models.Candle{
		Date:   time.Date(2025, 6, day, hour, min, 0, 0, models.ExchangeLocation()),
		Open:   d(close),
		High:   d(high),
		Low:    d(low),
		Close:  d(close),
		Volume: d(vol),
	}
}

func TestDailyPivotsFromPreviousSession(t *testing.T) {
	// day 2: high 100, low 90, close 95 across two candles
	candles := []models.Candle{
		candleAt(2, 9, 15, 100, 92, 93, 100),
		candleAt(2, 15, 25, 99, 90, 95, 100),
		candleAt(3, 9, 15, 101, 96, 98, 100),
		candleAt(3, 9, 20, 102, 97, 100, 100),
	}

	piv := DailyPivots(candles)
	if len(piv) != len(candles) {
		t.Fatalf("len = %d, want %d", len(piv), len(candles))
	}
	if piv[0].Valid || piv[1].Valid {
		t.Fatal("first session must carry an invalid pivot set")
	}

	// P = (100+90+95)/3 = 95, R1 = 2*95-90 = 100, S1 = 2*95-100 = 90,
	// R2 = 95+10 = 105, S2 = 95-10 = 85
	for _, i := range []int{2, 3} {
		p := piv[i]
		if !p.Valid {
			t.Fatalf("candle %d: pivots should be valid", i)
		}
		checks := []struct {
			name string
			got  decimal.Decimal
			want float64
		}{
			{"P", p.P, 95}, {"R1", p.R1, 100}, {"S1", p.S1, 90}, {"R2", p.R2, 105}, {"S2", p.S2, 85},
		}
		for _, c := range checks {
			if !c.got.Equal(d(c.want)) {
				t.Errorf("candle %d: %s = %s, want %v", i, c.name, c.got, c.want)
			}
		}
	}
}

func TestDailyPivotsUsesSessionExtremes(t *testing.T) {
	// the session high/low come from different candles than the close
	candles := []models.Candle{
		candleAt(2, 9, 15, 110, 95, 96, 100),
		candleAt(2, 11, 0, 105, 88, 90, 100),
		candleAt(2, 15, 25, 100, 92, 94, 100),
		candleAt(3, 9, 15, 101, 96, 98, 100),
	}
	piv := DailyPivots(candles)
	// P = (110+88+94)/3
	wantP := decimal.NewFromInt(110 + 88 + 94).Div(decimal.NewFromInt(3))
	if !piv[3].P.Equal(wantP) {
		t.Errorf("P = %s, want %s", piv[3].P, wantP)
	}
}

func TestVWAPSessionReset(t *testing.T) {
	candles := []models.Candle{
		candleAt(2, 9, 15, 10, 8, 9, 2),   // tp 9
		candleAt(2, 9, 20, 13, 11, 12, 2), // tp 12 -> cum (18+24)/4 = 10.5
		candleAt(3, 9, 15, 22, 18, 20, 5), // new session, tp 20
	}
	vwap := VWAP(candles)

	if math.Abs(vwap[0]-9) > 1e-9 {
		t.Errorf("vwap[0] = %v, want 9", vwap[0])
	}
	if math.Abs(vwap[1]-10.5) > 1e-9 {
		t.Errorf("vwap[1] = %v, want 10.5", vwap[1])
	}
	if math.Abs(vwap[2]-20) > 1e-9 {
		t.Errorf("vwap[2] = %v, want 20 after session reset", vwap[2])
	}
}

func TestVWAPZeroVolume(t *testing.T) {
	candles := []models.Candle{candleAt(2, 9, 15, 10, 8, 9, 0)}
	vwap := VWAP(candles)
	if !math.IsNaN(vwap[0]) {
		t.Errorf("vwap with zero cumulative volume = %v, want NaN", vwap[0])
	}
}

func TestEMAWarmupAndConstantSeries(t *testing.T) {
	const period = 5
	candles := make([]models.Candle, 12)
	for i := range candles {
		candles[i] = candleAt(2, 9, 15+5*i, 101, 99, 100, 10)
	}
	ema := EMA(candles, period)

	if len(ema) != len(candles) {
		t.Fatalf("len = %d, want %d", len(ema), len(candles))
	}
	for i := 0; i < period-1; i++ {
		if !math.IsNaN(ema[i]) {
			t.Errorf("ema[%d] = %v, want NaN during warmup", i, ema[i])
		}
	}
	for i := period - 1; i < len(ema); i++ {
		if math.Abs(ema[i]-100) > 1e-9 {
			t.Errorf("ema[%d] = %v, want 100 on a constant series", i, ema[i])
		}
	}
}

func TestEMAShortSeries(t *testing.T) {
	candles := []models.Candle{candleAt(2, 9, 15, 101, 99, 100, 10)}
	ema := EMA(candles, 50)
	if len(ema) != 1 || !math.IsNaN(ema[0]) {
		t.Fatalf("ema on a series shorter than the period should be all NaN, got %v", ema)
	}
}
