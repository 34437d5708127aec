package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSessionDate(t *testing.T) {
	c := Candle{Date: time.Date(2025, 6, 3, 9, 15, 0, 0, ExchangeLocation())}
	if got := c.SessionDate(); got != "2025-06-03" {
		t.Errorf("SessionDate() = %s", got)
	}
}

func TestPivotSetLevel(t *testing.T) {
	p := PivotSet{
		P:  decimal.NewFromInt(95),
		R1: decimal.NewFromInt(100), R2: decimal.NewFromInt(105),
		S1: decimal.NewFromInt(90), S2: decimal.NewFromInt(85),
		Valid: true,
	}

	v, ok := p.Level(LevelR2)
	if !ok || !v.Equal(decimal.NewFromInt(105)) {
		t.Errorf("Level(R2) = %s, %v", v, ok)
	}
	if _, ok := p.Level("R3"); ok {
		t.Error("unknown level name must not resolve")
	}
	if _, ok := (PivotSet{}).Level(LevelP); ok {
		t.Error("invalid set must not resolve any level")
	}
}

func TestExchangeLocation(t *testing.T) {
	loc := ExchangeLocation()
	ts := time.Date(2025, 6, 3, 9, 15, 0, 0, loc)
	_, offset := ts.Zone()
	if offset != 5*3600+1800 {
		t.Errorf("offset = %d, want +05:30", offset)
	}
}
