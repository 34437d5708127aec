package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of a futures trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Level names for traditional daily pivots.
const (
	LevelP  = "P"
	LevelR1 = "R1"
	LevelR2 = "R2"
	LevelS1 = "S1"
	LevelS2 = "S2"
)

// Candle is one intraday OHLCV bar. Timestamps carry the exchange
// timezone (Asia/Kolkata for NSE/NFO data).
type Candle struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
	OI     int64
}

// SessionDate returns the trading-session key for the candle.
func (c Candle) SessionDate() string {
	return c.Date.Format("2006-01-02")
}

// PivotSet holds one session's traditional pivots, derived from the
// previous session's OHLC. Zero Valid means the first session of the
// series (no previous day to derive from).
type PivotSet struct {
	P     decimal.Decimal
	R1    decimal.Decimal
	R2    decimal.Decimal
	S1    decimal.Decimal
	S2    decimal.Decimal
	Valid bool
}

// Level returns the named pivot value.
func (p PivotSet) Level(name string) (decimal.Decimal, bool) {
	if !p.Valid {
		return decimal.Zero, false
	}
	switch name {
	case LevelP:
		return p.P, true
	case LevelR1:
		return p.R1, true
	case LevelR2:
		return p.R2, true
	case LevelS1:
		return p.S1, true
	case LevelS2:
		return p.S2, true
	}
	return decimal.Zero, false
}

// Instrument is one row of the broker instrument dump.
type Instrument struct {
	Token          int64
	TradingSymbol  string
	Name           string
	Expiry         time.Time
	Strike         decimal.Decimal
	LotSize        int
	InstrumentType string // FUT / CE / PE / EQ
	Segment        string // NFO-FUT / NFO-OPT / ...
	Exchange       string
}

// Signal is a confirmed pivot break. The three-candle pattern:
// signal-1 breaks and closes through the level, signal-2 must not
// touch the level, entry fills at the third candle's open.
type Signal struct {
	SignalTime     time.Time // signal-1 candle timestamp
	EntryTime      time.Time // entry (third) candle timestamp
	Side           Side
	LevelName      string
	LevelValue     decimal.Decimal
	FutSignalClose decimal.Decimal
	FutEntry       decimal.Decimal
	FutSL          decimal.Decimal
	FutTP          decimal.Decimal
	Signal1Idx     int
	Signal2Idx     int
	EntryIdx       int
}

// ExitReason explains how a lot was closed.
type ExitReason string

const (
	ExitTP1          ExitReason = "TP1"
	ExitSL           ExitReason = "SL"
	ExitSLSameCandle ExitReason = "SL_SAME_CANDLE"
	ExitInitialSL    ExitReason = "INITIAL_SL"
	ExitTrailSL      ExitReason = "TRAIL_SL"
	ExitEOD          ExitReason = "EOD"
	ExitNoData       ExitReason = "NO_DATA"
)

// LotExit is the terminal state of one lot in a scale-out trade.
type LotExit struct {
	Time   time.Time
	Price  decimal.Decimal
	Reason ExitReason
	PnL    decimal.Decimal // futures points for this lot
}

// ScaleOutResult is one simulated two-lot futures trade.
type ScaleOutResult struct {
	Signal Signal

	Lot1       LotExit
	Lot2       LotExit
	Lot2Final  decimal.Decimal // final stop for the runner lot
	MFEPoints  decimal.Decimal
	MAEPoints  decimal.Decimal
	RiskPoints decimal.Decimal
	TP1Points  decimal.Decimal
	TP1RR      decimal.Decimal // reward:risk of the fixed target, zero when risk is zero

	TotalPoints     decimal.Decimal // both lots combined
	EffectivePerLot decimal.Decimal
}

// OptionContract identifies the ATM option mapped to a futures trade.
type OptionContract struct {
	Token         int64
	TradingSymbol string
	Expiry        time.Time
	Strike        decimal.Decimal
	Type          string // CE / PE
	LotSize       int
}

// OptionTrade is the option-side paper result for one scale-out trade.
type OptionTrade struct {
	Fut      ScaleOutResult
	Contract OptionContract

	EntryTimeUsed time.Time
	EntryPriceRaw decimal.Decimal

	Lot1ExitTimeUsed  time.Time
	Lot1ExitPriceRaw  decimal.Decimal
	Lot2ExitTimeUsed  time.Time
	Lot2ExitPriceRaw  decimal.Decimal
	Lot1EntryExec     decimal.Decimal
	Lot1ExitExec      decimal.Decimal
	Lot2EntryExec     decimal.Decimal
	Lot2ExitExec      decimal.Decimal
	Lot1GrossPnL      decimal.Decimal
	Lot2GrossPnL      decimal.Decimal
	GrossTotal        decimal.Decimal
	Lot1AfterSlippage decimal.Decimal
	Lot2AfterSlippage decimal.Decimal
	TotalAfterSlip    decimal.Decimal
	Lot1Charges       decimal.Decimal
	Lot2Charges       decimal.Decimal
	TotalCharges      decimal.Decimal
	Lot1Net           decimal.Decimal
	Lot2Net           decimal.Decimal
	NetTotal          decimal.Decimal
	NetPerLot         decimal.Decimal

	Err string // mapping/fetch failure; empty for valid trades
}

// RunSummary aggregates a futures scale-out run.
type RunSummary struct {
	RunID       string
	Trades      int
	Wins        int
	Losses      int
	WinRate     decimal.Decimal
	TP1Hits     int
	TP1HitRate  decimal.Decimal
	NetPoints   decimal.Decimal
	AvgPoints   decimal.Decimal
	AvgPerLot   decimal.Decimal
	GeneratedAt time.Time
}
