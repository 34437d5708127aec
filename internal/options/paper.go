package options

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/pkg/logger"
)

// CandleSource fetches one day of 5m candles for an instrument token.
// Satisfied by the Kite client; tests plug in canned data.
type CandleSource interface {
	DayCandles(ctx context.Context, token int64, day time.Time) ([]models.Candle, error)
}

// CostModel holds the paper-trade cost assumptions.
type CostModel struct {
	SlippagePerSide        decimal.Decimal // per option unit, each transaction side
	ChargesPerLotRoundtrip decimal.Decimal // flat estimate per lot buy+sell
}

// ApplyLongSlippage worsens both sides of a long option roundtrip:
// the buy fills higher, the sell fills lower, floored at zero.
func (m CostModel) ApplyLongSlippage(entryRaw, exitRaw decimal.Decimal) (entryExec, exitExec decimal.Decimal) {
	entryExec = entryRaw.Add(m.SlippagePerSide)
	exitExec = decimal.Max(decimal.Zero, exitRaw.Sub(m.SlippagePerSide))
	return entryExec, exitExec
}

// CandleAtOrAfter returns the first candle at or after ts.
func CandleAtOrAfter(candles []models.Candle, ts time.Time) (models.Candle, bool) {
	for _, c := range candles {
		if !c.Date.Before(ts) {
			return c, true
		}
	}
	return models.Candle{}, false
}

// PaperTrader replays futures scale-out trades as long ATM option
// buys: CE for longs, PE for shorts, both lots entering at the option
// open of the futures entry candle and exiting at the option close of
// each lot's futures exit candle.
type PaperTrader struct {
	Resolver *Resolver
	Source   CandleSource
	Costs    CostModel
}

// Run maps every futures result. Trades that cannot be mapped or
// priced carry the error in the row instead of aborting the run.
func (p *PaperTrader) Run(ctx context.Context, futResults []models.ScaleOutResult) []models.OptionTrade {
	out := make([]models.OptionTrade, 0, len(futResults))
	for _, fr := range futResults {
		trade, err := p.runOne(ctx, fr)
		if err != nil {
			logger.Warn("option mapping failed",
				zap.Time("entry_time", fr.Signal.EntryTime),
				zap.String("side", string(fr.Signal.Side)),
				zap.Error(err))
			out = append(out, models.OptionTrade{Fut: fr, Err: err.Error()})
			continue
		}
		out = append(out, trade)
	}
	return out
}

func (p *PaperTrader) runOne(ctx context.Context, fr models.ScaleOutResult) (models.OptionTrade, error) {
	sig := fr.Signal
	if sig.EntryTime.IsZero() {
		return models.OptionTrade{}, fmt.Errorf("missing entry time")
	}

	optType := "CE"
	if sig.Side == models.SideShort {
		optType = "PE"
	}
	strike := RoundToStrike(sig.FutEntry)

	contract, err := p.Resolver.ResolveATM(sig.EntryTime, strike, optType)
	if err != nil {
		return models.OptionTrade{}, err
	}

	candles, err := p.Source.DayCandles(ctx, contract.Token, sig.EntryTime)
	if err != nil {
		return models.OptionTrade{}, fmt.Errorf("fetch option candles: %w", err)
	}
	if len(candles) == 0 {
		return models.OptionTrade{}, fmt.Errorf("no option candles for %s", contract.TradingSymbol)
	}

	cEntry, ok := CandleAtOrAfter(candles, sig.EntryTime)
	if !ok {
		return models.OptionTrade{}, fmt.Errorf("no option entry candle at/after %s", sig.EntryTime)
	}
	cLot1, ok := CandleAtOrAfter(candles, fr.Lot1.Time)
	if !ok {
		return models.OptionTrade{}, fmt.Errorf("no option candle at/after lot1 exit %s", fr.Lot1.Time)
	}
	cLot2, ok := CandleAtOrAfter(candles, fr.Lot2.Time)
	if !ok {
		return models.OptionTrade{}, fmt.Errorf("no option candle at/after lot2 exit %s", fr.Lot2.Time)
	}

	t := models.OptionTrade{
		Fut:              fr,
		Contract:         contract,
		EntryTimeUsed:    cEntry.Date,
		EntryPriceRaw:    cEntry.Open, // both lots share the entry proxy
		Lot1ExitTimeUsed: cLot1.Date,
		Lot1ExitPriceRaw: cLot1.Close,
		Lot2ExitTimeUsed: cLot2.Date,
		Lot2ExitPriceRaw: cLot2.Close,
	}

	lotSize := decimal.NewFromInt(int64(contract.LotSize))

	t.Lot1EntryExec, t.Lot1ExitExec = p.Costs.ApplyLongSlippage(t.EntryPriceRaw, t.Lot1ExitPriceRaw)
	t.Lot2EntryExec, t.Lot2ExitExec = p.Costs.ApplyLongSlippage(t.EntryPriceRaw, t.Lot2ExitPriceRaw)

	t.Lot1GrossPnL = t.Lot1ExitPriceRaw.Sub(t.EntryPriceRaw).Mul(lotSize)
	t.Lot2GrossPnL = t.Lot2ExitPriceRaw.Sub(t.EntryPriceRaw).Mul(lotSize)
	t.GrossTotal = t.Lot1GrossPnL.Add(t.Lot2GrossPnL)

	t.Lot1AfterSlippage = t.Lot1ExitExec.Sub(t.Lot1EntryExec).Mul(lotSize)
	t.Lot2AfterSlippage = t.Lot2ExitExec.Sub(t.Lot2EntryExec).Mul(lotSize)
	t.TotalAfterSlip = t.Lot1AfterSlippage.Add(t.Lot2AfterSlippage)

	t.Lot1Charges = p.Costs.ChargesPerLotRoundtrip
	t.Lot2Charges = p.Costs.ChargesPerLotRoundtrip
	t.TotalCharges = t.Lot1Charges.Add(t.Lot2Charges)

	t.Lot1Net = t.Lot1AfterSlippage.Sub(t.Lot1Charges)
	t.Lot2Net = t.Lot2AfterSlippage.Sub(t.Lot2Charges)
	t.NetTotal = t.Lot1Net.Add(t.Lot2Net)
	t.NetPerLot = t.NetTotal.Div(decimal.NewFromInt(2))
	return t, nil
}
