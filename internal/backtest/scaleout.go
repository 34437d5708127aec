package backtest

import (
	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

// Simulator runs the two-lot scale-out exit model on futures candles.
//
// Lot 1 takes a fixed target (entry +/- target points) against the
// signal-candle stop. Lot 2 shares the initial stop; once lot 1's
// target fills, its stop moves to break-even and then trails the
// previous completed candle's extreme. Any leg still open at the end
// of the session exits on the last close. When a candle spans both
// the target and the stop, the stop is assumed to fill first.
type Simulator struct {
	Target1Points decimal.Decimal
}

func NewSimulator(target1 decimal.Decimal) *Simulator {
	return &Simulator{Target1Points: target1}
}

// sessionScan returns the candles from the entry index to the end of
// the entry session.
func sessionScan(candles []models.Candle, entryIdx int) []models.Candle {
	if entryIdx < 0 || entryIdx >= len(candles) {
		return nil
	}
	session := candles[entryIdx].SessionDate()
	end := entryIdx
	for end < len(candles) && candles[end].SessionDate() == session {
		end++
	}
	return candles[entryIdx:end]
}

// Run simulates one signal. Candles must be the same prepared series
// the signal indexes refer to.
func (s *Simulator) Run(candles []models.Candle, sig models.Signal) models.ScaleOutResult {
	res := models.ScaleOutResult{
		Signal:    sig,
		TP1Points: s.Target1Points,
	}
	res.RiskPoints = sig.FutEntry.Sub(sig.FutSL).Abs()
	if res.RiskPoints.IsPositive() {
		res.TP1RR = s.Target1Points.Div(res.RiskPoints)
	}

	scan := sessionScan(candles, sig.EntryIdx)
	if len(scan) == 0 {
		res.Lot1 = models.LotExit{Reason: models.ExitNoData}
		res.Lot2 = models.LotExit{Reason: models.ExitNoData}
		return res
	}

	long := sig.Side == models.SideLong
	entry := sig.FutEntry
	initialSL := sig.FutSL

	var lot1TP decimal.Decimal
	if long {
		lot1TP = entry.Add(s.Target1Points)
	} else {
		lot1TP = entry.Sub(s.Target1Points)
	}

	lot1Open, lot2Open := true, true
	lot2SL := initialSL
	beActivated := false
	mfe, mae := decimal.Zero, decimal.Zero

	for i, c := range scan {
		high, low := c.High, c.Low

		var favorable, adverse decimal.Decimal
		if long {
			favorable = high.Sub(entry)
			adverse = entry.Sub(low)
		} else {
			favorable = entry.Sub(low)
			adverse = high.Sub(entry)
		}
		if favorable.GreaterThan(mfe) {
			mfe = favorable
		}
		if adverse.GreaterThan(mae) {
			mae = adverse
		}

		if lot1Open {
			var hitTP, hitSL bool
			if long {
				hitTP = high.GreaterThanOrEqual(lot1TP)
				hitSL = low.LessThanOrEqual(initialSL)
			} else {
				hitTP = low.LessThanOrEqual(lot1TP)
				hitSL = high.GreaterThanOrEqual(initialSL)
			}
			switch {
			case hitTP && hitSL:
				lot1Open = false
				res.Lot1 = models.LotExit{Time: c.Date, Price: initialSL, Reason: models.ExitSLSameCandle}
			case hitSL:
				lot1Open = false
				res.Lot1 = models.LotExit{Time: c.Date, Price: initialSL, Reason: models.ExitSL}
			case hitTP:
				lot1Open = false
				res.Lot1 = models.LotExit{Time: c.Date, Price: lot1TP, Reason: models.ExitTP1}
			}

			// lot1 target fill arms the runner: break-even now, trail from
			// the following candles
			if !lot1Open && res.Lot1.Reason == models.ExitTP1 && lot2Open {
				if long {
					lot2SL = decimal.Max(lot2SL, entry)
				} else {
					lot2SL = decimal.Min(lot2SL, entry)
				}
				beActivated = true
			}
		}

		if lot2Open {
			if beActivated && i >= 1 {
				prev := scan[i-1]
				if long {
					lot2SL = decimal.Max(lot2SL, prev.Low)
				} else {
					lot2SL = decimal.Min(lot2SL, prev.High)
				}
			}

			var hit bool
			if long {
				hit = low.LessThanOrEqual(lot2SL)
			} else {
				hit = high.GreaterThanOrEqual(lot2SL)
			}
			if hit {
				lot2Open = false
				reason := models.ExitInitialSL
				if beActivated {
					reason = models.ExitTrailSL
				}
				res.Lot2 = models.LotExit{Time: c.Date, Price: lot2SL, Reason: reason}
			}
		}

		if !lot1Open && !lot2Open {
			break
		}
	}

	if lot1Open || lot2Open {
		last := scan[len(scan)-1]
		if lot1Open {
			res.Lot1 = models.LotExit{Time: last.Date, Price: last.Close, Reason: models.ExitEOD}
		}
		if lot2Open {
			res.Lot2 = models.LotExit{Time: last.Date, Price: last.Close, Reason: models.ExitEOD}
		}
	}

	if long {
		res.Lot1.PnL = res.Lot1.Price.Sub(entry)
		res.Lot2.PnL = res.Lot2.Price.Sub(entry)
	} else {
		res.Lot1.PnL = entry.Sub(res.Lot1.Price)
		res.Lot2.PnL = entry.Sub(res.Lot2.Price)
	}

	res.Lot2Final = lot2SL
	res.MFEPoints = mfe
	res.MAEPoints = mae
	res.TotalPoints = res.Lot1.PnL.Add(res.Lot2.PnL)
	res.EffectivePerLot = res.TotalPoints.Div(decimal.NewFromInt(2))
	return res
}
