package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

// Summarize aggregates a run. A trade counts as a win when the
// combined two-lot points are positive.
func Summarize(results []models.ScaleOutResult) models.RunSummary {
	sum := models.RunSummary{
		RunID:       uuid.NewString(),
		Trades:      len(results),
		GeneratedAt: time.Now(),
	}
	if len(results) == 0 {
		return sum
	}

	hundred := decimal.NewFromInt(100)
	net := decimal.Zero
	effSum := decimal.Zero
	for _, r := range results {
		net = net.Add(r.TotalPoints)
		effSum = effSum.Add(r.EffectivePerLot)
		if r.TotalPoints.IsPositive() {
			sum.Wins++
		} else {
			sum.Losses++
		}
		if r.Lot1.Reason == models.ExitTP1 {
			sum.TP1Hits++
		}
	}

	n := decimal.NewFromInt(int64(len(results)))
	sum.NetPoints = net
	sum.AvgPoints = net.Div(n)
	sum.AvgPerLot = effSum.Div(n)
	sum.WinRate = decimal.NewFromInt(int64(sum.Wins)).Mul(hundred).Div(n)
	sum.TP1HitRate = decimal.NewFromInt(int64(sum.TP1Hits)).Mul(hundred).Div(n)
	return sum
}
