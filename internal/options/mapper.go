package options

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

const (
	// Strikes in the instrument dump are sometimes paise-scaled
	// (2250000 instead of 22500). Anything with a median above this
	// gets divided by 100.
	paiseScaleThreshold = 100000

	strikeStep = 50
)

// RoundToStrike rounds a price to the nearest 50-point strike.
func RoundToStrike(price decimal.Decimal) decimal.Decimal {
	step := decimal.NewFromInt(strikeStep)
	return price.Div(step).Round(0).Mul(step)
}

// NormalizeStrikes fixes paise-scaled strike columns in place. The
// scale is detected from the median so a handful of bad rows cannot
// flip the whole dump.
func NormalizeStrikes(instruments []models.Instrument) {
	vals := make([]decimal.Decimal, 0, len(instruments))
	for _, in := range instruments {
		if !in.Strike.IsZero() {
			vals = append(vals, in.Strike)
		}
	}
	if len(vals) == 0 {
		return
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].LessThan(vals[j]) })
	median := vals[len(vals)/2]
	if median.LessThanOrEqual(decimal.NewFromInt(paiseScaleThreshold)) {
		return
	}
	hundred := decimal.NewFromInt(100)
	for i := range instruments {
		instruments[i].Strike = instruments[i].Strike.Div(hundred)
	}
}

// Resolver picks ATM option contracts out of an instrument dump.
type Resolver struct {
	Name           string // underlying name, e.g. NIFTY
	LotSizeDefault int

	options []models.Instrument
}

// NewResolver filters the dump down to the underlying's NFO options
// and normalizes strikes once up front.
func NewResolver(instruments []models.Instrument, name string, lotSizeDefault int) *Resolver {
	var opts []models.Instrument
	for _, in := range instruments {
		if in.Exchange == "NFO" && in.Segment == "NFO-OPT" && in.Name == name {
			opts = append(opts, in)
		}
	}
	NormalizeStrikes(opts)
	return &Resolver{Name: name, LotSizeDefault: lotSizeDefault, options: opts}
}

// NearFuture returns the nearest-expiry active future for the
// underlying from the full dump.
func NearFuture(instruments []models.Instrument, name string, today time.Time) (models.Instrument, error) {
	day := today.Truncate(24 * time.Hour)
	var futs []models.Instrument
	for _, in := range instruments {
		if in.Exchange == "NFO" && in.Segment == "NFO-FUT" && in.Name == name && !in.Expiry.Before(day) {
			futs = append(futs, in)
		}
	}
	if len(futs) == 0 {
		return models.Instrument{}, fmt.Errorf("no active %s futures in instrument dump", name)
	}
	sort.Slice(futs, func(i, j int) bool { return futs[i].Expiry.Before(futs[j].Expiry) })
	return futs[0], nil
}

// ResolveATM finds the contract for the given trade: nearest expiry on
// or after the trade date, exact strike when listed, otherwise the
// closest available one.
func (r *Resolver) ResolveATM(tradeDate time.Time, strike decimal.Decimal, optType string) (models.OptionContract, error) {
	day := time.Date(tradeDate.Year(), tradeDate.Month(), tradeDate.Day(), 0, 0, 0, 0, tradeDate.Location())

	var active []models.Instrument
	for _, in := range r.options {
		if in.InstrumentType == optType && !in.Expiry.Before(day) {
			active = append(active, in)
		}
	}
	if len(active) == 0 {
		return models.OptionContract{}, fmt.Errorf("no active %s %s options on/after %s", r.Name, optType, day.Format("2006-01-02"))
	}

	nearest := active[0].Expiry
	for _, in := range active[1:] {
		if in.Expiry.Before(nearest) {
			nearest = in.Expiry
		}
	}
	var sameExpiry []models.Instrument
	for _, in := range active {
		if in.Expiry.Equal(nearest) {
			sameExpiry = append(sameExpiry, in)
		}
	}

	best := sameExpiry[0]
	bestDist := best.Strike.Sub(strike).Abs()
	for _, in := range sameExpiry[1:] {
		d := in.Strike.Sub(strike).Abs()
		if d.LessThan(bestDist) {
			best, bestDist = in, d
		}
	}

	lot := best.LotSize
	if lot == 0 {
		lot = r.LotSizeDefault
	}
	return models.OptionContract{
		Token:         best.Token,
		TradingSymbol: best.TradingSymbol,
		Expiry:        best.Expiry,
		Strike:        best.Strike,
		Type:          best.InstrumentType,
		LotSize:       lot,
	}, nil
}
