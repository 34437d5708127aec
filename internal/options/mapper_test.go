package options

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/models"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func day(dom int) time.Time {
	return time.Date(2025, 6, dom, 0, 0, 0, 0, models.ExchangeLocation())
}

func opt(token int64, expiry time.Time, strike float64, typ string, lot int) models.Instrument {
	return models.Instrument{
		Token:          token,
		TradingSymbol:  "NIFTY-OPT",
		Name:           "NIFTY",
		Expiry:         expiry,
		Strike:         d(strike),
		LotSize:        lot,
		InstrumentType: typ,
		Segment:        "NFO-OPT",
		Exchange:       "NFO",
	}
}

func TestRoundToStrike(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{22510, 22500},
		{22540, 22550},
		{22500, 22500},
		{22476, 22500},
		{22474, 22450},
	}
	for _, tc := range cases {
		if got := RoundToStrike(d(tc.in)); !got.Equal(d(tc.want)) {
			t.Errorf("RoundToStrike(%v) = %s, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeStrikesPaise(t *testing.T) {
	ins := []models.Instrument{
		opt(1, day(5), 2250000, "CE", 75),
		opt(2, day(5), 2255000, "CE", 75),
		opt(3, day(5), 2260000, "PE", 75),
	}
	NormalizeStrikes(ins)
	if !ins[0].Strike.Equal(d(22500)) || !ins[2].Strike.Equal(d(22600)) {
		t.Fatalf("paise strikes not rescaled: %s, %s", ins[0].Strike, ins[2].Strike)
	}
}

func TestNormalizeStrikesLeavesRupeesAlone(t *testing.T) {
	ins := []models.Instrument{
		opt(1, day(5), 22500, "CE", 75),
		opt(2, day(5), 22550, "CE", 75),
	}
	NormalizeStrikes(ins)
	if !ins[0].Strike.Equal(d(22500)) {
		t.Fatalf("rupee strikes must not change, got %s", ins[0].Strike)
	}
}

func TestResolveATM(t *testing.T) {
	dump := []models.Instrument{
		opt(10, day(5), 22450, "CE", 75),
		opt(11, day(5), 22500, "CE", 75),
		opt(12, day(12), 22500, "CE", 75), // later expiry, same strike
		opt(13, day(5), 22500, "PE", 75),
		opt(14, day(2), 22500, "CE", 75), // already expired by trade date
		{Token: 99, Name: "BANKNIFTY", Exchange: "NFO", Segment: "NFO-OPT", InstrumentType: "CE", Expiry: day(5), Strike: d(48000)},
	}
	r := NewResolver(dump, "NIFTY", 75)

	tradeTS := time.Date(2025, 6, 3, 10, 15, 0, 0, models.ExchangeLocation())
	c, err := r.ResolveATM(tradeTS, d(22500), "CE")
	if err != nil {
		t.Fatal(err)
	}
	if c.Token != 11 {
		t.Fatalf("token = %d, want 11 (nearest expiry, exact strike)", c.Token)
	}
	if !c.Expiry.Equal(day(5)) {
		t.Errorf("expiry = %s, want Jun 5", c.Expiry)
	}

	// no exact strike listed: closest one on the nearest expiry wins
	c, err = r.ResolveATM(tradeTS, d(22480), "CE")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Strike.Equal(d(22500)) {
		t.Errorf("strike = %s, want 22500 (closest to 22480)", c.Strike)
	}

	// PE lookups never return CE rows
	c, err = r.ResolveATM(tradeTS, d(22500), "PE")
	if err != nil {
		t.Fatal(err)
	}
	if c.Token != 13 {
		t.Fatalf("token = %d, want 13", c.Token)
	}

	// everything expired
	if _, err := r.ResolveATM(day(20), d(22500), "CE"); err == nil {
		t.Fatal("expected an error with no active contracts")
	}
}

func TestResolveATMLotSizeFallback(t *testing.T) {
	dump := []models.Instrument{opt(10, day(5), 22500, "CE", 0)}
	r := NewResolver(dump, "NIFTY", 75)
	c, err := r.ResolveATM(day(3), d(22500), "CE")
	if err != nil {
		t.Fatal(err)
	}
	if c.LotSize != 75 {
		t.Fatalf("lot size = %d, want the 75 default", c.LotSize)
	}
}

func TestNearFuture(t *testing.T) {
	fut := func(token int64, expiry time.Time) models.Instrument {
		return models.Instrument{
			Token: token, Name: "NIFTY", Exchange: "NFO", Segment: "NFO-FUT",
			InstrumentType: "FUT", Expiry: expiry, TradingSymbol: "NIFTYFUT",
		}
	}
	dump := []models.Instrument{
		fut(1, day(26)),
		fut(2, day(1)), // expired
		opt(3, day(26), 22500, "CE", 75),
	}
	got, err := NearFuture(dump, "NIFTY", day(3))
	if err != nil {
		t.Fatal(err)
	}
	if got.Token != 1 {
		t.Fatalf("token = %d, want 1", got.Token)
	}

	if _, err := NearFuture(dump, "NIFTY", day(27)); err == nil {
		t.Fatal("expected an error with no active futures")
	}
}
