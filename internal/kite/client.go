package kite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"

	"nifty-pivot-research/internal/config"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/pkg/logger"
)

const historicalRetries = 5

// Client wraps the Kite Connect API for the harness.
type Client struct {
	kc  *kiteconnect.Client
	loc *time.Location
}

// sessionFile is the persisted login produced by cmd/login.
type sessionFile struct {
	AccessToken string `json:"access_token"`
}

// New returns an unauthenticated client, enough for the login flow.
func New(apiKey string, loc *time.Location) *Client {
	return &Client{kc: kiteconnect.New(apiKey), loc: loc}
}

// NewFromSession builds an authenticated client from the persisted
// session token.
func NewFromSession(creds config.Credentials, sessionPath string, loc *time.Location) (*Client, error) {
	data, err := os.ReadFile(sessionPath)
	if err != nil {
		return nil, fmt.Errorf("read %s (run cmd/login first): %w", sessionPath, err)
	}
	var sess sessionFile
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse %s: %w", sessionPath, err)
	}
	if sess.AccessToken == "" {
		return nil, fmt.Errorf("access_token missing in %s", sessionPath)
	}

	kc := kiteconnect.New(creds.APIKey)
	kc.SetAccessToken(sess.AccessToken)
	return &Client{kc: kc, loc: loc}, nil
}

// LoginURL returns the Kite Connect login URL for the browser flow.
func (c *Client) LoginURL() string { return c.kc.GetLoginURL() }

// GenerateSession exchanges the login request token and persists the
// session to disk.
func (c *Client) GenerateSession(requestToken, apiSecret, sessionPath string) (string, error) {
	sess, err := c.kc.GenerateSession(requestToken, apiSecret)
	if err != nil {
		return "", fmt.Errorf("generate session: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", err
	}
	// session tokens stay local, never committed
	if err := os.WriteFile(sessionPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", sessionPath, err)
	}
	c.kc.SetAccessToken(sess.AccessToken)
	return sess.AccessToken, nil
}

// Instruments downloads the full instrument dump.
func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.kc.GetInstruments()
	if err != nil {
		return nil, fmt.Errorf("get instruments: %w", err)
	}
	out := make([]models.Instrument, 0, len(raw))
	for _, in := range raw {
		out = append(out, models.Instrument{
			Token:          int64(in.InstrumentToken),
			TradingSymbol:  in.Tradingsymbol,
			Name:           in.Name,
			Expiry:         in.Expiry.Time,
			Strike:         decimal.NewFromFloat(in.StrikePrice),
			LotSize:        int(in.LotSize),
			InstrumentType: in.InstrumentType,
			Segment:        in.Segment,
			Exchange:       in.Exchange,
		})
	}
	return out, nil
}

func (c *Client) historical(token int, interval string, from, to time.Time) ([]models.Candle, error) {
	b := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: true}
	var lastErr error
	for attempt := 0; attempt < historicalRetries; attempt++ {
		data, err := c.kc.GetHistoricalData(token, interval, from, to, false, false)
		if err == nil {
			out := make([]models.Candle, 0, len(data))
			for _, hd := range data {
				out = append(out, models.Candle{
					Date:   hd.Date.Time.In(c.loc),
					Open:   decimal.NewFromFloat(hd.Open),
					High:   decimal.NewFromFloat(hd.High),
					Low:    decimal.NewFromFloat(hd.Low),
					Close:  decimal.NewFromFloat(hd.Close),
					Volume: decimal.NewFromInt(int64(hd.Volume)),
					OI:     int64(hd.OI),
				})
			}
			return out, nil
		}
		lastErr = err
		d := b.Duration()
		logger.Warn("historical fetch failed, retrying",
			zap.Int("token", token),
			zap.Duration("sleep", d),
			zap.Error(err))
		time.Sleep(d)
	}
	return nil, fmt.Errorf("historical data after %d attempts: %w", historicalRetries, lastErr)
}

// HistoricalChunked fetches a long candle range in broker-sized
// chunks. Zerodha caps the per-request span for intraday intervals.
func (c *Client) HistoricalChunked(ctx context.Context, token int64, interval string, from, to time.Time, chunkDays int) ([]models.Candle, error) {
	var all []models.Candle
	chunkStart := from
	for chunkStart.Before(to) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunkEnd := chunkStart.AddDate(0, 0, chunkDays)
		if chunkEnd.After(to) {
			chunkEnd = to
		}

		logger.Info("fetching chunk",
			zap.Time("from", chunkStart),
			zap.Time("to", chunkEnd))
		candles, err := c.historical(int(token), interval, chunkStart, chunkEnd)
		if err != nil {
			return nil, err
		}
		all = append(all, candles...)

		// nudge past the chunk edge so adjacent requests don't overlap
		chunkStart = chunkEnd.Add(time.Minute)
	}
	return all, nil
}

// DayCandles fetches one session of 5m candles for an instrument.
// Satisfies options.CandleSource.
func (c *Client) DayCandles(ctx context.Context, token int64, day time.Time) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := day.In(c.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
	return c.historical(int(token), "5minute", start, start.AddDate(0, 0, 1))
}
