package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nifty-pivot-research/internal/config"
	"nifty-pivot-research/internal/models"
	"nifty-pivot-research/pkg/logger"
)

// Store persists candles and instrument dumps in ClickHouse with
// ReplacingMergeTree dedup: re-downloading a window is always safe.
type Store struct {
	conn             clickhouse.Conn
	database         string
	candlesTable     string
	instrumentsTable string
	loc              *time.Location
}

// Open connects and ensures the schema exists.
func Open(ctx context.Context, cfg config.DataConfig, loc *time.Location) (*Store, error) {
	opts, err := clickhouse.ParseDSN(cfg.ClickHouseDSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	s := &Store{
		conn:             conn,
		database:         cfg.Database,
		candlesTable:     cfg.CandlesTable,
		instrumentsTable: cfg.InstrumentsTable,
		loc:              loc,
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database)); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	candlesDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			symbol LowCardinality(String),
			interval LowCardinality(String),
			open_time_ms UInt64,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			oi Int64,
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, interval, open_time_ms)
		SETTINGS index_granularity = 8192
	`, s.database, s.candlesTable)
	if err := s.conn.Exec(ctx, candlesDDL); err != nil {
		return fmt.Errorf("create candles table: %w", err)
	}

	instrumentsDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			dump_date Date,
			instrument_token Int64,
			tradingsymbol String,
			name String,
			expiry Date,
			strike Float64,
			lot_size UInt32,
			instrument_type LowCardinality(String),
			segment LowCardinality(String),
			exchange LowCardinality(String),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (dump_date, exchange, segment, tradingsymbol)
		SETTINGS index_granularity = 8192
	`, s.database, s.instrumentsTable)
	if err := s.conn.Exec(ctx, instrumentsDDL); err != nil {
		return fmt.Errorf("create instruments table: %w", err)
	}
	return nil
}

// InsertCandles batch-inserts one symbol/interval's candles.
func (s *Store) InsertCandles(ctx context.Context, symbol, interval string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s.%s", s.database, s.candlesTable)
	batch, err := s.conn.PrepareBatch(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	now := time.Now()
	version := uint64(now.UnixMilli())
	for _, c := range candles {
		err := batch.Append(
			symbol,
			interval,
			uint64(c.Date.UnixMilli()),
			c.Open.InexactFloat64(),
			c.High.InexactFloat64(),
			c.Low.InexactFloat64(),
			c.Close.InexactFloat64(),
			c.Volume.InexactFloat64(),
			c.OI,
			now,
			version,
		)
		if err != nil {
			return fmt.Errorf("append candle: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	logger.Info("inserted candles",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("rows", len(candles)))
	return nil
}

// QueryCandles returns the deduplicated candle range, sorted by time.
func (s *Store) QueryCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	q := fmt.Sprintf(`
		SELECT open_time_ms, open, high, low, close, volume, oi
		FROM %s.%s FINAL
		WHERE symbol = ? AND interval = ?
		  AND open_time_ms >= ? AND open_time_ms < ?
		ORDER BY open_time_ms
	`, s.database, s.candlesTable)

	rows, err := s.conn.Query(ctx, q, symbol, interval, uint64(from.UnixMilli()), uint64(to.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var (
			ms                             uint64
			open, high, low, close, volume float64
			oi                             int64
		)
		if err := rows.Scan(&ms, &open, &high, &low, &close, &volume, &oi); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, models.Candle{
			Date:   time.UnixMilli(int64(ms)).In(s.loc),
			Open:   decimal.NewFromFloat(open),
			High:   decimal.NewFromFloat(high),
			Low:    decimal.NewFromFloat(low),
			Close:  decimal.NewFromFloat(close),
			Volume: decimal.NewFromFloat(volume),
			OI:     oi,
		})
	}
	return out, rows.Err()
}

// InsertInstruments stores a full dump under today's dump date.
func (s *Store) InsertInstruments(ctx context.Context, dumpDate time.Time, instruments []models.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s.%s", s.database, s.instrumentsTable)
	batch, err := s.conn.PrepareBatch(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	version := uint64(time.Now().UnixMilli())
	for _, in := range instruments {
		err := batch.Append(
			dumpDate,
			in.Token,
			in.TradingSymbol,
			in.Name,
			in.Expiry,
			in.Strike.InexactFloat64(),
			uint32(in.LotSize),
			in.InstrumentType,
			in.Segment,
			in.Exchange,
			version,
		)
		if err != nil {
			return fmt.Errorf("append instrument: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	logger.Info("inserted instruments", zap.Int("rows", len(instruments)))
	return nil
}

// LoadInstruments returns the deduplicated instrument rows, optionally
// filtered by underlying name.
func (s *Store) LoadInstruments(ctx context.Context, name string) ([]models.Instrument, error) {
	var nameFilter string
	args := []any{}
	if name != "" {
		nameFilter = "WHERE name = ?"
		args = append(args, name)
	}
	q := fmt.Sprintf(`
		SELECT instrument_token, tradingsymbol, name, expiry, strike,
		       lot_size, instrument_type, segment, exchange
		FROM %s.%s FINAL
		%s
	`, s.database, s.instrumentsTable, nameFilter)

	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []models.Instrument
	for rows.Next() {
		var (
			in      models.Instrument
			strike  float64
			lotSize uint32
		)
		if err := rows.Scan(&in.Token, &in.TradingSymbol, &in.Name, &in.Expiry,
			&strike, &lotSize, &in.InstrumentType, &in.Segment, &in.Exchange); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		in.Strike = decimal.NewFromFloat(strike)
		in.LotSize = int(lotSize)
		out = append(out, in)
	}
	return out, rows.Err()
}

// TableFQN is a small helper for log lines and ad hoc queries.
func (s *Store) TableFQN(table string) string {
	return strings.Join([]string{s.database, table}, ".")
}
