package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full harness configuration, loaded from a YAML file.
type Config struct {
	Kite     KiteConfig     `yaml:"kite"`
	Data     DataConfig     `yaml:"data"`
	Strategy StrategyConfig `yaml:"strategy"`
	Costs    CostConfig     `yaml:"costs"`
}

// KiteConfig points at the persisted broker session.
type KiteConfig struct {
	SessionFile string `yaml:"session_file"`
	EnvFile     string `yaml:"env_file"`
}

// DataConfig covers candle storage and download windows.
type DataConfig struct {
	ClickHouseDSN    string `yaml:"clickhouse_dsn"`
	Database         string `yaml:"database"`
	CandlesTable     string `yaml:"candles_table"`
	InstrumentsTable string `yaml:"instruments_table"`
	Interval         string `yaml:"interval"`
	LookbackDays     int    `yaml:"lookback_days"`
	ChunkDays        int    `yaml:"chunk_days"`
}

// StrategyConfig is the v2 signal filter configuration.
type StrategyConfig struct {
	TargetPoints     float64  `yaml:"target_points"`
	EntryCutoff      string   `yaml:"entry_cutoff"` // "HH:MM", inclusive
	AllowLongLevels  []string `yaml:"allow_long_levels"`
	AllowShortLevels []string `yaml:"allow_short_levels"`
}

// CostConfig is the option paper-trade cost model.
type CostConfig struct {
	SlippagePerSide        float64 `yaml:"slippage_per_side"`
	ChargesPerLotRoundtrip float64 `yaml:"charges_per_lot_roundtrip"`
	LotSizeDefault         int     `yaml:"lot_size_default"`
}

// Credentials are the Kite Connect API credentials from .env.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Load reads and validates a YAML config, applying v2 defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if _, _, err := cfg.Strategy.CutoffHourMinute(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in v2 configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Kite.SessionFile == "" {
		c.Kite.SessionFile = "kite_session.json"
	}
	if c.Kite.EnvFile == "" {
		c.Kite.EnvFile = ".env"
	}
	if c.Data.ClickHouseDSN == "" {
		c.Data.ClickHouseDSN = "clickhouse://default:@localhost:9000?secure=false&compress=lz4"
	}
	if c.Data.Database == "" {
		c.Data.Database = "research"
	}
	if c.Data.CandlesTable == "" {
		c.Data.CandlesTable = "fut_candles_5m"
	}
	if c.Data.InstrumentsTable == "" {
		c.Data.InstrumentsTable = "instruments"
	}
	if c.Data.Interval == "" {
		c.Data.Interval = "5minute"
	}
	if c.Data.LookbackDays == 0 {
		c.Data.LookbackDays = 180
	}
	if c.Data.ChunkDays == 0 {
		// Zerodha caps the historical range per request for 5m candles.
		c.Data.ChunkDays = 90
	}
	if c.Strategy.TargetPoints == 0 {
		c.Strategy.TargetPoints = 40
	}
	if c.Strategy.EntryCutoff == "" {
		c.Strategy.EntryCutoff = "14:00"
	}
	if c.Strategy.AllowLongLevels == nil {
		c.Strategy.AllowLongLevels = []string{"R1", "R2"}
	}
	if c.Strategy.AllowShortLevels == nil {
		// S2 disabled based on the filtered backtest results.
		c.Strategy.AllowShortLevels = []string{"S1"}
	}
	if c.Costs.SlippagePerSide == 0 {
		c.Costs.SlippagePerSide = 0.50
	}
	if c.Costs.ChargesPerLotRoundtrip == 0 {
		c.Costs.ChargesPerLotRoundtrip = 60.0
	}
	if c.Costs.LotSizeDefault == 0 {
		c.Costs.LotSizeDefault = 75
	}
}

// CutoffHourMinute parses the "HH:MM" entry cutoff.
func (s StrategyConfig) CutoffHourMinute() (int, int, error) {
	parts := strings.SplitN(s.EntryCutoff, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad entry_cutoff %q, want HH:MM", s.EntryCutoff)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad entry_cutoff hour %q: %w", parts[0], err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad entry_cutoff minute %q: %w", parts[1], err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("entry_cutoff %q out of range", s.EntryCutoff)
	}
	return h, m, nil
}

// LoadCredentials reads KITE_API_KEY / KITE_API_SECRET from a .env file.
// The secret may be absent for flows that only need the API key.
func LoadCredentials(envPath string) (Credentials, error) {
	vals, err := godotenv.Read(envPath)
	if err != nil {
		return Credentials{}, fmt.Errorf("read %s: %w", envPath, err)
	}
	creds := Credentials{
		APIKey:    vals["KITE_API_KEY"],
		APISecret: vals["KITE_API_SECRET"],
	}
	if creds.APIKey == "" {
		return Credentials{}, fmt.Errorf("KITE_API_KEY missing in %s", envPath)
	}
	return creds, nil
}
