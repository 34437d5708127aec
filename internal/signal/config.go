package signal

import (
	"github.com/shopspring/decimal"

	"nifty-pivot-research/internal/config"
)

// FromConfig builds an engine out of the strategy section.
func FromConfig(cfg config.StrategyConfig) (*Engine, error) {
	h, m, err := cfg.CutoffHourMinute()
	if err != nil {
		return nil, err
	}
	return &Engine{
		CutoffHour:   h,
		CutoffMinute: m,
		AllowLong:    NewAllowlist(cfg.AllowLongLevels),
		AllowShort:   NewAllowlist(cfg.AllowShortLevels),
		TargetPoints: decimal.NewFromFloat(cfg.TargetPoints),
	}, nil
}
