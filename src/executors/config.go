package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"tradingbot/src/model"
	"tradingbot/src/risk"
	"tradingbot/src/strategy"
)

const (
	BotModePaper = "paper_trading"
	BotModeLive  = "live_trading"
)

type Config struct {
	TradingPair string `envconfig:"TRADING_PAIR" default:"BTCUSDT"`
	BotMode     string `envconfig:"BOT_MODE" default:"paper_trading"`
	Strategy    string `envconfig:"STRATEGY" default:"breakout"`

	// TradeAmount is the fixed order size used when risk-based sizing is
	// disabled (RISK_PER_TRADE=0).
	TradeAmount     float64 `envconfig:"TRADE_AMOUNT" default:"0.001"`
	MaxPositionSize float64 `envconfig:"MAX_POSITION_SIZE" default:"1"`
	MinOrderSize    float64 `envconfig:"MIN_ORDER_SIZE" default:"0.0001"`
	RiskPerTrade    float64 `envconfig:"RISK_PER_TRADE" default:"0.01"`

	EntryLookbackPeriod int  `envconfig:"ENTRY_LOOKBACK_PERIOD" default:"20"`
	ExitLookbackPeriod  int  `envconfig:"EXIT_LOOKBACK_PERIOD" default:"10"`
	UseTurtleFilter     bool `envconfig:"USE_TURTLE_FILTER" default:"true"`
	LongOnly            bool `envconfig:"LONG_ONLY" default:"false"`

	FastMAPeriod int     `envconfig:"FAST_MA_PERIOD" default:"12"`
	SlowMAPeriod int     `envconfig:"SLOW_MA_PERIOD" default:"26"`
	TakeProfit   float64 `envconfig:"TAKE_PROFIT" default:"2"`
	StopLoss     float64 `envconfig:"STOP_LOSS" default:"1"`

	IntervalSeconds int           `envconfig:"INTERVAL_SECONDS" default:"60"`
	TrailLookback   int           `envconfig:"TRAIL_LOOKBACK" default:"20"`
	OrderAckTimeout time.Duration `envconfig:"ORDER_ACK_TIMEOUT" default:"30s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// ConfigError is fatal. The process must refuse to start rather than run
// with a setting it cannot honor.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (c Config) Validate() error {
	if c.BotMode != BotModePaper && c.BotMode != BotModeLive {
		return &ConfigError{"BOT_MODE", fmt.Sprintf("must be %q or %q, got %q", BotModePaper, BotModeLive, c.BotMode)}
	}
	if c.TradingPair == "" {
		return &ConfigError{"TRADING_PAIR", "must not be empty"}
	}

	switch c.Strategy {
	case model.StrategyTagBreakout:
		if c.EntryLookbackPeriod <= 0 {
			return &ConfigError{"ENTRY_LOOKBACK_PERIOD", "must be positive"}
		}
		if c.ExitLookbackPeriod <= 0 {
			return &ConfigError{"EXIT_LOOKBACK_PERIOD", "must be positive"}
		}
		if c.ExitLookbackPeriod >= c.EntryLookbackPeriod {
			// Intended behavior with a wider exit channel is unclear;
			// allow it but call it out.
			logger.WithFields(logger.Fields{
				"entry_lookback": c.EntryLookbackPeriod,
				"exit_lookback":  c.ExitLookbackPeriod,
			}).Warn("exit lookback is not shorter than entry lookback")
		}
	case model.StrategyTagMACross:
		if c.FastMAPeriod <= 0 || c.SlowMAPeriod <= 0 {
			return &ConfigError{"FAST_MA_PERIOD", "MA periods must be positive"}
		}
		if c.FastMAPeriod >= c.SlowMAPeriod {
			return &ConfigError{"FAST_MA_PERIOD", "fast period must be shorter than slow period"}
		}
		if c.TakeProfit <= 0 || c.StopLoss <= 0 {
			return &ConfigError{"TAKE_PROFIT", "take profit and stop loss percentages must be positive"}
		}
	default:
		return &ConfigError{"STRATEGY", fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}

	if c.RiskPerTrade < 0 || c.RiskPerTrade > 1 {
		return &ConfigError{"RISK_PER_TRADE", "must be within [0, 1]"}
	}
	if c.RiskPerTrade == 0 && c.TradeAmount <= 0 {
		return &ConfigError{"TRADE_AMOUNT", "must be positive when risk sizing is disabled"}
	}
	if c.MaxPositionSize <= 0 {
		return &ConfigError{"MAX_POSITION_SIZE", "must be positive"}
	}
	if c.IntervalSeconds <= 0 {
		return &ConfigError{"INTERVAL_SECONDS", "must be positive"}
	}
	if c.OrderAckTimeout <= 0 {
		return &ConfigError{"ORDER_ACK_TIMEOUT", "must be positive"}
	}
	return nil
}

// BuildStrategy assembles the configured strategy.
func (c Config) BuildStrategy(log *logger.Entry) strategy.Strategy {
	switch c.Strategy {
	case model.StrategyTagMACross:
		return strategy.NewMACross(log, strategy.MACrossConfig{
			Symbol:        c.TradingPair,
			FastPeriod:    c.FastMAPeriod,
			SlowPeriod:    c.SlowMAPeriod,
			TakeProfitPct: c.TakeProfit,
			StopLossPct:   c.StopLoss,
		})
	default:
		return strategy.NewBreakout(log, strategy.BreakoutConfig{
			Symbol:          c.TradingPair,
			EntryLookback:   c.EntryLookbackPeriod,
			ExitLookback:    c.ExitLookbackPeriod,
			UseTurtleFilter: c.UseTurtleFilter,
			LongOnly:        c.LongOnly,
		})
	}
}

func (c Config) BuildSizer() *risk.Sizer {
	return risk.NewSizer(risk.SizerConfig{
		RiskPerTrade:    decimal.NewFromFloat(c.RiskPerTrade),
		MaxPositionSize: decimal.NewFromFloat(c.MaxPositionSize),
		MinOrderSize:    decimal.NewFromFloat(c.MinOrderSize),
	})
}
