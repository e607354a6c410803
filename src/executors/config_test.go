package executors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingbot/src/model"
	"tradingbot/src/strategy"
)

func TestConfigValidate_Defaults(t *testing.T) {
	require.NoError(t, testConfig().Validate())
}

func TestConfigValidate_RejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown bot mode", func(c *Config) { c.BotMode = "dry_run" }, "BOT_MODE"},
		{"empty pair", func(c *Config) { c.TradingPair = "" }, "TRADING_PAIR"},
		{"unknown strategy", func(c *Config) { c.Strategy = "martingale" }, "STRATEGY"},
		{"zero entry lookback", func(c *Config) { c.EntryLookbackPeriod = 0 }, "ENTRY_LOOKBACK_PERIOD"},
		{"risk above one", func(c *Config) { c.RiskPerTrade = 1.5 }, "RISK_PER_TRADE"},
		{"no size at all", func(c *Config) { c.RiskPerTrade = 0; c.TradeAmount = 0 }, "TRADE_AMOUNT"},
		{"zero interval", func(c *Config) { c.IntervalSeconds = 0 }, "INTERVAL_SECONDS"},
		{"zero ack timeout", func(c *Config) { c.OrderAckTimeout = 0 }, "ORDER_ACK_TIMEOUT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestConfigValidate_MACross(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = model.StrategyTagMACross
	cfg.FastMAPeriod = 12
	cfg.SlowMAPeriod = 26
	cfg.TakeProfit = 2
	cfg.StopLoss = 1
	require.NoError(t, cfg.Validate())

	cfg.FastMAPeriod = 26
	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "FAST_MA_PERIOD", cfgErr.Field)
}

func TestConfigValidate_WideExitLookbackIsOnlyAWarning(t *testing.T) {
	cfg := testConfig()
	cfg.ExitLookbackPeriod = cfg.EntryLookbackPeriod + 5
	require.NoError(t, cfg.Validate())
}

func TestConfigBuildStrategy(t *testing.T) {
	cfg := testConfig()
	s := cfg.BuildStrategy(nil)
	_, ok := s.(*strategy.Breakout)
	require.True(t, ok)
	assert.Equal(t, model.StrategyTagBreakout, s.Name())

	cfg.Strategy = model.StrategyTagMACross
	cfg.FastMAPeriod = 12
	cfg.SlowMAPeriod = 26
	s = cfg.BuildStrategy(nil)
	_, ok = s.(*strategy.MACross)
	require.True(t, ok)
	assert.Equal(t, 27, s.MinBars())
}
