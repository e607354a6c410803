package backtest

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"tradingbot/src/database"
	"tradingbot/src/executors"
	"tradingbot/src/performance"
	"tradingbot/src/repository"
)

type Backtest struct {
	Log *logger.Entry
}

// Start replays stored candles for the configured pair through the
// strategy pipeline and prints the resulting performance report.
func (b *Backtest) Start() error {
	ctx := context.Background()
	if b.Log == nil {
		b.Log = logger.WithField("cmd", "backtest")
	}

	cfg := GetConfig()
	botCfg := executors.GetConfig()

	if err := database.InitMainDB(); err != nil {
		b.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	end := cfg.EndDt
	if end.IsZero() {
		latest, err := repository.NewCandleRepository().LatestDatetime(ctx, botCfg.TradingPair)
		if err != nil {
			return err
		}
		end = latest
	}

	candles, err := repository.NewCandleRepository().FetchRecent(ctx, botCfg.TradingPair, end, cfg.MaxBars)
	if err != nil {
		b.Log.WithError(err).Error("Failed to load candles")
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles stored for %s, run the ohlcv_crypto backfill first", botCfg.TradingPair)
	}

	b.Log.WithFields(logger.Fields{
		"symbol":   botCfg.TradingPair,
		"strategy": botCfg.Strategy,
		"bars":     len(candles),
		"from":     candles[0].Datetime,
		"to":       candles[len(candles)-1].Datetime,
	}).Info("replaying stored candles")

	result, err := executors.RunBacktest(ctx, b.Log, botCfg, candles, cfg.Equity)
	if err != nil {
		return err
	}

	fmt.Print(performance.FormatReport(result.Snapshot))
	fmt.Printf("Final equity: %.2f (started at %.2f)\n", result.FinalEquity, cfg.Equity)
	return nil
}
