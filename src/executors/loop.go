package executors

import (
	"context"
	"fmt"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingbot/src/connectors"
	"tradingbot/src/model"
	"tradingbot/src/performance"
	"tradingbot/src/repository"
)

type runtime struct {
	cfg     Config
	engine  *Engine
	gateway connectors.ExchangeConnector
	market  connectors.MarketDataSource
	stream  connectors.StreamingMarketDataSource
}

func buildRuntime(log *logger.Entry) (*runtime, error) {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conCfg := connectors.GetConfig()

	bybit := connectors.NewBybitClient(conCfg.APIKey, conCfg.APISecret, conCfg.BybitBaseURL, conCfg.KlineInterval)

	var gateway connectors.ExchangeConnector
	var paper EquityAdjuster
	switch cfg.BotMode {
	case BotModeLive:
		if conCfg.APIKey == "" || conCfg.APISecret == "" {
			return nil, &ConfigError{"API_KEY", "credentials are required for live trading"}
		}
		if err := bybit.TestConnection(); err != nil {
			return nil, fmt.Errorf("exchange unreachable: %w", err)
		}
		gateway = bybit
	default:
		p := connectors.NewPaperConnector(conCfg.PaperEquity)
		gateway = p
		paper = p
	}

	if mins := klineIntervalMinutes(conCfg.KlineInterval); mins > 0 && cfg.IntervalSeconds > mins*60 {
		log.WithFields(logger.Fields{
			"interval_seconds": cfg.IntervalSeconds,
			"kline_interval":   conCfg.KlineInterval,
		}).Warn("polling slower than the bar interval, bars may be skipped")
	}

	tradeRepo := repository.NewTradeRepository()
	candleRepo := repository.NewCandleRepository()
	tracker := performance.NewTracker(tradeRepo)

	engine := NewEngine(EngineParams{
		Log:     log,
		Config:  cfg,
		Gateway: gateway,
		Market:  bybit,
		Ledger:  tradeRepo,
		Candles: candleRepo,
		Tracker: tracker,
		Paper:   paper,
	})

	return &runtime{
		cfg:     cfg,
		engine:  engine,
		gateway: gateway,
		market:  bybit,
		stream:  connectors.NewBybitStream(conCfg.BybitWSURL, conCfg.KlineInterval),
	}, nil
}

// StartLoop runs the bot in polling mode: one pipeline pass per interval.
func StartLoop(ctx context.Context) error {
	log := logger.WithField("mode", "polling")

	rt, err := buildRuntime(log)
	if err != nil {
		return err
	}

	if err := rt.engine.Recover(ctx); err != nil {
		return err
	}
	if err := rt.engine.Warmup(ctx); err != nil {
		return err
	}

	events := make(chan Event, 32)
	go rt.forwardFills(ctx, events)
	go rt.pollCandles(ctx, events)

	log.WithFields(logger.Fields{
		"symbol":   rt.cfg.TradingPair,
		"strategy": rt.cfg.Strategy,
		"interval": rt.cfg.IntervalSeconds,
		"bot_mode": rt.cfg.BotMode,
	}).Info("bot started")

	return rt.engine.Run(ctx, events)
}

func (rt *runtime) forwardFills(ctx context.Context, events chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case fill, ok := <-rt.gateway.FillEvents():
			if !ok {
				return
			}
			f := fill
			select {
			case events <- Event{Fill: &f}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (rt *runtime) pollCandles(ctx context.Context, events chan<- Event) {
	ticker := time.NewTicker(time.Duration(rt.cfg.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	var lastSeen time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			candles, err := rt.market.LatestCandles(ctx, rt.cfg.TradingPair, 3)
			if err != nil {
				logger.WithError(err).Warn("candle fetch failed, skipping this cycle")
				continue
			}
			for _, c := range closedBars(candles) {
				if !c.Datetime.After(lastSeen) {
					continue
				}
				lastSeen = c.Datetime
				candle := c
				select {
				case events <- Event{Candle: &candle}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// closedBars drops the newest row, which is the still-forming bar.
func closedBars(candles []model.Candle) []model.Candle {
	if len(candles) == 0 {
		return nil
	}
	return candles[:len(candles)-1]
}

// klineIntervalMinutes parses the exchange interval setting, for sanity
// checks against INTERVAL_SECONDS.
func klineIntervalMinutes(interval string) int {
	n, err := strconv.Atoi(interval)
	if err != nil {
		return 0
	}
	return n
}
