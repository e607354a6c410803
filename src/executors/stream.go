package executors

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"

	"tradingbot/src/model"
)

// ErrStreamClosed reports that the market data stream ended while the bot
// was still supposed to run.
var ErrStreamClosed = errors.New("market data stream closed")

// StartStream runs the bot in streaming mode: bar closes and fills arrive
// as events on one ordered queue and are processed strictly one at a time.
func StartStream(ctx context.Context) error {
	log := logger.WithField("mode", "streaming")

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

	bars, err := rt.stream.Subscribe(ctx, rt.cfg.TradingPair)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, 32)
	go rt.forwardFills(runCtx, events)
	go forwardBars(runCtx, bars, events, cancel)

	log.WithFields(logger.Fields{
		"symbol":   rt.cfg.TradingPair,
		"strategy": rt.cfg.Strategy,
		"bot_mode": rt.cfg.BotMode,
	}).Info("bot started")

	return rt.engine.Run(runCtx, events)
}

// forwardBars marshals stream bars onto the event queue. When the stream
// ends it cancels the run so the engine shuts down gracefully.
func forwardBars(ctx context.Context, bars <-chan model.Candle, events chan<- Event, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-bars:
			if !ok {
				logger.Warn(ErrStreamClosed.Error())
				cancel()
				return
			}
			candle := bar
			select {
			case events <- Event{Candle: &candle}:
			case <-ctx.Done():
				return
			}
		}
	}
}
