package strategy

import (
	logger "github.com/sirupsen/logrus"

	"tradingbot/src/model"
)

type BreakoutConfig struct {
	Symbol        string
	EntryLookback int // N bars for the entry channel
	ExitLookback  int // M bars for the trailing exit channel

	// UseTurtleFilter suppresses an entry right after a winning trade in
	// the same direction.
	UseTurtleFilter bool

	// LongOnly downgrades short entries to flat signals (spot accounts).
	LongOnly bool
}

// Breakout enters on a close beyond the prior N-bar extreme and exits on
// the prior M-bar extreme in the opposite direction (turtle style channel
// breakout). All comparisons are strict; a close exactly on the channel
// does not trigger.
type Breakout struct {
	log *logger.Entry
	cfg BreakoutConfig
}

func NewBreakout(log *logger.Entry, cfg BreakoutConfig) *Breakout {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Breakout{log: log.WithField("strategy", model.StrategyTagBreakout), cfg: cfg}
}

func (b *Breakout) Name() string {
	return model.StrategyTagBreakout
}

func (b *Breakout) MinBars() int {
	n := b.cfg.EntryLookback
	if b.cfg.ExitLookback > n {
		n = b.cfg.ExitLookback
	}
	return n + 1
}

func (b *Breakout) Evaluate(window []model.Candle, state State) model.Signal {
	sig := model.Signal{
		Symbol:      b.cfg.Symbol,
		Direction:   model.DirectionFlat,
		StrategyTag: model.StrategyTagBreakout,
	}

	if state.Position.IsFlat() {
		return b.evaluateEntry(window, state, sig)
	}
	return b.evaluateExit(window, state.Position, sig)
}

// evaluateEntry checks the latest close against the prior N-bar channel,
// excluding the current bar from the channel itself.
func (b *Breakout) evaluateEntry(window []model.Candle, state State, sig model.Signal) model.Signal {
	n := len(window)
	if n < b.cfg.EntryLookback+1 {
		return sig
	}

	channel := window[n-1-b.cfg.EntryLookback : n-1]
	entryHigh := highestHigh(channel)
	entryLow := lowestLow(channel)

	latest := closeOf(window[n-1])
	sig.ReferencePrice = latest

	switch {
	case latest > entryHigh:
		if b.cfg.UseTurtleFilter && state.SkipWinLong {
			b.log.WithField("symbol", b.cfg.Symbol).
				Info("turtle filter active, skipping long entry after winning trade")
			sig.Suppressed = model.DirectionLong
			return sig
		}
		sig.Direction = model.DirectionLong
		sig.StopReference = b.initialStop(window, model.DirectionLong)
		b.log.WithFields(logger.Fields{
			"symbol": b.cfg.Symbol,
			"close":  latest,
			"level":  entryHigh,
		}).Info("bullish breakout detected")

	case latest < entryLow:
		if b.cfg.LongOnly {
			b.log.WithField("symbol", b.cfg.Symbol).
				Debug("short entry suppressed on long-only account")
			return sig
		}
		if b.cfg.UseTurtleFilter && state.SkipWinShort {
			b.log.WithField("symbol", b.cfg.Symbol).
				Info("turtle filter active, skipping short entry after winning trade")
			sig.Suppressed = model.DirectionShort
			return sig
		}
		sig.Direction = model.DirectionShort
		sig.StopReference = b.initialStop(window, model.DirectionShort)
		b.log.WithFields(logger.Fields{
			"symbol": b.cfg.Symbol,
			"close":  latest,
			"level":  entryLow,
		}).Info("bearish breakout detected")
	}

	return sig
}

// evaluateExit fires a stop-hit exit when the close crosses the prior
// M-bar extreme against the position, and otherwise reports the extreme as
// the refreshed trailing-stop level.
func (b *Breakout) evaluateExit(window []model.Candle, pos *model.Position, sig model.Signal) model.Signal {
	n := len(window)
	lookback := b.cfg.ExitLookback
	if lookback > n-1 {
		lookback = n - 1
	}
	if lookback <= 0 {
		return sig
	}

	channel := window[n-1-lookback : n-1]
	latest := closeOf(window[n-1])
	sig.ReferencePrice = latest

	switch pos.Side {
	case model.DirectionLong:
		exitLow := lowestLow(channel)
		if latest < exitLow {
			sig.Exit = true
			sig.ExitReason = model.ExitReasonStopHit
			b.log.WithFields(logger.Fields{
				"symbol": b.cfg.Symbol,
				"close":  latest,
				"level":  exitLow,
			}).Info("long exit, close below trailing channel")
			return sig
		}
		sig.StopReference = exitLow

	case model.DirectionShort:
		exitHigh := highestHigh(channel)
		if latest > exitHigh {
			sig.Exit = true
			sig.ExitReason = model.ExitReasonStopHit
			b.log.WithFields(logger.Fields{
				"symbol": b.cfg.Symbol,
				"close":  latest,
				"level":  exitHigh,
			}).Info("short exit, close above trailing channel")
			return sig
		}
		sig.StopReference = exitHigh
	}

	return sig
}

// initialStop is the protective stop a fresh entry starts with: the exit
// channel extreme on the losing side. It doubles as the stop reference for
// risk sizing.
func (b *Breakout) initialStop(window []model.Candle, dir model.Direction) float64 {
	n := len(window)
	lookback := b.cfg.ExitLookback
	if lookback > n-1 {
		lookback = n - 1
	}
	channel := window[n-1-lookback : n-1]
	if dir == model.DirectionShort {
		return highestHigh(channel)
	}
	return lowestLow(channel)
}
