package strategy

import (
	logger "github.com/sirupsen/logrus"

	"tradingbot/src/model"
)

type MACrossConfig struct {
	Symbol     string
	FastPeriod int
	SlowPeriod int

	// TakeProfitPct / StopLossPct are percent thresholds on the open
	// position's unrealized return; exits are independent of the averages.
	TakeProfitPct float64
	StopLossPct   float64
}

// MACross enters on the bar where the fast simple moving average crosses
// the slow one. A sustained crossed state does not re-emit; only the
// transition bar signals.
type MACross struct {
	log *logger.Entry
	cfg MACrossConfig
}

func NewMACross(log *logger.Entry, cfg MACrossConfig) *MACross {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &MACross{log: log.WithField("strategy", model.StrategyTagMACross), cfg: cfg}
}

func (m *MACross) Name() string {
	return model.StrategyTagMACross
}

func (m *MACross) MinBars() int {
	return m.cfg.SlowPeriod + 1
}

func (m *MACross) Evaluate(window []model.Candle, state State) model.Signal {
	sig := model.Signal{
		Symbol:      m.cfg.Symbol,
		Direction:   model.DirectionFlat,
		StrategyTag: model.StrategyTagMACross,
	}

	if len(window) == 0 {
		return sig
	}
	latest := closeOf(window[len(window)-1])
	sig.ReferencePrice = latest

	if !state.Position.IsFlat() {
		return m.evaluateExit(latest, state.Position, sig)
	}

	if len(window) < m.cfg.SlowPeriod+1 {
		return sig
	}

	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = closeOf(c)
	}

	fastNow := sma(closes, m.cfg.FastPeriod)
	slowNow := sma(closes, m.cfg.SlowPeriod)
	prev := closes[:len(closes)-1]
	fastPrev := sma(prev, m.cfg.FastPeriod)
	slowPrev := sma(prev, m.cfg.SlowPeriod)

	switch {
	case fastPrev <= slowPrev && fastNow > slowNow:
		sig.Direction = model.DirectionLong
		sig.StopReference = latest * (1 - m.cfg.StopLossPct/100)
		m.log.WithFields(logger.Fields{
			"symbol":  m.cfg.Symbol,
			"ma_fast": fastNow,
			"ma_slow": slowNow,
		}).Info("golden cross detected")

	case fastPrev >= slowPrev && fastNow < slowNow:
		sig.Direction = model.DirectionShort
		sig.StopReference = latest * (1 + m.cfg.StopLossPct/100)
		m.log.WithFields(logger.Fields{
			"symbol":  m.cfg.Symbol,
			"ma_fast": fastNow,
			"ma_slow": slowNow,
		}).Info("death cross detected")
	}

	return sig
}

func (m *MACross) evaluateExit(latest float64, pos *model.Position, sig model.Signal) model.Signal {
	pnlPct := pos.UnrealizedPnlPct(latest)

	switch {
	case pnlPct >= m.cfg.TakeProfitPct:
		sig.Exit = true
		sig.ExitReason = model.ExitReasonTakeProfit
		m.log.WithFields(logger.Fields{
			"symbol":  m.cfg.Symbol,
			"pnl_pct": pnlPct,
		}).Info("take profit triggered")

	case pnlPct <= -m.cfg.StopLossPct:
		sig.Exit = true
		sig.ExitReason = model.ExitReasonStopLoss
		m.log.WithFields(logger.Fields{
			"symbol":  m.cfg.Symbol,
			"pnl_pct": pnlPct,
		}).Info("stop loss triggered")
	}

	return sig
}
