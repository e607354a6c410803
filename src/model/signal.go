package model

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// Sign returns +1 for long, -1 for short, 0 for flat.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

const (
	StrategyTagBreakout = "breakout"
	StrategyTagMACross  = "ma_cross"
)

const (
	ExitReasonSignal     = "signal-exit"
	ExitReasonStopHit    = "stop-hit"
	ExitReasonTakeProfit = "take-profit"
	ExitReasonStopLoss   = "stop-loss"
	ExitReasonShutdown   = "shutdown"
	ExitReasonRecovered  = "recovered"
)

// Signal is the outcome of one strategy evaluation. It is produced fresh
// every cycle and never persisted.
//
// Three shapes are possible:
//   - entry:       Direction long/short, Exit false
//   - exit:        Direction flat, Exit true, ExitReason set
//   - hold:        Direction flat, Exit false; StopReference may still carry
//     an updated trailing-stop level for an open position
type Signal struct {
	Symbol         string    `json:"symbol"`
	Direction      Direction `json:"direction"`
	StrategyTag    string    `json:"strategy_tag"`
	ReferencePrice float64   `json:"reference_price"`
	StopReference  float64   `json:"stop_reference"`
	Exit           bool      `json:"exit"`
	ExitReason     string    `json:"exit_reason,omitempty"`

	// Suppressed names the entry direction the turtle filter swallowed;
	// the signal itself stays flat.
	Suppressed Direction `json:"suppressed,omitempty"`
}

func (s Signal) IsEntry() bool {
	return !s.Exit && (s.Direction == DirectionLong || s.Direction == DirectionShort)
}

func (s Signal) IsHold() bool {
	return !s.Exit && s.Direction == DirectionFlat
}
