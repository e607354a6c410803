package performance

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"tradingbot/src/model"
)

// Breakdown aggregates one slice of the ledger (a side or a symbol).
type Breakdown struct {
	Count   int     `json:"count"`
	NetPnl  float64 `json:"net_pnl"`
	WinRate float64 `json:"win_rate_pct"`
}

// Snapshot is a derived, non-authoritative aggregate over the trade
// ledger. It is recomputed from the ledger contents and never mutated in
// place; computing it twice over the same trades yields identical results.
type Snapshot struct {
	TotalTrades int     `json:"total_trades"`
	NetPnl      float64 `json:"net_pnl"`
	AvgPnl      float64 `json:"avg_pnl"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate_pct"`

	// ProfitFactor is gross wins over gross losses: +Inf when there are
	// no losing trades, and undefined when the ledger is empty (check
	// TotalTrades before reading it).
	ProfitFactor float64 `json:"profit_factor"`

	MaxWin  float64 `json:"max_win"`
	MaxLoss float64 `json:"max_loss"`

	FirstClosedAt time.Time `json:"first_closed_at"`
	LastClosedAt  time.Time `json:"last_closed_at"`

	BySide   map[model.Direction]Breakdown `json:"by_side"`
	BySymbol map[string]Breakdown          `json:"by_symbol"`

	RecentTrades []model.Trade `json:"recent_trades"`
}

const recentTradeCount = 10

// MarshalJSON renders an infinite profit factor as the string "inf",
// which encoding/json cannot represent as a number.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	out := struct {
		alias
		ProfitFactor any `json:"profit_factor"`
	}{alias: alias(s), ProfitFactor: s.ProfitFactor}
	if math.IsInf(s.ProfitFactor, 1) {
		out.ProfitFactor = "inf"
	}
	return json.Marshal(out)
}

// Compute derives a Snapshot from a trade sequence. It is a pure function
// of its input.
func Compute(trades []model.Trade) Snapshot {
	s := Snapshot{
		TotalTrades: len(trades),
		BySide:      make(map[model.Direction]Breakdown),
		BySymbol:    make(map[string]Breakdown),
	}
	if len(trades) == 0 {
		return s
	}

	grossWin, grossLoss := 0.0, 0.0
	for i, tr := range trades {
		s.NetPnl += tr.Pnl
		if tr.IsWin() {
			s.Wins++
			grossWin += tr.Pnl
		} else {
			s.Losses++
			grossLoss += -tr.Pnl
		}
		if tr.Pnl > s.MaxWin {
			s.MaxWin = tr.Pnl
		}
		if tr.Pnl < s.MaxLoss {
			s.MaxLoss = tr.Pnl
		}
		if i == 0 || tr.ClosedAt.Before(s.FirstClosedAt) {
			s.FirstClosedAt = tr.ClosedAt
		}
		if tr.ClosedAt.After(s.LastClosedAt) {
			s.LastClosedAt = tr.ClosedAt
		}
	}

	s.AvgPnl = s.NetPnl / float64(s.TotalTrades)
	s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100

	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	} else {
		s.ProfitFactor = math.Inf(1)
	}

	bySide := make(map[model.Direction][]model.Trade)
	bySymbol := make(map[string][]model.Trade)
	for _, tr := range trades {
		bySide[tr.Side] = append(bySide[tr.Side], tr)
		bySymbol[tr.Symbol] = append(bySymbol[tr.Symbol], tr)
	}
	for side, group := range bySide {
		s.BySide[side] = breakdown(group)
	}
	for symbol, group := range bySymbol {
		s.BySymbol[symbol] = breakdown(group)
	}

	recent := len(trades)
	if recent > recentTradeCount {
		recent = recentTradeCount
	}
	s.RecentTrades = append([]model.Trade(nil), trades[len(trades)-recent:]...)

	return s
}

func breakdown(trades []model.Trade) Breakdown {
	b := Breakdown{Count: len(trades)}
	wins := 0
	for _, tr := range trades {
		b.NetPnl += tr.Pnl
		if tr.IsWin() {
			wins++
		}
	}
	if b.Count > 0 {
		b.WinRate = float64(wins) / float64(b.Count) * 100
	}
	return b
}

type tradeLister interface {
	ListAll(ctx context.Context) ([]model.Trade, error)
}

// Tracker computes snapshots on demand and caches the result until the
// ledger grows. It holds no state of its own beyond that cache.
type Tracker struct {
	repo tradeLister

	mu     sync.Mutex
	cached *Snapshot
}

func NewTracker(repo tradeLister) *Tracker {
	return &Tracker{repo: repo}
}

func (t *Tracker) Snapshot(ctx context.Context) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cached != nil {
		return *t.cached, nil
	}

	trades, err := t.repo.ListAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	s := Compute(trades)
	t.cached = &s
	return s, nil
}

// Invalidate drops the cache. Call it whenever a trade is appended.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	t.cached = nil
	t.mu.Unlock()
}
