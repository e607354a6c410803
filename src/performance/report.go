package performance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tradingbot/src/model"
)

// FormatReport renders a snapshot as the plain-text performance report
// printed by the report command.
func FormatReport(s Snapshot) string {
	if s.TotalTrades == 0 {
		return "No trades recorded yet.\n"
	}

	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nTRADING PERFORMANCE REPORT\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		s.FirstClosedAt.Format("2006-01-02 15:04"),
		s.LastClosedAt.Format("2006-01-02 15:04"))

	fmt.Fprintf(&b, "\nSummary:\n")
	fmt.Fprintf(&b, "  Total Trades:  %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "  Net P&L:       %+.2f\n", s.NetPnl)
	fmt.Fprintf(&b, "  Average P&L:   %+.2f\n", s.AvgPnl)
	fmt.Fprintf(&b, "  Win Rate:      %.1f%%\n", s.WinRate)
	fmt.Fprintf(&b, "  Profit Factor: %s\n", formatProfitFactor(s.ProfitFactor))
	fmt.Fprintf(&b, "  Max Win:       %+.2f\n", s.MaxWin)
	fmt.Fprintf(&b, "  Max Loss:      %+.2f\n", s.MaxLoss)

	fmt.Fprintf(&b, "\nBy Side:\n")
	sides := make([]model.Direction, 0, len(s.BySide))
	for side := range s.BySide {
		sides = append(sides, side)
	}
	sort.Slice(sides, func(i, j int) bool { return sides[i] < sides[j] })
	for _, side := range sides {
		bd := s.BySide[side]
		fmt.Fprintf(&b, "  %-5s %d trades, %+.2f P&L, %.1f%% win rate\n",
			side, bd.Count, bd.NetPnl, bd.WinRate)
	}

	fmt.Fprintf(&b, "\nBy Symbol:\n")
	symbols := make([]string, 0, len(s.BySymbol))
	for symbol := range s.BySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		bd := s.BySymbol[symbol]
		fmt.Fprintf(&b, "  %-10s %d trades, %+.2f P&L, %.1f%% win rate\n",
			symbol, bd.Count, bd.NetPnl, bd.WinRate)
	}

	fmt.Fprintf(&b, "\nRecent Trades:\n")
	for _, tr := range s.RecentTrades {
		fmt.Fprintf(&b, "  %s  %-5s %-10s size %.6f  P&L %+.2f (%s)\n",
			tr.ClosedAt.Format("2006-01-02 15:04"),
			tr.Side, tr.Symbol, tr.Size, tr.Pnl, tr.ExitReason)
	}
	fmt.Fprintf(&b, "%s\n", rule)

	return b.String()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
