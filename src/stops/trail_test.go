package stops

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradingbot/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func c(dt time.Time, o, h, l, cl string) model.Candle {
	return model.Candle{
		Symbol:   "BTCUSDT",
		Datetime: dt,
		Open:     d(o),
		High:     d(h),
		Low:      d(l),
		Close:    d(cl),
		Volume:   d("1"),
	}
}

func TestNextTrailingStop_NotEnoughCandles(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := []model.Candle{
		c(now, "100", "101", "99", "100"),
	}

	stop, moved := NextTrailingStop(model.DirectionLong, d("95"), candles, 20)
	if moved {
		t.Fatalf("expected moved=false")
	}
	if !stop.Equal(d("95")) {
		t.Fatalf("expected stop unchanged, got=%s", stop.String())
	}
}

func TestNextTrailingStop_PrevNotBullish_NoMove(t *testing.T) {
	// prev candle is bearish: close < open
	now := time.Date(2026, 3, 1, 0, 2, 0, 0, time.UTC)
	candles := []model.Candle{
		c(now.Add(-2*time.Hour), "100", "101", "99", "100"),
		c(now.Add(-1*time.Hour), "105", "106", "100", "104"), // prev: bearish (104 < 105)
		c(now, "106", "107", "103", "106"),
	}

	stop, moved := NextTrailingStop(model.DirectionLong, d("98"), candles, 3)
	if moved {
		t.Fatalf("expected moved=false")
	}
	if !stop.Equal(d("98")) {
		t.Fatalf("expected stop unchanged, got=%s", stop.String())
	}
}

func TestNextTrailingStop_RaiseToFloorAvg_ClampedToPrevLow(t *testing.T) {
	// prev candle bullish, floorAvg > prev.Low so we clamp down to prev.Low
	// lows (lookback 3) = 101, 100.50, 119 => avg > 100.50
	now := time.Date(2026, 3, 1, 0, 3, 0, 0, time.UTC)
	candles := []model.Candle{
		c(now.Add(-3*time.Hour), "110", "111", "100", "110"),
		c(now.Add(-2*time.Hour), "110", "112", "101", "111"),
		c(now.Add(-1*time.Hour), "100", "130", "100.50", "120"), // prev bullish
		c(now, "120", "121", "119", "120"),
	}

	stop, moved := NextTrailingStop(model.DirectionLong, d("99.0"), candles, 3)
	if !moved {
		t.Fatalf("expected moved=true")
	}
	if !stop.Equal(d("100.50")) {
		t.Fatalf("expected stop=100.50 (clamped to prev low), got=%s", stop.String())
	}
}

func TestNextTrailingStop_LongNeverMovesDown(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 3, 0, 0, time.UTC)
	candles := []model.Candle{
		c(now.Add(-2*time.Hour), "110", "111", "90", "110"),
		c(now.Add(-1*time.Hour), "100", "130", "91", "120"), // prev bullish, low below stop
		c(now, "120", "121", "92", "120"),
	}

	stop, moved := NextTrailingStop(model.DirectionLong, d("105"), candles, 3)
	if moved {
		t.Fatalf("expected moved=false, candidate below current stop")
	}
	if !stop.Equal(d("105")) {
		t.Fatalf("expected stop unchanged, got=%s", stop.String())
	}
}

func TestNextTrailingStop_ShortLowersToCeilAvg_ClampedToPrevHigh(t *testing.T) {
	// prev candle bearish, highs (lookback 3) = 95, 93, 92 => avg = 93.33...
	// prev.High = 93 so candidate stays at the average unless below prev high
	now := time.Date(2026, 3, 1, 0, 3, 0, 0, time.UTC)
	candles := []model.Candle{
		c(now.Add(-3*time.Hour), "100", "101", "94", "95"),
		c(now.Add(-2*time.Hour), "95", "95", "91", "92"),
		c(now.Add(-1*time.Hour), "93", "93", "89", "90"), // prev bearish
		c(now, "90", "92", "88", "91"),
	}

	stop, moved := NextTrailingStop(model.DirectionShort, d("100"), candles, 3)
	if !moved {
		t.Fatalf("expected moved=true")
	}
	// ceilAvg = (95+93+92)/3 = 93.33..., above prev.High=93, no clamp
	want := d("95").Add(d("93")).Add(d("92")).Div(d("3"))
	if !stop.Equal(want) {
		t.Fatalf("expected stop=%s, got=%s", want.String(), stop.String())
	}
}

func TestNextTrailingStop_ShortNeverMovesUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 2, 0, 0, time.UTC)
	candles := []model.Candle{
		c(now.Add(-2*time.Hour), "100", "120", "94", "95"),
		c(now.Add(-1*time.Hour), "95", "119", "91", "92"), // prev bearish
		c(now, "92", "118", "88", "91"),
	}

	stop, moved := NextTrailingStop(model.DirectionShort, d("90"), candles, 3)
	if moved {
		t.Fatalf("expected moved=false, candidate above current stop")
	}
	if !stop.Equal(d("90")) {
		t.Fatalf("expected stop unchanged, got=%s", stop.String())
	}
}

func TestNextTrailingStop_UnknownSide(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 1, 0, 0, time.UTC)
	candles := []model.Candle{
		c(now.Add(-1*time.Hour), "100", "101", "99", "101"),
		c(now, "101", "102", "100", "102"),
	}

	stop, moved := NextTrailingStop(model.DirectionFlat, d("95"), candles, 2)
	if moved {
		t.Fatalf("expected moved=false for flat side")
	}
	if !stop.Equal(d("95")) {
		t.Fatalf("expected stop unchanged, got=%s", stop.String())
	}
}
