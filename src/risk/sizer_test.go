package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestSizerFormula(t *testing.T) {
	s := NewSizer(SizerConfig{
		RiskPerTrade:    d(0.01),
		MaxPositionSize: d(1000),
	})

	// equity=10000, r=0.01, entry=100, stop=95 -> (10000*0.01)/5 = 20
	size, err := s.Size(d(10000), d(100), d(95))
	require.NoError(t, err)
	require.True(t, size.Equal(d(20)), "got %s", size)

	// Stop above the entry: same distance, same size.
	size, err = s.Size(d(10000), d(100), d(105))
	require.NoError(t, err)
	require.True(t, size.Equal(d(20)), "got %s", size)
}

func TestSizerClampsToMaxPositionSize(t *testing.T) {
	s := NewSizer(SizerConfig{
		RiskPerTrade:    d(0.01),
		MaxPositionSize: d(5),
	})

	size, err := s.Size(d(10000), d(100), d(95))
	require.NoError(t, err)
	require.True(t, size.Equal(d(5)), "got %s", size)
}

func TestSizerInvalidInputs(t *testing.T) {
	s := NewSizer(DefaultSizerConfig())

	_, err := s.Size(d(0), d(100), d(95))
	require.True(t, errors.Is(err, ErrInvalidRiskInput))

	_, err = s.Size(d(-10), d(100), d(95))
	require.True(t, errors.Is(err, ErrInvalidRiskInput))

	// Zero stop distance.
	_, err = s.Size(d(10000), d(100), d(100))
	require.True(t, errors.Is(err, ErrInvalidRiskInput))
}

func TestSizerRoundsDustToZero(t *testing.T) {
	s := NewSizer(SizerConfig{
		RiskPerTrade:    d(0.01),
		MaxPositionSize: d(1000),
		MinOrderSize:    d(0.001),
	})

	// (10*0.01)/200 = 0.0005 < min increment -> no trade, no error.
	size, err := s.Size(d(10), d(400), d(200))
	require.NoError(t, err)
	require.True(t, size.IsZero(), "got %s", size)
}
