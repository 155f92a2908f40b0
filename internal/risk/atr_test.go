package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestATR_AveragesAbsoluteChanges tests the tick-series true range
func TestATR_AveragesAbsoluteChanges(t *testing.T) {
	prices := []float64{100, 102, 101, 104, 103}
	// Changes: +2, -1, +3, -1; mean of absolutes over period 4 = 1.75
	assert.InDelta(t, 1.75, ATR(prices, 4), 0.0001)
}

// TestATR_ShortSeriesShrinksPeriod tests the window clamp on short histories
func TestATR_ShortSeriesShrinksPeriod(t *testing.T) {
	prices := []float64{100, 101, 103}
	// Only two changes available even with period 14.
	assert.InDelta(t, 1.5, ATR(prices, 14), 0.0001)
}

// TestATR_DegenerateInputs tests empty and single-point series
func TestATR_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, ATR(nil, 14))
	assert.Equal(t, 0.0, ATR([]float64{100}, 14))
	assert.Equal(t, 0.0, ATR([]float64{100, 101}, 0))
}

// TestVolatility_FractionOfLastPrice tests the normalized volatility measure
func TestVolatility_FractionOfLastPrice(t *testing.T) {
	prices := []float64{100, 102, 101, 104, 100}
	// ATR over 4 = (2+1+3+4)/4 = 2.5; volatility 2.5/100 = 0.025
	assert.InDelta(t, 0.025, Volatility(prices, 4), 0.0001)
	assert.Equal(t, 0.0, Volatility(nil, 4))
}
