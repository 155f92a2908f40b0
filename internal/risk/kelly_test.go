package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFullKelly_KnownInputs tests the Kelly formula on hand-computed values
func TestFullKelly_KnownInputs(t *testing.T) {
	// p=0.5, b=1.5: (1.5*0.5 - 0.5)/1.5 = 0.1667
	assert.InDelta(t, 0.1667, FullKelly(0.5, 1.5), 0.0001)
}

// TestFullKelly_NegativeEdgeFloorsAtZero tests that a losing proposition never sizes above zero
func TestFullKelly_NegativeEdgeFloorsAtZero(t *testing.T) {
	assert.Equal(t, 0.0, FullKelly(0.3, 1.0))
	assert.Equal(t, 0.0, FullKelly(0.5, 0))
	assert.Equal(t, 0.0, FullKelly(0.5, -1))
}

// TestEmpiricalKelly_QuarterOfFull tests that the empirical fraction is a quarter of full Kelly
func TestEmpiricalKelly_QuarterOfFull(t *testing.T) {
	// win rate 0.5, payoff 150/100 = 1.5: full Kelly 0.1667, quarter 0.0417
	got := EmpiricalKelly(0.5, 150, 100)
	assert.InDelta(t, 0.1667*0.25, got, 0.0001)
	assert.LessOrEqual(t, got, FullKelly(0.5, 1.5))
}

// TestEmpiricalKelly_ZeroLossUsesDefaultPayoff tests the fallback payoff ratio
func TestEmpiricalKelly_ZeroLossUsesDefaultPayoff(t *testing.T) {
	// b falls back to 2.0: full Kelly (2*0.6 - 0.4)/2 = 0.4, quarter 0.1
	assert.InDelta(t, 0.1, EmpiricalKelly(0.6, 100, 0), 0.0001)
}

// TestEstimatedKelly_UsesSignalRiskReward tests the signal-derived payoff ratio
func TestEstimatedKelly_UsesSignalRiskReward(t *testing.T) {
	sig := Signal{
		Symbol:     "EURUSD",
		Direction:  DirectionBuy,
		Price:      1.1000,
		Confidence: 0.8,
		StopLoss:   1.0900, // risk 0.01
		TakeProfit: 1.1300, // reward 0.03, b = 3
	}
	// p = 0.8*0.8 = 0.64: full Kelly (3*0.64 - 0.36)/3 = 0.52, quarter 0.13
	assert.InDelta(t, 0.13, EstimatedKelly(sig), 0.0001)
}

// TestEstimatedKelly_NeverNegative tests a low-confidence signal floors at zero
func TestEstimatedKelly_NeverNegative(t *testing.T) {
	sig := Signal{
		Price:      1.1000,
		Confidence: 0.1,
		StopLoss:   1.0900,
		TakeProfit: 1.1050,
	}
	assert.Equal(t, 0.0, EstimatedKelly(sig))
}
