package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNew_StartsActive tests the initial session state
func TestNew_StartsActive(t *testing.T) {
	s := New(10000)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 10000.0, s.InitialBalance)
	assert.True(t, s.Active())
	assert.Nil(t, s.EndedAt)
}

// TestStop_Idempotent tests that stopping twice keeps the first end time
func TestStop_Idempotent(t *testing.T) {
	s := New(10000)
	s.Stop()
	firstEnd := s.EndedAt
	s.Stop()

	assert.False(t, s.Active())
	assert.Equal(t, firstEnd, s.EndedAt)
}

// TestCurrentBalance_Invariant tests balance = initial + closed + open pnl
func TestCurrentBalance_Invariant(t *testing.T) {
	s := New(10000)
	assert.Equal(t, 10000.0, s.CurrentBalance(0, 0))
	assert.Equal(t, 10350.0, s.CurrentBalance(500, -150))
	assert.Equal(t, 9200.0, s.CurrentBalance(-1000, 200))
}

// TestDrawdown_PeakIsInitialOrBetter tests the peak definition
func TestDrawdown_PeakIsInitialOrBetter(t *testing.T) {
	// Below initial: peak stays at initial.
	assert.InDelta(t, 0.15, Drawdown(10000, 8500), 0.0001)
	// At or above initial: no drawdown.
	assert.Equal(t, 0.0, Drawdown(10000, 10000))
	assert.Equal(t, 0.0, Drawdown(10000, 12000))
}

// TestDrawdown_Bounded tests that the fraction stays within [0, 1]
func TestDrawdown_Bounded(t *testing.T) {
	assert.Equal(t, 1.0, Drawdown(10000, 0))
	assert.Equal(t, 0.0, Drawdown(0, 0))
	for _, balance := range []float64{-500, 100, 5000, 10000, 20000} {
		d := Drawdown(10000, balance)
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, 1.0+1e-9)
	}
}
