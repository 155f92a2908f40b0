package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/riskcore/internal/session"
)

func healthyPosition(opened time.Time) Position {
	return Position{
		DealID:       "d1",
		Symbol:       "EURUSD",
		Direction:    DirectionBuy,
		Size:         0.1,
		EntryPrice:   1.1000,
		CurrentPrice: 1.1010,
		StopLoss:     1.0900,
		PnL:          10,
		OpenedAt:     opened,
		Status:       PositionOpen,
	}
}

// TestAssessPositionHealth_HoldByDefault tests that a healthy position gets no action
func TestAssessPositionHealth_HoldByDefault(t *testing.T) {
	now := time.Now().UTC()
	store := &memStore{open: []Position{healthyPosition(now.Add(-time.Hour))}}
	m := testManager(store)
	sess := session.New(10000)

	out, err := m.AssessPositionHealth(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ActionHold, out[0].Action)
}

// TestAssessPositionHealth_EmergencyCloseOnRunawayLoss tests rule priority one
func TestAssessPositionHealth_EmergencyCloseOnRunawayLoss(t *testing.T) {
	now := time.Now().UTC()
	p := healthyPosition(now.Add(-48 * time.Hour)) // also stale; emergency must win
	p.PnL = -700                                   // 6.4% of the 11000 notional
	store := &memStore{open: []Position{p}}
	m := testManager(store)
	sess := session.New(10000)

	out, err := m.AssessPositionHealth(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ActionEmergencyClose, out[0].Action)
	assert.Contains(t, out[0].Reason, "position drawdown")
}

// TestAssessPositionHealth_TrailsProfitableStop tests rule priority two
func TestAssessPositionHealth_TrailsProfitableStop(t *testing.T) {
	now := time.Now().UTC()
	p := healthyPosition(now.Add(-time.Hour))
	p.PnL = 300 // over 2% of 10k balance
	p.CurrentPrice = 1.1300
	store := &memStore{open: []Position{p}}
	m := testManager(store)
	sess := session.New(10000)

	out, err := m.AssessPositionHealth(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ActionTightenStop, out[0].Action)
	// Trailed 1% behind 1.1300.
	assert.InDelta(t, 1.1187, out[0].NewStopLoss, 0.0001)
}

// TestAssessPositionHealth_PartialCloseWhenStale tests rule priority three
func TestAssessPositionHealth_PartialCloseWhenStale(t *testing.T) {
	now := time.Now().UTC()
	store := &memStore{open: []Position{healthyPosition(now.Add(-30 * time.Hour))}}
	m := testManager(store)
	sess := session.New(10000)

	out, err := m.AssessPositionHealth(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ActionPartialClose, out[0].Action)
}

// TestAssessPositionHealth_CloseOnPoorConditions tests rule priority four
func TestAssessPositionHealth_CloseOnPoorConditions(t *testing.T) {
	now := time.Now().UTC()
	store := &memStore{open: []Position{healthyPosition(now.Add(-time.Hour))}}
	m := testManager(store)
	m.SetConditionScorer(StaticScore(0.2))
	sess := session.New(10000)

	out, err := m.AssessPositionHealth(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ActionClose, out[0].Action)
}

// TestTrailedStop_NeverLoosens tests that trailing cannot move a stop away from price
func TestTrailedStop_NeverLoosens(t *testing.T) {
	long := Position{Direction: DirectionBuy, CurrentPrice: 1.1300, StopLoss: 1.1250}
	assert.Equal(t, 1.1250, trailedStop(long)) // trailed 1.1187 would loosen

	long.StopLoss = 1.0900
	assert.InDelta(t, 1.1187, trailedStop(long), 0.0001)

	short := Position{Direction: DirectionSell, CurrentPrice: 1.0700, StopLoss: 1.0750}
	assert.Equal(t, 1.0750, trailedStop(short))

	short.StopLoss = 1.1100
	assert.InDelta(t, 1.0807, trailedStop(short), 0.0001)
}
