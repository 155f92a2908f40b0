package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/session"
)

// fakeStore backs both the engine and the risk manager in memory.
type fakeStore struct {
	sess      *session.Session
	open      []risk.Position
	recent    []risk.Position
	closedPnL float64
	dailyPnL  float64

	closedDeals  []string
	tightened    map[string]float64
	reducedDeals []string
	marked       map[string]float64
	pruneCalls   int
	updated      []session.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tightened: make(map[string]float64),
		marked:    make(map[string]float64),
	}
}

func (s *fakeStore) CreateSession(_ context.Context, sess *session.Session) error {
	s.sess = sess
	return nil
}
func (s *fakeStore) ActiveSession(context.Context) (*session.Session, error) { return s.sess, nil }
func (s *fakeStore) UpdateSession(_ context.Context, sess *session.Session) error {
	s.updated = append(s.updated, *sess)
	return nil
}

func (s *fakeStore) OpenPositions(context.Context, string) ([]risk.Position, error) {
	return s.open, nil
}
func (s *fakeStore) ClosePosition(_ context.Context, dealID string, _ float64, _ time.Time) error {
	s.closedDeals = append(s.closedDeals, dealID)
	remaining := make([]risk.Position, 0, len(s.open))
	for _, p := range s.open {
		if p.DealID != dealID {
			remaining = append(remaining, p)
		}
	}
	s.open = remaining
	return nil
}
func (s *fakeStore) ReducePosition(_ context.Context, dealID string, _ time.Time) error {
	s.reducedDeals = append(s.reducedDeals, dealID)
	return nil
}
func (s *fakeStore) UpdateStopLoss(_ context.Context, dealID string, stop float64) error {
	s.tightened[dealID] = stop
	return nil
}
func (s *fakeStore) MarkPrices(_ context.Context, symbol string, price float64) error {
	s.marked[symbol] = price
	return nil
}
func (s *fakeStore) PruneTicks(context.Context, time.Duration) (int64, error) {
	s.pruneCalls++
	return 0, nil
}

func (s *fakeStore) Limits(context.Context) (risk.Limits, error) {
	return risk.DefaultLimits(), nil
}
func (s *fakeStore) ClosedPnL(context.Context, string) (float64, error) { return s.closedPnL, nil }
func (s *fakeStore) DailyPnL(context.Context, string, time.Time) (float64, error) {
	return s.dailyPnL, nil
}
func (s *fakeStore) PreviousDayProfit(context.Context, string, time.Time) (float64, error) {
	return 0, nil
}
func (s *fakeStore) TradesInWindow(context.Context, string, string, time.Time) (int, error) {
	return 0, nil
}
func (s *fakeStore) DailyTradeCount(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
func (s *fakeStore) RecentClosedPositions(context.Context, string, int) ([]risk.Position, error) {
	return s.recent, nil
}
func (s *fakeStore) SymbolPerformance(context.Context, string) (*risk.SymbolPerformance, error) {
	return nil, nil
}
func (s *fakeStore) Correlations(context.Context, time.Time) (map[string]float64, error) {
	return nil, nil
}
func (s *fakeStore) RecentPrices(context.Context, string, int) ([]float64, error) {
	return nil, nil
}
func (s *fakeStore) AppendSnapshot(context.Context, risk.MetricsSnapshot) error { return nil }

func testEngine(store *fakeStore) *Engine {
	mgr := risk.NewManager(store, zerolog.Nop())
	return New(Config{Symbols: []string{"EURUSD"}}, store, mgr, nil, nil, nil, zerolog.Nop())
}

func testSignal() risk.Signal {
	return risk.Signal{
		Symbol:     "EURUSD",
		Direction:  risk.DirectionBuy,
		Price:      1.1000,
		Confidence: 0.8,
		StopLoss:   1.0900,
		TakeProfit: 1.1300,
	}
}

// TestStart_CreatesSessionWhenNoneActive tests first boot
func TestStart_CreatesSessionWhenNoneActive(t *testing.T) {
	store := newFakeStore()
	e := testEngine(store)

	require.NoError(t, e.Start(context.Background(), 10000))
	defer e.Stop(context.Background())

	require.NotNil(t, e.Session())
	assert.Equal(t, 10000.0, e.Session().InitialBalance)
	assert.Same(t, store.sess, e.Session())
}

// TestStart_RestoresActiveSession tests restart recovery
func TestStart_RestoresActiveSession(t *testing.T) {
	store := newFakeStore()
	existing := session.New(25000)
	store.sess = existing
	e := testEngine(store)

	require.NoError(t, e.Start(context.Background(), 10000))
	defer e.Stop(context.Background())

	assert.Same(t, existing, e.Session())
	assert.Equal(t, 25000.0, e.Session().InitialBalance)
}

// TestStop_TerminatesSession tests that shutdown closes the session and
// persists the closure
func TestStop_TerminatesSession(t *testing.T) {
	store := newFakeStore()
	e := testEngine(store)
	require.NoError(t, e.Start(context.Background(), 10000))

	e.Stop(context.Background())

	sess := e.Session()
	require.NotNil(t, sess)
	assert.False(t, sess.Active())
	assert.NotNil(t, sess.EndedAt)
	require.Len(t, store.updated, 1)
	assert.Equal(t, session.StatusStopped, store.updated[0].Status)
}

// TestStop_SecondStopIsNoOp tests that a stopped session is not closed twice
func TestStop_SecondStopIsNoOp(t *testing.T) {
	store := newFakeStore()
	e := testEngine(store)
	require.NoError(t, e.Start(context.Background(), 10000))

	e.Stop(context.Background())
	e.Stop(context.Background())

	assert.Len(t, store.updated, 1)
}

// TestValidateTrade_PassesThroughWhenInactive tests the normal path
func TestValidateTrade_PassesThroughWhenInactive(t *testing.T) {
	store := newFakeStore()
	e := testEngine(store)
	e.sess = session.New(10000)

	dec, err := e.ValidateTrade(context.Background(), testSignal())
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

// TestValidateTrade_RefusedAtCaution tests the kill switch veto
func TestValidateTrade_RefusedAtCaution(t *testing.T) {
	store := newFakeStore()
	e := testEngine(store)
	e.sess = session.New(10000)
	e.killState = risk.KillSwitchState{Level: risk.KillSwitchCaution}

	dec, err := e.ValidateTrade(context.Background(), testSignal())
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Contains(t, dec.Reason, "kill switch")
}

// TestValidateTrade_NoSessionIsError tests the unstarted engine
func TestValidateTrade_NoSessionIsError(t *testing.T) {
	e := testEngine(newFakeStore())
	_, err := e.ValidateTrade(context.Background(), testSignal())
	assert.Error(t, err)
}

// TestEvaluateKillSwitch_EmergencyClosesBook tests forced liquidation at level three
func TestEvaluateKillSwitch_EmergencyClosesBook(t *testing.T) {
	store := newFakeStore()
	store.open = []risk.Position{
		{DealID: "d1", Symbol: "EURUSD", Size: 0.1, EntryPrice: 1.1, PnL: -50, Status: risk.PositionOpen},
		{DealID: "d2", Symbol: "GBPUSD", Size: 0.1, EntryPrice: 1.27, PnL: -30, Status: risk.PositionOpen},
	}
	store.recent = []risk.Position{
		{PnL: -10}, {PnL: -10}, {PnL: -10}, {PnL: -10}, {PnL: -10},
	}
	e := testEngine(store)
	e.sess = session.New(10000)

	e.evaluateKillSwitch(context.Background())

	assert.Equal(t, risk.KillSwitchEmergency, e.KillSwitch().Level)
	assert.ElementsMatch(t, []string{"d1", "d2"}, store.closedDeals)
	assert.Empty(t, store.open)
}

// TestAssessHealth_AppliesActions tests that health verdicts turn into storage writes
func TestAssessHealth_AppliesActions(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.open = []risk.Position{
		{ // big unrealized profit: stop gets trailed
			DealID: "winner", Symbol: "EURUSD", Direction: risk.DirectionBuy,
			Size: 0.1, EntryPrice: 1.1000, CurrentPrice: 1.1300,
			StopLoss: 1.0900, PnL: 300, OpenedAt: now.Add(-time.Hour),
			Status: risk.PositionOpen,
		},
		{ // stale: partially closed
			DealID: "stale", Symbol: "GBPUSD", Direction: risk.DirectionBuy,
			Size: 0.1, EntryPrice: 1.2700, CurrentPrice: 1.2705,
			StopLoss: 1.2600, PnL: 5, OpenedAt: now.Add(-30 * time.Hour),
			Status: risk.PositionOpen,
		},
	}
	e := testEngine(store)
	e.sess = session.New(10000)

	e.assessHealth(context.Background())

	require.Contains(t, store.tightened, "winner")
	assert.InDelta(t, 1.1187, store.tightened["winner"], 0.0001)
	assert.Equal(t, []string{"stale"}, store.reducedDeals)
	assert.Empty(t, store.closedDeals)
}
