package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradeforge/riskcore/internal/monitoring"
	"github.com/tradeforge/riskcore/internal/session"
)

// ContractSize converts lots to contract units.
const ContractSize = 100000.0

const (
	// Sizing bounds
	minLotSize = 0.01
	maxLotSize = 2.0

	// Never risk more than this fraction of balance on a single trade,
	// regardless of what Kelly suggests.
	hardRiskCap = 0.02

	// Correlation gate threshold
	correlationLimit = 0.7

	// Daily profit cap: this fraction of balance plus the previous
	// day's total profit.
	dailyProfitCapRatio = 0.40

	// Price history window for ATR/volatility
	priceHistoryDepth = 50
)

// Store is the persistence collaborator the risk manager reads from.
// The manager itself never mutates position state; it is a read-only
// gate plus an append-only audit trail.
type Store interface {
	Limits(ctx context.Context) (Limits, error)
	OpenPositions(ctx context.Context, sessionID string) ([]Position, error)
	ClosedPnL(ctx context.Context, sessionID string) (float64, error)
	DailyPnL(ctx context.Context, sessionID string, day time.Time) (float64, error)
	PreviousDayProfit(ctx context.Context, sessionID string, day time.Time) (float64, error)
	TradesInWindow(ctx context.Context, sessionID, symbol string, since time.Time) (int, error)
	DailyTradeCount(ctx context.Context, sessionID string, day time.Time) (int, error)
	RecentClosedPositions(ctx context.Context, sessionID string, limit int) ([]Position, error)
	SymbolPerformance(ctx context.Context, symbol string) (*SymbolPerformance, error)
	Correlations(ctx context.Context, day time.Time) (map[string]float64, error)
	RecentPrices(ctx context.Context, symbol string, limit int) ([]float64, error)
	AppendSnapshot(ctx context.Context, snap MetricsSnapshot) error
}

// Manager is the synchronous risk gate evaluated before any order is
// placed. Safe for concurrent use; calls for the same session are
// serialized so two trades cannot both pass the position-count gate
// and together exceed it.
type Manager struct {
	store     Store
	levels    LevelFinder
	condition ConditionScorer
	log       zerolog.Logger
	now       func() time.Time

	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

// NewManager creates a risk manager with the default level finder and
// a neutral market-condition score.
func NewManager(store Store, log zerolog.Logger) *Manager {
	return &Manager{
		store:        store,
		levels:       PercentLevels{},
		condition:    StaticScore(0.6),
		log:          log.With().Str("component", "risk").Logger(),
		now:          time.Now,
		sessionLocks: make(map[string]*sync.Mutex),
	}
}

// SetLevelFinder swaps the technical level strategy.
func (m *Manager) SetLevelFinder(l LevelFinder) {
	if l != nil {
		m.levels = l
	}
}

// SetConditionScorer swaps the market-condition source.
func (m *Manager) SetConditionScorer(c ConditionScorer) {
	if c != nil {
		m.condition = c
	}
}

func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.sessionLocks[sessionID] = lock
	}
	return lock
}

// ValidateTrade runs the ordered risk gates against one signal and, on
// success, attaches the adjusted size and dynamic protective levels.
// Gates short-circuit on first failure; every call writes one audit
// snapshot regardless of outcome. Rejections are returned as decisions,
// never as errors.
func (m *Manager) ValidateTrade(ctx context.Context, sess *session.Session, sig Signal) (*Decision, error) {
	if err := sig.Validate(); err != nil {
		monitoring.RecordError("signal_validation")
		return nil, err
	}

	lock := m.sessionLock(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	limits, err := m.store.Limits(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("risk limits unavailable, using defaults")
		limits = DefaultLimits()
	}
	limits = limits.WithDefaults()

	open, err := m.store.OpenPositions(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	closedPnL, err := m.store.ClosedPnL(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load closed pnl: %w", err)
	}

	openPnL := 0.0
	for _, p := range open {
		openPnL += p.PnL
	}
	balance := sess.CurrentBalance(closedPnL, openPnL)
	drawdown := session.Drawdown(sess.InitialBalance, balance)

	now := m.now().UTC()
	dailyPnL, err := m.store.DailyPnL(ctx, sess.ID, now)
	if err != nil {
		return nil, fmt.Errorf("load daily pnl: %w", err)
	}
	dailyTrades, err := m.store.DailyTradeCount(ctx, sess.ID, now)
	if err != nil {
		return nil, fmt.Errorf("load daily trade count: %w", err)
	}

	snap := MetricsSnapshot{
		SessionID:        sess.ID,
		Timestamp:        now,
		AccountBalance:   balance,
		DailyPnL:         dailyPnL,
		CurrentDrawdown:  drawdown,
		OpenPositions:    len(open),
		DailyTradesCount: dailyTrades,
	}
	// Audit trail is written whatever the outcome; a metrics write must
	// never block or fail the decision.
	defer m.writeSnapshot(ctx, &snap)

	monitoring.SetOpenPositions(len(open))

	reject := func(gate, reason string) *Decision {
		monitoring.RecordRejection(gate)
		monitoring.RecordValidation(sig.Symbol, "rejected")
		m.log.Info().
			Str("symbol", sig.Symbol).
			Str("gate", gate).
			Str("reason", reason).
			Msg("trade rejected")
		return &Decision{Allowed: false, Reason: reason}
	}

	// 1. Drawdown gate
	if drawdown > limits.MaxDrawdownPct {
		return reject("drawdown", fmt.Sprintf(
			"drawdown %.2f%% exceeds limit %.2f%%", drawdown*100, limits.MaxDrawdownPct*100)), nil
	}

	// 2. Daily profit cap
	prevDayProfit, err := m.store.PreviousDayProfit(ctx, sess.ID, now)
	if err != nil {
		return nil, fmt.Errorf("load previous day profit: %w", err)
	}
	profitCap := dailyProfitCapRatio*balance + prevDayProfit
	if dailyPnL > profitCap {
		return reject("daily_profit_cap", fmt.Sprintf(
			"daily pnl %.2f above profit cap %.2f", dailyPnL, profitCap)), nil
	}

	// 3. Daily loss limit
	if dailyPnL < -(limits.DailyLossLimitPct * balance) {
		return reject("daily_loss", fmt.Sprintf(
			"daily loss %.2f exceeds %.2f%% of balance", dailyPnL, limits.DailyLossLimitPct*100)), nil
	}

	// 4. Position count gate
	if len(open) >= limits.MaxPositions {
		return reject("position_count", fmt.Sprintf(
			"open positions %d at limit %d", len(open), limits.MaxPositions)), nil
	}

	// 5. Per-symbol position gate
	symbolOpen := 0
	for _, p := range open {
		if p.Symbol == sig.Symbol {
			symbolOpen++
		}
	}
	if symbolOpen >= limits.MaxPositionsPerSymbol {
		return reject("symbol_positions", fmt.Sprintf(
			"%s already has %d open positions (limit %d)",
			sig.Symbol, symbolOpen, limits.MaxPositionsPerSymbol)), nil
	}

	// 6. Per-symbol hourly rate gate
	hourly, err := m.store.TradesInWindow(ctx, sess.ID, sig.Symbol, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("load hourly trade count: %w", err)
	}
	if hourly >= limits.MaxTradesPerSymbolHour {
		return reject("symbol_rate", fmt.Sprintf(
			"%s traded %d times in the last hour (limit %d)",
			sig.Symbol, hourly, limits.MaxTradesPerSymbolHour)), nil
	}

	// 7. Correlation-risk gate
	matrix, err := m.store.Correlations(ctx, now)
	if err != nil {
		m.log.Debug().Err(err).Msg("correlation matrix unavailable, using reference table")
		matrix = nil
	}
	corrRisk := WeightedCorrelation(matrix, sig.Symbol, open)
	snap.CorrelationRisk = corrRisk
	if corrRisk > correlationLimit {
		return reject("correlation", fmt.Sprintf(
			"correlation risk %.2f above limit %.2f", corrRisk, correlationLimit)), nil
	}

	// 8. Position sizing
	prices, err := m.store.RecentPrices(ctx, sig.Symbol, priceHistoryDepth)
	if err != nil {
		m.log.Debug().Err(err).Str("symbol", sig.Symbol).Msg("price history unavailable")
		prices = nil
	}
	atr := ATR(prices, ATRPeriod)
	volatility := Volatility(prices, ATRPeriod)

	size := m.positionSize(ctx, sig, balance, volatility, limits)
	if size < minLotSize {
		return reject("sizing", fmt.Sprintf(
			"computed size %.4f below minimum %.2f lots", size, minLotSize)), nil
	}

	stopLoss := m.DynamicStopLoss(sig, atr, volatility)
	takeProfit := m.DynamicTakeProfit(ctx, sig, stopLoss, volatility)

	monitoring.RecordValidation(sig.Symbol, "accepted")
	m.log.Info().
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Float64("size", size).
		Float64("stop_loss", stopLoss).
		Float64("take_profit", takeProfit).
		Msg("trade accepted")

	return &Decision{
		Allowed:      true,
		AdjustedSize: size,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
	}, nil
}

// positionSize computes the final lot size: the lesser of the
// quarter-Kelly and the fixed-fraction risk size, dampened by
// volatility and confidence, then clamped by the hard risk cap and
// the maximum lot size.
func (m *Manager) positionSize(ctx context.Context, sig Signal, balance, volatility float64, limits Limits) float64 {
	stopDistPct := math.Abs(sig.Price-sig.StopLoss) / sig.Price
	if stopDistPct <= 0 || balance <= 0 {
		return 0
	}

	kelly := 0.0
	perf, err := m.store.SymbolPerformance(ctx, sig.Symbol)
	if err == nil && perf != nil && perf.TotalTrades >= 10 {
		kelly = EmpiricalKelly(perf.WinRate, perf.AvgWin, perf.AvgLoss)
	} else {
		kelly = EstimatedKelly(sig)
	}

	unitRisk := stopDistPct * sig.Price * ContractSize
	kellySize := (kelly * balance) / unitRisk
	riskSize := (limits.RiskPerTradePct * balance) / unitRisk
	size := math.Min(kellySize, riskSize)

	switch {
	case volatility > 0.03:
		size *= 0.5
	case volatility > 0.02:
		size *= 0.7
	}
	size *= sig.Confidence * sig.Confidence

	if size*unitRisk > hardRiskCap*balance {
		size = hardRiskCap * balance / unitRisk
	}
	if size > maxLotSize {
		size = maxLotSize
	}
	return size
}

func (m *Manager) writeSnapshot(ctx context.Context, snap *MetricsSnapshot) {
	if err := m.store.AppendSnapshot(ctx, *snap); err != nil {
		monitoring.RecordError("metrics_snapshot")
		m.log.Warn().Err(err).Msg("failed to append risk metrics snapshot")
	}
}
