package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradeforge/riskcore/internal/correlation"
	"github.com/tradeforge/riskcore/internal/marketdata"
	"github.com/tradeforge/riskcore/internal/monitoring"
	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/session"
)

const (
	killSwitchInterval  = 30 * time.Second
	healthInterval      = time.Minute
	pruneInterval       = time.Hour
	correlationInterval = 24 * time.Hour
)

// Store is the persistence surface the engine drives directly, on top
// of what the risk manager reads through its own interface.
type Store interface {
	CreateSession(ctx context.Context, sess *session.Session) error
	ActiveSession(ctx context.Context) (*session.Session, error)
	UpdateSession(ctx context.Context, sess *session.Session) error
	OpenPositions(ctx context.Context, sessionID string) ([]risk.Position, error)
	ClosePosition(ctx context.Context, dealID string, pnl float64, closedAt time.Time) error
	ReducePosition(ctx context.Context, dealID string, closedAt time.Time) error
	UpdateStopLoss(ctx context.Context, dealID string, stopLoss float64) error
	MarkPrices(ctx context.Context, symbol string, price float64) error
	PruneTicks(ctx context.Context, retention time.Duration) (int64, error)
}

// TickSource is the streaming price source, normally the websocket feed.
type TickSource interface {
	Run(ctx context.Context) error
	Ticks() <-chan marketdata.Tick
	Close() error
}

// Config tunes the engine's background schedules.
type Config struct {
	Symbols       []string
	TickRetention time.Duration
}

// Engine wires the feed, the risk manager, the correlation job and the
// persistence layer into one running service. All trade validation
// flows through it so the kill switch is honored process-wide.
type Engine struct {
	cfg    Config
	store  Store
	risk   *risk.Manager
	feed   TickSource
	corr   *correlation.Engine
	health *monitoring.HealthChecker
	log    zerolog.Logger

	mu        sync.Mutex
	sess      *session.Session
	killState risk.KillSwitchState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine. The health checker and correlation engine are
// optional.
func New(cfg Config, store Store, riskMgr *risk.Manager, feed TickSource,
	corr *correlation.Engine, health *monitoring.HealthChecker, log zerolog.Logger) *Engine {
	if cfg.TickRetention <= 0 {
		cfg.TickRetention = 72 * time.Hour
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		risk:   riskMgr,
		feed:   feed,
		corr:   corr,
		health: health,
		log:    log.With().Str("component", "engine").Logger(),
	}
}

// Start restores the active session (or opens a new one with the given
// balance) and launches the feed and maintenance loops.
func (e *Engine) Start(ctx context.Context, initialBalance float64) error {
	sess, err := e.store.ActiveSession(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if sess == nil {
		sess = session.New(initialBalance)
		if err := e.store.CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		e.log.Info().Str("session_id", sess.ID).Float64("balance", initialBalance).Msg("session opened")
	} else {
		e.log.Info().Str("session_id", sess.ID).Msg("session restored")
	}
	e.mu.Lock()
	e.sess = sess
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if e.feed != nil {
		e.wg.Add(2)
		go e.runFeed(runCtx)
		go e.consumeTicks(runCtx)
	}
	e.wg.Add(1)
	go e.maintenanceLoop(runCtx)
	return nil
}

// Stop cancels all loops, waits for them to drain and terminates the
// session. Stopping twice is safe.
func (e *Engine) Stop(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	if e.feed != nil {
		e.feed.Close()
	}
	e.wg.Wait()

	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess != nil && sess.Active() {
		sess.Stop()
		if err := e.store.UpdateSession(ctx, sess); err != nil {
			e.log.Error().Err(err).Str("session_id", sess.ID).Msg("session closure not persisted")
		} else {
			e.log.Info().Str("session_id", sess.ID).Msg("session closed")
		}
	}
	e.log.Info().Msg("engine stopped")
}

// Session returns the current session.
func (e *Engine) Session() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// KillSwitch returns the most recent kill switch evaluation.
func (e *Engine) KillSwitch() risk.KillSwitchState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killState
}

// ValidateTrade is the process-wide validation entry point. New trades
// are refused outright while the kill switch is at Caution or above;
// otherwise the signal goes through the full risk gate.
func (e *Engine) ValidateTrade(ctx context.Context, sig risk.Signal) (*risk.Decision, error) {
	e.mu.Lock()
	sess := e.sess
	level := e.killState.Level
	e.mu.Unlock()

	if sess == nil || !sess.Active() {
		return nil, errors.New("no active session")
	}
	if level >= risk.KillSwitchCaution {
		monitoring.RecordRejection("kill_switch")
		return &risk.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("kill switch %s, new trades suspended", level),
		}, nil
	}
	return e.risk.ValidateTrade(ctx, sess, sig)
}

func (e *Engine) runFeed(ctx context.Context) {
	defer e.wg.Done()
	err := e.feed.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		if e.health != nil {
			e.health.AddError(err.Error())
		}
		e.log.Error().Err(err).Msg("market data feed stopped")
	}
	if e.health != nil {
		e.health.SetConnected(false)
	}
}

func (e *Engine) consumeTicks(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-e.feed.Ticks():
			if !ok {
				return
			}
			mid := t.Mid()
			monitoring.UpdatePrice(t.Symbol, mid)
			if e.health != nil {
				e.health.SetConnected(true)
				e.health.RecordTick(mid)
			}
			if err := e.store.MarkPrices(ctx, t.Symbol, mid); err != nil {
				e.log.Warn().Err(err).Str("symbol", t.Symbol).Msg("failed to mark open positions")
			}
		}
	}
}

func (e *Engine) maintenanceLoop(ctx context.Context) {
	defer e.wg.Done()

	killTicker := time.NewTicker(killSwitchInterval)
	healthTicker := time.NewTicker(healthInterval)
	pruneTicker := time.NewTicker(pruneInterval)
	corrTicker := time.NewTicker(correlationInterval)
	defer killTicker.Stop()
	defer healthTicker.Stop()
	defer pruneTicker.Stop()
	defer corrTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-killTicker.C:
			e.evaluateKillSwitch(ctx)
		case <-healthTicker.C:
			e.assessHealth(ctx)
		case <-pruneTicker.C:
			n, err := e.store.PruneTicks(ctx, e.cfg.TickRetention)
			if err != nil {
				e.log.Warn().Err(err).Msg("tick prune failed")
			} else if n > 0 {
				e.log.Debug().Int64("rows", n).Msg("pruned old ticks")
			}
		case <-corrTicker.C:
			if e.corr != nil {
				if _, err := e.corr.Recompute(ctx, e.cfg.Symbols, time.Now().UTC()); err != nil {
					e.log.Warn().Err(err).Msg("correlation recompute failed")
				}
			}
		}
	}
}

func (e *Engine) evaluateKillSwitch(ctx context.Context) {
	sess := e.Session()
	if sess == nil {
		return
	}
	state, err := e.risk.EvaluateKillSwitch(ctx, sess)
	if err != nil {
		e.log.Warn().Err(err).Msg("kill switch evaluation failed")
		return
	}
	e.mu.Lock()
	prev := e.killState.Level
	e.killState = *state
	e.mu.Unlock()

	if state.Level != prev {
		e.log.Warn().
			Str("from", prev.String()).
			Str("to", state.Level.String()).
			Msg("kill switch level changed")
	}
	if state.Level >= risk.KillSwitchEmergency {
		e.closeAllPositions(ctx, sess, "kill switch EMERGENCY")
	}
}

// closeAllPositions force-liquidates every open position at its current
// mark.
func (e *Engine) closeAllPositions(ctx context.Context, sess *session.Session, reason string) {
	open, err := e.store.OpenPositions(ctx, sess.ID)
	if err != nil {
		e.log.Error().Err(err).Msg("cannot load positions for emergency close")
		return
	}
	now := time.Now().UTC()
	for _, p := range open {
		if err := e.store.ClosePosition(ctx, p.DealID, p.PnL, now); err != nil {
			e.log.Error().Err(err).Str("deal_id", p.DealID).Msg("emergency close failed")
			continue
		}
		e.log.Warn().
			Str("deal_id", p.DealID).
			Str("symbol", p.Symbol).
			Float64("pnl", p.PnL).
			Str("reason", reason).
			Msg("position force-closed")
	}
}

func (e *Engine) assessHealth(ctx context.Context) {
	sess := e.Session()
	if sess == nil {
		return
	}
	assessments, err := e.risk.AssessPositionHealth(ctx, sess)
	if err != nil {
		e.log.Warn().Err(err).Msg("position health assessment failed")
		return
	}
	now := time.Now().UTC()
	for _, a := range assessments {
		var err error
		switch a.Action {
		case risk.ActionEmergencyClose, risk.ActionClose:
			open, loadErr := e.store.OpenPositions(ctx, sess.ID)
			if loadErr != nil {
				err = loadErr
				break
			}
			for _, p := range open {
				if p.DealID == a.DealID {
					err = e.store.ClosePosition(ctx, p.DealID, p.PnL, now)
					break
				}
			}
		case risk.ActionTightenStop:
			err = e.store.UpdateStopLoss(ctx, a.DealID, a.NewStopLoss)
		case risk.ActionPartialClose:
			err = e.store.ReducePosition(ctx, a.DealID, now)
		default:
			continue
		}
		if err != nil {
			e.log.Warn().
				Err(err).
				Str("deal_id", a.DealID).
				Str("action", a.Action.String()).
				Msg("health action failed")
		}
	}
}
