package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeforge/riskcore/internal/monitoring"
	"github.com/tradeforge/riskcore/internal/session"
)

// KillSwitchLevel is an escalating circuit-breaker level. It is derived
// on every evaluation from current conditions, never latched.
type KillSwitchLevel int

const (
	KillSwitchInactive  KillSwitchLevel = 0
	KillSwitchWarning   KillSwitchLevel = 1
	KillSwitchCaution   KillSwitchLevel = 2
	KillSwitchEmergency KillSwitchLevel = 3
)

// String returns the string representation of the kill switch level
func (l KillSwitchLevel) String() string {
	switch l {
	case KillSwitchInactive:
		return "INACTIVE"
	case KillSwitchWarning:
		return "WARNING"
	case KillSwitchCaution:
		return "CAUTION"
	case KillSwitchEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// KillSwitchState is the result of one evaluation. Callers are expected
// to suppress new trades at Caution and above, and force-liquidate at
// Emergency.
type KillSwitchState struct {
	Level             KillSwitchLevel `json:"level"`
	Drawdown          float64         `json:"drawdown"`
	DailyLossPct      float64         `json:"daily_loss_pct"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	Triggers          []string        `json:"triggers,omitempty"`
	EvaluatedAt       time.Time       `json:"evaluated_at"`
}

// killSwitchTier holds the thresholds for one escalation level,
// highest first so evaluation stops at the most severe match.
type killSwitchTier struct {
	level      KillSwitchLevel
	drawdown   float64
	dailyLoss  float64
	lossStreak int
}

var killSwitchTiers = []killSwitchTier{
	{KillSwitchEmergency, 0.14, 0.05, 5},
	{KillSwitchCaution, 0.12, 0.045, 3},
	{KillSwitchWarning, 0.08, 0.03, 2},
}

// recentTradeScan bounds the backward scan for consecutive losses.
const recentTradeScan = 50

// ConsecutiveLosses counts losing trades from the most recent closed
// trade backward, stopping at the first winner. Positions must be
// ordered newest first.
func ConsecutiveLosses(recent []Position) int {
	n := 0
	for _, p := range recent {
		if p.PnL >= 0 {
			break
		}
		n++
	}
	return n
}

// EvaluateKillSwitch recomputes the kill switch from current drawdown,
// daily loss and the consecutive-loss streak. Idempotent; safe to run
// on any schedule.
func (m *Manager) EvaluateKillSwitch(ctx context.Context, sess *session.Session) (*KillSwitchState, error) {
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
	dailyLossPct := 0.0
	if dailyPnL < 0 && balance > 0 {
		dailyLossPct = -dailyPnL / balance
	}

	recent, err := m.store.RecentClosedPositions(ctx, sess.ID, recentTradeScan)
	if err != nil {
		return nil, fmt.Errorf("load recent closed positions: %w", err)
	}
	streak := ConsecutiveLosses(recent)

	state := &KillSwitchState{
		Drawdown:          drawdown,
		DailyLossPct:      dailyLossPct,
		ConsecutiveLosses: streak,
		EvaluatedAt:       now,
	}

	for _, tier := range killSwitchTiers {
		var triggers []string
		if drawdown > tier.drawdown {
			triggers = append(triggers, fmt.Sprintf("drawdown %.2f%% > %.2f%%", drawdown*100, tier.drawdown*100))
		}
		if dailyLossPct > tier.dailyLoss {
			triggers = append(triggers, fmt.Sprintf("daily loss %.2f%% > %.2f%%", dailyLossPct*100, tier.dailyLoss*100))
		}
		if streak >= tier.lossStreak {
			triggers = append(triggers, fmt.Sprintf("%d consecutive losses", streak))
		}
		if len(triggers) > 0 {
			state.Level = tier.level
			state.Triggers = triggers
			break
		}
	}

	monitoring.SetKillSwitchLevel(int(state.Level))
	if state.Level > KillSwitchInactive {
		m.log.Warn().
			Str("level", state.Level.String()).
			Strs("triggers", state.Triggers).
			Msg("kill switch active")
	}
	return state, nil
}
