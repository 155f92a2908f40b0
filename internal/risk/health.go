package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeforge/riskcore/internal/session"
)

// HealthAction is the recommended action for one open position.
type HealthAction int

const (
	ActionHold HealthAction = iota
	ActionEmergencyClose
	ActionTightenStop
	ActionPartialClose
	ActionClose
)

// String returns the string representation of the health action
func (a HealthAction) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionEmergencyClose:
		return "EMERGENCY_CLOSE"
	case ActionTightenStop:
		return "TIGHTEN_STOP"
	case ActionPartialClose:
		return "PARTIAL_CLOSE"
	case ActionClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// HealthAssessment is the verdict for one position.
type HealthAssessment struct {
	DealID      string       `json:"deal_id"`
	Symbol      string       `json:"symbol"`
	Action      HealthAction `json:"action"`
	Reason      string       `json:"reason"`
	NewStopLoss float64      `json:"new_stop_loss,omitempty"`
}

const (
	// Single-position loss fraction of notional forcing an emergency close
	positionDrawdownLimit = 0.05

	// Unrealized profit fraction of balance that triggers trailing
	trailProfitThreshold = 0.02

	// Age beyond which a position is partially closed
	maxHoldDuration = 24 * time.Hour

	// Market-condition score below which positions are closed
	closeConditionScore = 0.3

	// Distance of the trailed stop from the current price
	trailDistancePct = 0.01
)

// AssessPositionHealth applies the health rules to every open position.
// Rules are first-match: only the highest-priority matching rule per
// position applies. Pure read; no side effects beyond logging.
func (m *Manager) AssessPositionHealth(ctx context.Context, sess *session.Session) ([]HealthAssessment, error) {
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
	score := m.condition.Score(ctx)
	now := m.now().UTC()

	out := make([]HealthAssessment, 0, len(open))
	for _, p := range open {
		a := m.assessPosition(p, balance, score, now)
		if a.Action != ActionHold {
			m.log.Info().
				Str("deal_id", p.DealID).
				Str("symbol", p.Symbol).
				Str("action", a.Action.String()).
				Str("reason", a.Reason).
				Msg("position health action")
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Manager) assessPosition(p Position, balance, score float64, now time.Time) HealthAssessment {
	a := HealthAssessment{DealID: p.DealID, Symbol: p.Symbol, Action: ActionHold}

	// 1. Emergency close on a runaway single-position loss
	if notional := p.Notional(); notional > 0 && p.PnL < 0 {
		if lossPct := -p.PnL / notional; lossPct > positionDrawdownLimit {
			a.Action = ActionEmergencyClose
			a.Reason = fmt.Sprintf("position drawdown %.2f%% exceeds %.0f%%",
				lossPct*100, positionDrawdownLimit*100)
			return a
		}
	}

	// 2. Trail the stop once profit is meaningful
	if balance > 0 && p.PnL > trailProfitThreshold*balance {
		a.Action = ActionTightenStop
		a.Reason = fmt.Sprintf("unrealized profit %.2f above %.0f%% of balance",
			p.PnL, trailProfitThreshold*100)
		a.NewStopLoss = trailedStop(p)
		return a
	}

	// 3. Partial close on stale positions
	if now.Sub(p.OpenedAt) > maxHoldDuration {
		a.Action = ActionPartialClose
		a.Reason = fmt.Sprintf("held %s, over %s", now.Sub(p.OpenedAt).Round(time.Minute), maxHoldDuration)
		return a
	}

	// 4. Close when market conditions deteriorate
	if score < closeConditionScore {
		a.Action = ActionClose
		a.Reason = fmt.Sprintf("market condition score %.2f below %.1f", score, closeConditionScore)
		return a
	}

	return a
}

// trailedStop moves the stop behind the current price without ever
// loosening the existing stop.
func trailedStop(p Position) float64 {
	if p.Direction == DirectionBuy {
		trailed := p.CurrentPrice * (1 - trailDistancePct)
		if trailed > p.StopLoss {
			return trailed
		}
		return p.StopLoss
	}
	trailed := p.CurrentPrice * (1 + trailDistancePct)
	if p.StopLoss > 0 && trailed > p.StopLoss {
		return p.StopLoss
	}
	return trailed
}
