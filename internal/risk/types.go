package risk

import (
	"fmt"
	"time"
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Signal is a candidate trade produced upstream. It is read-only to the
// core and never persisted verbatim; only the derived decision is.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	ModelID    string    `json:"model_id"`
}

// Validate rejects malformed signals at the boundary before they reach
// any sizing logic.
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("signal missing symbol")
	}
	if s.Direction != DirectionBuy && s.Direction != DirectionSell {
		return fmt.Errorf("signal %s: invalid direction %q", s.Symbol, s.Direction)
	}
	if s.Price <= 0 {
		return fmt.Errorf("signal %s: invalid price %.5f", s.Symbol, s.Price)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal %s: confidence %.3f outside [0,1]", s.Symbol, s.Confidence)
	}
	if s.StopLoss <= 0 || s.TakeProfit <= 0 {
		return fmt.Errorf("signal %s: missing protective levels", s.Symbol)
	}
	if s.Direction == DirectionBuy && (s.StopLoss >= s.Price || s.TakeProfit <= s.Price) {
		return fmt.Errorf("signal %s: stop/target on wrong side of price for buy", s.Symbol)
	}
	if s.Direction == DirectionSell && (s.StopLoss <= s.Price || s.TakeProfit >= s.Price) {
		return fmt.Errorf("signal %s: stop/target on wrong side of price for sell", s.Symbol)
	}
	return nil
}

// Decision is the outcome of validating one signal. Rejections are
// expected, non-exceptional outcomes; the reason is human readable.
// Decisions are ephemeral and logged, never persisted.
type Decision struct {
	Allowed      bool    `json:"allowed"`
	AdjustedSize float64 `json:"adjusted_size"`
	StopLoss     float64 `json:"stop_loss,omitempty"`
	TakeProfit   float64 `json:"take_profit,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Position is one open or closed trade owned by a session. Closed
// positions are immutable.
type Position struct {
	DealID       string         `db:"deal_id" json:"deal_id"`
	SessionID    string         `db:"session_id" json:"session_id"`
	Symbol       string         `db:"symbol" json:"symbol"`
	Direction    Direction      `db:"direction" json:"direction"`
	Size         float64        `db:"size" json:"size"`
	EntryPrice   float64        `db:"entry_price" json:"entry_price"`
	CurrentPrice float64        `db:"current_price" json:"current_price"`
	StopLoss     float64        `db:"stop_loss" json:"stop_loss"`
	TakeProfit   float64        `db:"take_profit" json:"take_profit"`
	PnL          float64        `db:"pnl" json:"pnl"`
	OpenedAt     time.Time      `db:"opened_at" json:"opened_at"`
	ClosedAt     *time.Time     `db:"closed_at" json:"closed_at,omitempty"`
	Status       PositionStatus `db:"status" json:"status"`
}

// Notional is the position's contract value in account currency.
func (p Position) Notional() float64 {
	return p.EntryPrice * p.Size * ContractSize
}

// MetricsSnapshot is one append-only audit row, written once per
// validated trade regardless of accept/reject.
type MetricsSnapshot struct {
	SessionID        string    `db:"session_id" json:"session_id"`
	Timestamp        time.Time `db:"ts" json:"timestamp"`
	AccountBalance   float64   `db:"account_balance" json:"account_balance"`
	DailyPnL         float64   `db:"daily_pnl" json:"daily_pnl"`
	CurrentDrawdown  float64   `db:"current_drawdown" json:"current_drawdown"`
	CorrelationRisk  float64   `db:"correlation_risk" json:"correlation_risk"`
	OpenPositions    int       `db:"open_positions" json:"open_positions"`
	DailyTradesCount int       `db:"daily_trades_count" json:"daily_trades_count"`
}

// SymbolPerformance is the empirical trade history for one symbol,
// feeding the Kelly criterion.
type SymbolPerformance struct {
	Symbol      string  `db:"symbol" json:"symbol"`
	TotalTrades int     `db:"total_trades" json:"total_trades"`
	WinRate     float64 `db:"win_rate" json:"win_rate"`
	AvgWin      float64 `db:"avg_win" json:"avg_win"`
	AvgLoss     float64 `db:"avg_loss" json:"avg_loss"`
}

// Limits are the tunable risk limits, loaded from the config store
// before each validation pass. Zero values fall back to defaults.
type Limits struct {
	MaxDrawdownPct         float64 `json:"max_drawdown_pct"`
	RiskPerTradePct        float64 `json:"risk_per_trade_pct"`
	DailyLossLimitPct      float64 `json:"daily_loss_limit_pct"`
	MaxPositions           int     `json:"max_positions"`
	MaxPositionsPerSymbol  int     `json:"max_positions_per_symbol"`
	MaxTradesPerSymbolHour int     `json:"max_trades_per_symbol_hour"`
}

// DefaultLimits returns the documented default risk limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDrawdownPct:         0.14, // 14%
		RiskPerTradePct:        0.02, // 2%
		DailyLossLimitPct:      0.05, // 5%
		MaxPositions:           10,
		MaxPositionsPerSymbol:  3,
		MaxTradesPerSymbolHour: 5,
	}
}

// WithDefaults fills missing (zero) limits with the default values.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.MaxDrawdownPct <= 0 {
		l.MaxDrawdownPct = def.MaxDrawdownPct
	}
	if l.RiskPerTradePct <= 0 {
		l.RiskPerTradePct = def.RiskPerTradePct
	}
	if l.DailyLossLimitPct <= 0 {
		l.DailyLossLimitPct = def.DailyLossLimitPct
	}
	if l.MaxPositions <= 0 {
		l.MaxPositions = def.MaxPositions
	}
	if l.MaxPositionsPerSymbol <= 0 {
		l.MaxPositionsPerSymbol = def.MaxPositionsPerSymbol
	}
	if l.MaxTradesPerSymbolHour <= 0 {
		l.MaxTradesPerSymbolHour = def.MaxTradesPerSymbolHour
	}
	return l
}
