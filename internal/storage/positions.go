package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/riskerr"
)

// CreatePosition records a newly opened position.
func (s *Store) CreatePosition(ctx context.Context, pos *risk.Position) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO positions
			(deal_id, session_id, symbol, direction, entry_price, size,
			 stop_loss, take_profit, status, pnl, current_price, opened_at, closed_at)
		VALUES
			(:deal_id, :session_id, :symbol, :direction, :entry_price, :size,
			 :stop_loss, :take_profit, :status, :pnl, :current_price, :opened_at, :closed_at)`, pos)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "create_position", "insert position", err)
	}
	return nil
}

// ClosePosition marks a position closed with its realized pnl. Closed
// positions are immutable afterwards.
func (s *Store) ClosePosition(ctx context.Context, dealID string, pnl float64, closedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET status = $1, pnl = $2, closed_at = $3
		WHERE deal_id = $4 AND status = $5`,
		risk.PositionClosed, pnl, closedAt.UTC(), dealID, risk.PositionOpen)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "close_position", "close position", err)
	}
	return nil
}

// ReducePosition halves an open position: the freed half's floating
// pnl is realized into a closed row and the original keeps the rest.
func (s *Store) ReducePosition(ctx context.Context, dealID string, closedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "reduce_position", "begin transaction", err)
	}
	defer tx.Rollback()

	var pos risk.Position
	if err := tx.GetContext(ctx, &pos, `
		SELECT * FROM positions WHERE deal_id = $1 AND status = $2 FOR UPDATE`,
		dealID, risk.PositionOpen); err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "reduce_position", "load position", err)
	}

	half := pos.Size / 2
	if _, err := tx.ExecContext(ctx, `
		UPDATE positions SET size = $1, pnl = pnl / 2 WHERE deal_id = $2`,
		half, dealID); err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "reduce_position", "shrink position", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO positions
			(deal_id, session_id, symbol, direction, entry_price, size,
			 stop_loss, take_profit, status, pnl, current_price, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		dealID+"-p", pos.SessionID, pos.Symbol, pos.Direction, pos.EntryPrice, half,
		pos.StopLoss, pos.TakeProfit, risk.PositionClosed, pos.PnL/2, pos.CurrentPrice,
		pos.OpenedAt, closedAt.UTC()); err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "reduce_position", "record closed half", err)
	}
	if err := tx.Commit(); err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "reduce_position", "commit", err)
	}
	return nil
}

// UpdateStopLoss tightens a position's protective stop.
func (s *Store) UpdateStopLoss(ctx context.Context, dealID string, stopLoss float64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE positions SET stop_loss = $1 WHERE deal_id = $2 AND status = $3`,
		stopLoss, dealID, risk.PositionOpen)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "update_stop_loss", "update stop", err)
	}
	return nil
}

// MarkPrices refreshes open positions' mark price and floating pnl for
// a symbol from the latest tick.
func (s *Store) MarkPrices(ctx context.Context, symbol string, price float64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET current_price = $1,
		    pnl = CASE WHEN direction = 'buy'
		          THEN ($1 - entry_price) * size * $2
		          ELSE (entry_price - $1) * size * $2 END
		WHERE symbol = $3 AND status = $4`,
		price, risk.ContractSize, symbol, risk.PositionOpen)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "mark_prices", "mark open positions", err)
	}
	return nil
}

// OpenPositions returns the session's open positions, oldest first.
func (s *Store) OpenPositions(ctx context.Context, sessionID string) ([]risk.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []risk.Position
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM positions
		WHERE session_id = $1 AND status = $2
		ORDER BY opened_at`, sessionID, risk.PositionOpen)
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "open_positions", "query open positions", err)
	}
	return out, nil
}

// ClosedPnL returns the session's total realized pnl.
func (s *Store) ClosedPnL(ctx context.Context, sessionID string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var pnl float64
	err := s.db.GetContext(ctx, &pnl, `
		SELECT COALESCE(SUM(pnl), 0) FROM positions
		WHERE session_id = $1 AND status = $2`, sessionID, risk.PositionClosed)
	if err != nil {
		return 0, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "closed_pnl", "sum realized pnl", err)
	}
	return pnl, nil
}

// DailyPnL returns realized pnl closed on the given UTC day plus the
// floating pnl of positions still open.
func (s *Store) DailyPnL(ctx context.Context, sessionID string, day time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start, end := dayBounds(day)
	var pnl float64
	err := s.db.GetContext(ctx, &pnl, `
		SELECT COALESCE(SUM(pnl), 0) FROM positions
		WHERE session_id = $1
		  AND ((status = $2 AND closed_at >= $3 AND closed_at < $4) OR status = $5)`,
		sessionID, risk.PositionClosed, start, end, risk.PositionOpen)
	if err != nil {
		return 0, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "daily_pnl", "sum daily pnl", err)
	}
	return pnl, nil
}

// PreviousDayProfit returns the prior UTC day's realized profit,
// floored at zero so a losing day never lowers the profit cap.
func (s *Store) PreviousDayProfit(ctx context.Context, sessionID string, day time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start, end := dayBounds(day.AddDate(0, 0, -1))
	var pnl float64
	err := s.db.GetContext(ctx, &pnl, `
		SELECT COALESCE(SUM(pnl), 0) FROM positions
		WHERE session_id = $1 AND status = $2 AND closed_at >= $3 AND closed_at < $4`,
		sessionID, risk.PositionClosed, start, end)
	if err != nil {
		return 0, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "previous_day_profit", "sum previous day pnl", err)
	}
	if pnl < 0 {
		return 0, nil
	}
	return pnl, nil
}

// TradesInWindow counts the session's positions for a symbol opened
// since the given time, open or closed.
func (s *Store) TradesInWindow(ctx context.Context, sessionID, symbol string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM positions
		WHERE session_id = $1 AND symbol = $2 AND opened_at >= $3`,
		sessionID, symbol, since.UTC())
	if err != nil {
		return 0, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "trades_in_window", "count trades", err)
	}
	return n, nil
}

// DailyTradeCount counts positions opened on the given UTC day.
func (s *Store) DailyTradeCount(ctx context.Context, sessionID string, day time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start, end := dayBounds(day)
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM positions
		WHERE session_id = $1 AND opened_at >= $2 AND opened_at < $3`,
		sessionID, start, end)
	if err != nil {
		return 0, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "daily_trade_count", "count daily trades", err)
	}
	return n, nil
}

// RecentClosedPositions returns the most recently closed positions,
// newest first.
func (s *Store) RecentClosedPositions(ctx context.Context, sessionID string, limit int) ([]risk.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []risk.Position
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM positions
		WHERE session_id = $1 AND status = $2
		ORDER BY closed_at DESC
		LIMIT $3`, sessionID, risk.PositionClosed, limit)
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "recent_closed", "query closed positions", err)
	}
	return out, nil
}

// SymbolPerformance aggregates the closed-trade record for one symbol.
// Returns nil when the symbol has no closed trades.
func (s *Store) SymbolPerformance(ctx context.Context, symbol string) (*risk.SymbolPerformance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var perf risk.SymbolPerformance
	err := s.db.GetContext(ctx, &perf, `
		SELECT
			symbol,
			COUNT(*) AS total_trades,
			COALESCE(AVG(CASE WHEN pnl > 0 THEN 1.0 ELSE 0.0 END), 0) AS win_rate,
			COALESCE(AVG(pnl) FILTER (WHERE pnl > 0), 0) AS avg_win,
			COALESCE(ABS(AVG(pnl) FILTER (WHERE pnl < 0)), 0) AS avg_loss
		FROM positions
		WHERE symbol = $1 AND status = $2
		GROUP BY symbol`, symbol, risk.PositionClosed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "symbol_performance", "aggregate trade history", err)
	}
	return &perf, nil
}

// dayBounds returns the [start, end) UTC bounds of a calendar day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
