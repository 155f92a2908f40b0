package storage

import (
	"context"
	"time"

	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/riskerr"
)

// AppendSnapshot writes one audit row. Rows are append-only and never
// updated.
func (s *Store) AppendSnapshot(ctx context.Context, snap risk.MetricsSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO risk_metrics
			(session_id, ts, account_balance, daily_pnl, current_drawdown,
			 correlation_risk, open_positions, daily_trades_count)
		VALUES
			(:session_id, :ts, :account_balance, :daily_pnl, :current_drawdown,
			 :correlation_risk, :open_positions, :daily_trades_count)`, snap)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "append_snapshot", "insert metrics row", err)
	}
	return nil
}

// Snapshots returns a session's audit rows in chronological order,
// optionally bounded below by since.
func (s *Store) Snapshots(ctx context.Context, sessionID string, since time.Time) ([]risk.MetricsSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out []risk.MetricsSnapshot
	err := s.db.SelectContext(ctx, &out, `
		SELECT session_id, ts, account_balance, daily_pnl, current_drawdown,
		       correlation_risk, open_positions, daily_trades_count
		FROM risk_metrics
		WHERE session_id = $1 AND ts >= $2
		ORDER BY ts`, sessionID, since.UTC())
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "snapshots", "query metrics rows", err)
	}
	return out, nil
}

// Limits reads the tunable risk limits from the config table. Names
// missing from the table stay zero and fall back to defaults upstream.
func (s *Store) Limits(ctx context.Context) (risk.Limits, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := []struct {
		Name  string  `db:"name"`
		Value float64 `db:"value"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT name, value FROM risk_limits`); err != nil {
		return risk.Limits{}, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "limits", "query risk limits", err)
	}

	var l risk.Limits
	for _, r := range rows {
		switch r.Name {
		case "max_drawdown_pct":
			l.MaxDrawdownPct = r.Value
		case "risk_per_trade_pct":
			l.RiskPerTradePct = r.Value
		case "daily_loss_limit_pct":
			l.DailyLossLimitPct = r.Value
		case "max_positions":
			l.MaxPositions = int(r.Value)
		case "max_positions_per_symbol":
			l.MaxPositionsPerSymbol = int(r.Value)
		case "max_trades_per_symbol_hour":
			l.MaxTradesPerSymbolHour = int(r.Value)
		}
	}
	return l, nil
}

// SaveLimits upserts the tunable risk limits.
func (s *Store) SaveLimits(ctx context.Context, l risk.Limits) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	values := map[string]float64{
		"max_drawdown_pct":           l.MaxDrawdownPct,
		"risk_per_trade_pct":         l.RiskPerTradePct,
		"daily_loss_limit_pct":       l.DailyLossLimitPct,
		"max_positions":              float64(l.MaxPositions),
		"max_positions_per_symbol":   float64(l.MaxPositionsPerSymbol),
		"max_trades_per_symbol_hour": float64(l.MaxTradesPerSymbolHour),
	}
	for name, value := range values {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO risk_limits (name, value) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
			name, value); err != nil {
			return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "save_limits", "upsert limit "+name, err)
		}
	}
	return nil
}
