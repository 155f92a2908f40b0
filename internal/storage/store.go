package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/tradeforge/riskcore/internal/riskerr"
)

const queryTimeout = 10 * time.Second

// Store is the Postgres persistence collaborator. It backs the risk
// manager, the market-data feed and the correlation engine through
// their respective consumer interfaces.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string, log zerolog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "open", "connect to database", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{
		db:  db,
		log: log.With().Str("component", "storage").Logger(),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id               TEXT PRIMARY KEY,
		initial_balance  DOUBLE PRECISION NOT NULL,
		status           TEXT NOT NULL,
		started_at       TIMESTAMPTZ NOT NULL,
		ended_at         TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		deal_id     TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES sessions(id),
		symbol      TEXT NOT NULL,
		direction   TEXT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		size        DOUBLE PRECISION NOT NULL,
		stop_loss   DOUBLE PRECISION NOT NULL,
		take_profit DOUBLE PRECISION NOT NULL,
		status      TEXT NOT NULL,
		pnl           DOUBLE PRECISION NOT NULL DEFAULT 0,
		current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		opened_at   TIMESTAMPTZ NOT NULL,
		closed_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_session_status ON positions(session_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_closed_at ON positions(closed_at)`,
	`CREATE TABLE IF NOT EXISTS market_ticks (
		id        BIGSERIAL PRIMARY KEY,
		symbol    TEXT NOT NULL,
		bid       DOUBLE PRECISION NOT NULL,
		ask       DOUBLE PRECISION NOT NULL,
		volume    DOUBLE PRECISION NOT NULL,
		ts        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_market_ticks_symbol_ts ON market_ticks(symbol, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS correlation_matrices (
		day   DATE NOT NULL,
		pair  TEXT NOT NULL,
		coeff DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (day, pair)
	)`,
	`CREATE TABLE IF NOT EXISTS risk_metrics (
		id                  BIGSERIAL PRIMARY KEY,
		session_id          TEXT NOT NULL,
		ts                  TIMESTAMPTZ NOT NULL,
		account_balance     DOUBLE PRECISION NOT NULL,
		daily_pnl           DOUBLE PRECISION NOT NULL,
		current_drawdown    DOUBLE PRECISION NOT NULL,
		correlation_risk    DOUBLE PRECISION NOT NULL,
		open_positions      INTEGER NOT NULL,
		daily_trades_count  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_risk_metrics_session_ts ON risk_metrics(session_id, ts)`,
	`CREATE TABLE IF NOT EXISTS risk_limits (
		name  TEXT PRIMARY KEY,
		value DOUBLE PRECISION NOT NULL
	)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "ensure_schema",
				fmt.Sprintf("apply schema statement: %.60s", stmt), err)
		}
	}
	s.log.Info().Msg("database schema verified")
	return nil
}
