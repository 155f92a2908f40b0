package storage

import (
	"context"
	"time"

	"github.com/tradeforge/riskcore/internal/correlation"
	"github.com/tradeforge/riskcore/internal/marketdata"
	"github.com/tradeforge/riskcore/internal/riskerr"
)

// InsertTick appends one tick to the market data cache.
func (s *Store) InsertTick(ctx context.Context, t marketdata.Tick) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO market_ticks (symbol, bid, ask, volume, ts)
		VALUES (:symbol, :bid, :ask, :volume, :ts)`, t)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "insert_tick", "insert tick", err)
	}
	return nil
}

// RecentPrices returns the latest mid prices for a symbol in
// chronological order.
func (s *Store) RecentPrices(ctx context.Context, symbol string, limit int) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var prices []float64
	err := s.db.SelectContext(ctx, &prices, `
		SELECT (bid + ask) / 2 FROM market_ticks
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "recent_prices", "query recent prices", err)
	}
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
	return prices, nil
}

// MinuteMids buckets ticks into one-minute average mid prices for the
// correlation engine.
func (s *Store) MinuteMids(ctx context.Context, symbol string, from, to time.Time) ([]correlation.PricePoint, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var points []correlation.PricePoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT date_trunc('minute', ts) AS minute, AVG((bid + ask) / 2) AS mid
		FROM market_ticks
		WHERE symbol = $1 AND ts >= $2 AND ts < $3
		GROUP BY 1
		ORDER BY 1`, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "minute_mids", "bucket minute prices", err)
	}
	return points, nil
}

// PruneTicks drops ticks older than the retention window and returns
// the number of rows removed.
func (s *Store) PruneTicks(ctx context.Context, retention time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM market_ticks WHERE ts < $1`, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "prune_ticks", "delete old ticks", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
