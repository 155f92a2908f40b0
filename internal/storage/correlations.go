package storage

import (
	"context"
	"time"

	"github.com/tradeforge/riskcore/internal/riskerr"
)

// SaveMatrix replaces the correlation matrix stored for a day.
func (s *Store) SaveMatrix(ctx context.Context, day time.Time, matrix map[string]float64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "save_matrix", "begin transaction", err)
	}
	defer tx.Rollback()

	date := day.UTC().Format("2006-01-02")
	if _, err := tx.ExecContext(ctx, `DELETE FROM correlation_matrices WHERE day = $1`, date); err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "save_matrix", "clear previous matrix", err)
	}
	for pair, coeff := range matrix {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO correlation_matrices (day, pair, coeff) VALUES ($1, $2, $3)`,
			date, pair, coeff); err != nil {
			return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "save_matrix", "insert pair coefficient", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "save_matrix", "commit matrix", err)
	}
	return nil
}

// Correlations loads the matrix stored for a day. An empty map means no
// matrix has been computed yet.
func (s *Store) Correlations(ctx context.Context, day time.Time) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := []struct {
		Pair  string  `db:"pair"`
		Coeff float64 `db:"coeff"`
	}{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT pair, coeff FROM correlation_matrices WHERE day = $1`,
		day.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "correlations", "query matrix", err)
	}
	matrix := make(map[string]float64, len(rows))
	for _, r := range rows {
		matrix[r.Pair] = r.Coeff
	}
	return matrix, nil
}
