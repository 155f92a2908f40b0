package correlation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// minSamples is the minimum number of aligned observations required
// before a pair coefficient is trusted.
const minSamples = 30

// PricePoint is one minute-bucketed mid price.
type PricePoint struct {
	Minute time.Time `db:"minute"`
	Mid    float64   `db:"mid"`
}

// PriceSource reads minute-bucketed price history from the tick cache.
type PriceSource interface {
	MinuteMids(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
}

// MatrixStore persists a day's correlation matrix, superseding any
// previous matrix for that date.
type MatrixStore interface {
	SaveMatrix(ctx context.Context, day time.Time, matrix map[string]float64) error
}

// Engine is the batch job computing pairwise price correlations across
// symbols from recent tick history.
type Engine struct {
	prices   PriceSource
	matrices MatrixStore
	lookback time.Duration
	log      zerolog.Logger
}

// NewEngine creates a correlation engine with the given lookback
// window over tick history.
func NewEngine(prices PriceSource, matrices MatrixStore, lookback time.Duration, log zerolog.Logger) *Engine {
	if lookback <= 0 {
		lookback = 72 * time.Hour
	}
	return &Engine{
		prices:   prices,
		matrices: matrices,
		lookback: lookback,
		log:      log.With().Str("component", "correlation").Logger(),
	}
}

// Recompute builds and persists the correlation matrix for the given
// trading day. Pairs without enough aligned history are omitted; the
// risk gate falls back to its reference table for those.
func (e *Engine) Recompute(ctx context.Context, symbols []string, day time.Time) (map[string]float64, error) {
	day = day.UTC()
	to := day
	from := day.Add(-e.lookback)

	series := make(map[string]map[int64]float64, len(symbols))
	for _, sym := range symbols {
		points, err := e.prices.MinuteMids(ctx, sym, from, to)
		if err != nil {
			return nil, fmt.Errorf("load price history for %s: %w", sym, err)
		}
		byMinute := make(map[int64]float64, len(points))
		for _, p := range points {
			byMinute[p.Minute.Unix()] = p.Mid
		}
		series[sym] = byMinute
	}

	matrix := make(map[string]float64)
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := symbols[i], symbols[j]
			xs, ys := alignSeries(series[a], series[b])
			if len(xs) < minSamples {
				e.log.Debug().
					Str("pair", a+"_"+b).
					Int("samples", len(xs)).
					Msg("insufficient history for pair, skipping")
				continue
			}
			matrix[a+"_"+b] = Pearson(xs, ys)
		}
	}

	if err := e.matrices.SaveMatrix(ctx, day, matrix); err != nil {
		return nil, fmt.Errorf("persist correlation matrix: %w", err)
	}
	e.log.Info().
		Time("day", day).
		Int("pairs", len(matrix)).
		Msg("correlation matrix recomputed")
	return matrix, nil
}

// alignSeries pairs observations that share a minute bucket.
func alignSeries(a, b map[int64]float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(a))
	for minute, av := range a {
		if bv, ok := b[minute]; ok {
			xs = append(xs, av)
			ys = append(ys, bv)
		}
	}
	return xs, ys
}

// Pearson computes the correlation coefficient of two equal-length
// series. Degenerate series (zero variance) yield 0.
func Pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 || len(xs) != len(ys) {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
