package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	series map[string][]PricePoint
}

func (f *fakePrices) MinuteMids(_ context.Context, symbol string, _, _ time.Time) ([]PricePoint, error) {
	return f.series[symbol], nil
}

type fakeMatrices struct {
	day    time.Time
	matrix map[string]float64
	saves  int
}

func (f *fakeMatrices) SaveMatrix(_ context.Context, day time.Time, matrix map[string]float64) error {
	f.day = day
	f.matrix = matrix
	f.saves++
	return nil
}

// seriesOf builds a minute series from values starting at base.
func seriesOf(base time.Time, values []float64) []PricePoint {
	out := make([]PricePoint, len(values))
	for i, v := range values {
		out[i] = PricePoint{Minute: base.Add(time.Duration(i) * time.Minute), Mid: v}
	}
	return out
}

func rampSeries(base time.Time, start, step float64, n int) []PricePoint {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + step*float64(i)
	}
	return seriesOf(base, values)
}

// TestPearson_PerfectCorrelation tests coefficient bounds on linear series
func TestPearson_PerfectCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	up := []float64{10, 20, 30, 40, 50}
	down := []float64{50, 40, 30, 20, 10}

	assert.InDelta(t, 1.0, Pearson(xs, up), 0.0001)
	assert.InDelta(t, -1.0, Pearson(xs, down), 0.0001)
}

// TestPearson_DegenerateSeries tests zero-variance and mismatched inputs
func TestPearson_DegenerateSeries(t *testing.T) {
	flat := []float64{2, 2, 2}
	assert.Equal(t, 0.0, Pearson(flat, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, Pearson(nil, nil))
	assert.Equal(t, 0.0, Pearson([]float64{1, 2}, []float64{1}))
}

// TestRecompute_BuildsAndPersistsMatrix tests the full pair sweep
func TestRecompute_BuildsAndPersistsMatrix(t *testing.T) {
	base := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	prices := &fakePrices{series: map[string][]PricePoint{
		"EURUSD": rampSeries(base, 1.08, 0.0001, 60),
		"GBPUSD": rampSeries(base, 1.27, 0.0002, 60),
		"USDCHF": rampSeries(base, 0.92, -0.0001, 60),
	}}
	matrices := &fakeMatrices{}
	e := NewEngine(prices, matrices, 72*time.Hour, zerolog.Nop())

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	matrix, err := e.Recompute(context.Background(), []string{"EURUSD", "GBPUSD", "USDCHF"}, day)
	require.NoError(t, err)

	require.Len(t, matrix, 3)
	assert.InDelta(t, 1.0, matrix["EURUSD_GBPUSD"], 0.0001)
	assert.InDelta(t, -1.0, matrix["EURUSD_USDCHF"], 0.0001)
	assert.InDelta(t, -1.0, matrix["GBPUSD_USDCHF"], 0.0001)

	assert.Equal(t, 1, matrices.saves)
	assert.Equal(t, day, matrices.day)
	assert.Equal(t, matrix, matrices.matrix)
}

// TestRecompute_SkipsThinPairs tests that pairs without enough aligned history are omitted
func TestRecompute_SkipsThinPairs(t *testing.T) {
	base := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	prices := &fakePrices{series: map[string][]PricePoint{
		"EURUSD": rampSeries(base, 1.08, 0.0001, 60),
		"GBPUSD": rampSeries(base, 1.27, 0.0002, 5), // too few samples
	}}
	matrices := &fakeMatrices{}
	e := NewEngine(prices, matrices, 72*time.Hour, zerolog.Nop())

	matrix, err := e.Recompute(context.Background(), []string{"EURUSD", "GBPUSD"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, matrix)
	assert.Equal(t, 1, matrices.saves)
}

// TestRecompute_AlignsByMinute tests that only shared minutes are paired
func TestRecompute_AlignsByMinute(t *testing.T) {
	base := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	// GBPUSD is shifted by 30 minutes; only the overlap aligns.
	prices := &fakePrices{series: map[string][]PricePoint{
		"EURUSD": rampSeries(base, 1.08, 0.0001, 60),
		"GBPUSD": rampSeries(base.Add(30*time.Minute), 1.27, 0.0002, 60),
	}}
	matrices := &fakeMatrices{}
	e := NewEngine(prices, matrices, 72*time.Hour, zerolog.Nop())

	matrix, err := e.Recompute(context.Background(), []string{"EURUSD", "GBPUSD"}, time.Now())
	require.NoError(t, err)
	// 30 shared minutes, exactly the minimum, still perfectly correlated.
	assert.InDelta(t, 1.0, matrix["EURUSD_GBPUSD"], 0.0001)
}
