package risk

import "math"

// defaultPairCorrelation is assumed when neither the computed matrix
// nor the reference table knows a pair.
const defaultPairCorrelation = 0.1

// referenceCorrelations is the static fallback table used when no
// computed correlation exists for a pair. Signed coefficients; the
// gate works on absolute values.
var referenceCorrelations = map[string]float64{
	"EURUSD_GBPUSD": 0.85,
	"EURUSD_USDCHF": -0.90,
	"EURUSD_AUDUSD": 0.70,
	"GBPUSD_USDCHF": -0.80,
	"AUDUSD_NZDUSD": 0.88,
	"USDJPY_USDCHF": 0.60,
	"EURUSD_USDJPY": -0.30,
	"GBPUSD_USDJPY": -0.25,
	"XAUUSD_USDJPY": -0.40,
	"XAUUSD_AUDUSD": 0.55,
	"BTCUSD_ETHUSD": 0.82,
	"BTCUSD_SOLUSD": 0.75,
	"ETHUSD_SOLUSD": 0.78,
}

// PairKey is the canonical matrix key for a symbol pair.
func PairKey(a, b string) string {
	return a + "_" + b
}

// lookupPair resolves a pair coefficient: computed matrix first, then
// the static reference table, then the unknown-pair default. Identical
// symbols are perfectly correlated.
func lookupPair(matrix map[string]float64, a, b string) float64 {
	if a == b {
		return 1.0
	}
	if matrix != nil {
		if c, ok := matrix[PairKey(a, b)]; ok {
			return c
		}
		if c, ok := matrix[PairKey(b, a)]; ok {
			return c
		}
	}
	if c, ok := referenceCorrelations[PairKey(a, b)]; ok {
		return c
	}
	if c, ok := referenceCorrelations[PairKey(b, a)]; ok {
		return c
	}
	return defaultPairCorrelation
}

// WeightedCorrelation is the size-weighted average absolute correlation
// between a candidate symbol and the currently open positions.
func WeightedCorrelation(matrix map[string]float64, symbol string, open []Position) float64 {
	var sum, weight float64
	for _, p := range open {
		c := lookupPair(matrix, symbol, p.Symbol)
		sum += math.Abs(c) * p.Size
		weight += p.Size
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}
