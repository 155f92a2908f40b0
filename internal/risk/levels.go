package risk

import (
	"context"
	"math"
)

// LevelFinder supplies technical support/resistance levels for the
// third stop-loss candidate. It is pluggable so the placeholder
// percentage bands can be replaced by real level analysis without
// touching the stop selection rule.
type LevelFinder interface {
	Support(symbol string, price float64) float64
	Resistance(symbol string, price float64) float64
}

// PercentLevels is the default LevelFinder: fixed bands around price.
type PercentLevels struct {
	Offset float64
}

func (p PercentLevels) offset() float64 {
	if p.Offset <= 0 {
		return 0.005
	}
	return p.Offset
}

func (p PercentLevels) Support(_ string, price float64) float64 {
	return price * (1 - p.offset())
}

func (p PercentLevels) Resistance(_ string, price float64) float64 {
	return price * (1 + p.offset())
}

// ConditionScorer supplies the aggregate market-condition score in
// [0,1] used by take-profit scaling and position health.
type ConditionScorer interface {
	Score(ctx context.Context) float64
}

// StaticScore is a fixed market-condition score.
type StaticScore float64

func (s StaticScore) Score(context.Context) float64 { return float64(s) }

// modelPerformanceFactors scales take-profit targets per upstream
// model. Unknown models get 1.0.
var modelPerformanceFactors = map[string]float64{
	"ensemble":    1.25,
	"transformer": 1.20,
	"lstm":        1.15,
	"xgboost":     1.10,
}

func modelFactor(modelID string) float64 {
	if f, ok := modelPerformanceFactors[modelID]; ok {
		return f
	}
	return 1.0
}

// DynamicStopLoss picks the most conservative of three stop candidates:
// ATR-based, percentage-based, and technical. For a long the highest of
// the three wins, for a short the lowest.
func (m *Manager) DynamicStopLoss(sig Signal, atr, volatility float64) float64 {
	pctDist := sig.Price * (0.01 + volatility)

	if sig.Direction == DirectionBuy {
		pctStop := sig.Price - pctDist
		techStop := m.levels.Support(sig.Symbol, sig.Price)
		stop := math.Max(pctStop, techStop)
		// Without price history there is no ATR candidate.
		if atr > 0 {
			stop = math.Max(stop, sig.Price-atr*2.5*(2-sig.Confidence))
		}
		return stop
	}

	pctStop := sig.Price + pctDist
	techStop := m.levels.Resistance(sig.Symbol, sig.Price)
	stop := math.Min(pctStop, techStop)
	if atr > 0 {
		stop = math.Min(stop, sig.Price+atr*2.5*(2-sig.Confidence))
	}
	return stop
}

// DynamicTakeProfit derives the target from the realized stop distance
// and a risk/reward ratio scaled by confidence, volatility, model
// performance and market condition.
func (m *Manager) DynamicTakeProfit(ctx context.Context, sig Signal, stopLoss, volatility float64) float64 {
	rr := 1.5 + sig.Confidence*2
	if volatility > 0.02 {
		rr *= 1.2
	}
	rr *= modelFactor(sig.ModelID)
	if m.condition.Score(ctx) < 0.5 {
		rr *= 0.8
	}

	stopDist := math.Abs(sig.Price - stopLoss)
	if sig.Direction == DirectionBuy {
		return sig.Price + stopDist*rr
	}
	return sig.Price - stopDist*rr
}
