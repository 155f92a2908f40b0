package risk

import "math"

// kellyScale applies quarter-Kelly: the full fraction is deliberately
// cut to a quarter of its optimal value.
const kellyScale = 0.25

// defaultPayoffRatio is used when the loss side of the ratio is unknown.
const defaultPayoffRatio = 2.0

// FullKelly is the optimal betting fraction for win probability p and
// payoff ratio b, floored at zero.
func FullKelly(p, b float64) float64 {
	if b <= 0 {
		return 0
	}
	q := 1 - p
	return math.Max(0, (b*p-q)/b)
}

// EmpiricalKelly derives the quarter-Kelly fraction from historical
// trade statistics for a symbol.
func EmpiricalKelly(winRate, avgWin, avgLoss float64) float64 {
	b := defaultPayoffRatio
	if avgLoss > 0 {
		b = avgWin / avgLoss
	}
	return FullKelly(winRate, b) * kellyScale
}

// EstimatedKelly approximates the quarter-Kelly fraction from the
// signal itself when fewer than ten historical trades exist: the
// signal's own risk/reward ratio stands in for the payoff ratio and
// confidence has a 0.8 haircut as the estimated win probability.
func EstimatedKelly(sig Signal) float64 {
	riskDist := math.Abs(sig.Price - sig.StopLoss)
	rewardDist := math.Abs(sig.TakeProfit - sig.Price)

	b := defaultPayoffRatio
	if riskDist > 0 && rewardDist > 0 {
		b = rewardDist / riskDist
	}
	return FullKelly(sig.Confidence*0.8, b) * kellyScale
}
