package risk

// ATRPeriod is the default averaging window for true-range measures.
const ATRPeriod = 14

// ATR computes an average true range over a mid-price series. Ticks
// carry no OHLC, so the true range degenerates to the absolute
// tick-to-tick change. Prices are ordered oldest first.
func ATR(prices []float64, period int) float64 {
	if len(prices) < 2 || period <= 0 {
		return 0
	}
	if len(prices)-1 < period {
		period = len(prices) - 1
	}

	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		tr := prices[i] - prices[i-1]
		if tr < 0 {
			tr = -tr
		}
		sum += tr
	}
	return sum / float64(period)
}

// Volatility is the ATR expressed as a fraction of the latest price.
func Volatility(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	last := prices[len(prices)-1]
	if last <= 0 {
		return 0
	}
	return ATR(prices, period) / last
}
