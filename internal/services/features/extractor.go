package features

import (
	"math"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
)

// Annualization factor for daily observations (trading days per year).
const tradingDaysPerYear = 252

// LogReturns computes r_t = ln(P_t / P_{t-1}) aligned with the input: the
// first entry is NaN, as are entries following a non-positive price.
func LogReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		out[i] = math.Log(cur / prev)
	}
	return out
}

// SimpleReturns computes (P_t - P_{t-1}) / P_{t-1}, aligned like LogReturns.
func SimpleReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 {
			continue
		}
		out[i] = (prices[i] - prev) / prev
	}
	return out
}

// RollingVolatility computes the annualized rolling standard deviation of log
// returns over the given window. Entries without a full window of finite
// returns are NaN.
func RollingVolatility(logReturns []float64, window int) []float64 {
	out := make([]float64, len(logReturns))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 1 {
		return out
	}
	for i := window - 1; i < len(logReturns); i++ {
		lo := i - window + 1
		sum := 0.0
		ok := true
		for j := lo; j <= i; j++ {
			r := logReturns[j]
			if math.IsNaN(r) {
				ok = false
				break
			}
			sum += r
		}
		if !ok {
			continue
		}
		n := float64(window)
		mean := sum / n
		// corrected two-pass sum of squared deviations; the s1 term cancels
		// the rounding of the mean so constant input yields exactly zero
		ss, s1 := 0.0, 0.0
		for j := lo; j <= i; j++ {
			d := logReturns[j] - mean
			ss += d * d
			s1 += d
		}
		out[i] = math.Sqrt((ss - s1*s1/n) / (n - 1) * tradingDaysPerYear)
	}
	return out
}

// MovingAverage computes the simple moving average over the given window.
// Entries without a full window are NaN.
func MovingAverage(prices []float64, window int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || len(prices) < window {
		return out
	}
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= window {
			sum -= prices[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// PriceToMA computes the ratio of price to its moving average, NaN where the
// moving average is undefined or zero.
func PriceToMA(prices, ma []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
		if i < len(ma) && !math.IsNaN(ma[i]) && ma[i] != 0 {
			out[i] = prices[i] / ma[i]
		}
	}
	return out
}

// Extract computes the standard derived series for a price history.
func Extract(points []models.PricePoint) *models.PriceFeatures {
	prices := make([]float64, len(points))
	f := &models.PriceFeatures{Prices: prices}
	f.Dates = make([]time.Time, len(points))
	for i, p := range points {
		f.Dates[i] = p.Date
		prices[i] = p.Price
	}
	f.LogReturns = LogReturns(prices)
	f.Volatility30d = RollingVolatility(f.LogReturns, 30)
	f.MA30 = MovingAverage(prices, 30)
	return f
}
