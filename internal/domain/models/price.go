package models

import "time"

// PricePoint is a single daily close observation.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// PriceFeatures carries derived series aligned with the price history.
// Leading entries that lack enough history are NaN.
type PriceFeatures struct {
	Dates         []time.Time
	Prices        []float64
	LogReturns    []float64
	Volatility30d []float64
	MA30          []float64
}
