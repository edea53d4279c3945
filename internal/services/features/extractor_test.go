package features

import (
	"math"
	"testing"
)

func TestLogReturnsAlignment(t *testing.T) {
	prices := []float64{100, 110, 121}
	got := LogReturns(prices)
	if len(got) != 3 {
		t.Fatalf("expected aligned length 3, got %d", len(got))
	}
	if !math.IsNaN(got[0]) {
		t.Fatalf("expected NaN at index 0, got %v", got[0])
	}
	want := math.Log(1.1)
	if math.Abs(got[1]-want) > 1e-12 || math.Abs(got[2]-want) > 1e-12 {
		t.Fatalf("unexpected returns %v", got)
	}
}

func TestLogReturnsNonPositivePrice(t *testing.T) {
	got := LogReturns([]float64{100, 0, 50})
	if !math.IsNaN(got[1]) || !math.IsNaN(got[2]) {
		t.Fatalf("expected NaN around non-positive price, got %v", got)
	}
}

func TestSimpleReturns(t *testing.T) {
	got := SimpleReturns([]float64{100, 120})
	if math.Abs(got[1]-0.2) > 1e-12 {
		t.Fatalf("expected 0.2, got %v", got[1])
	}
}

func TestRollingVolatilityConstantReturns(t *testing.T) {
	// Constant log returns have zero sample variance.
	rets := make([]float64, 50)
	for i := range rets {
		rets[i] = 0.01
	}
	got := RollingVolatility(rets, 10)
	if !math.IsNaN(got[5]) {
		t.Fatalf("expected NaN before full window, got %v", got[5])
	}
	// index window-1 holds the first full window when every return is finite
	if math.IsNaN(got[9]) {
		t.Fatalf("expected value at first full window, got NaN")
	}
	if got[9] != 0 || got[49] != 0 {
		t.Fatalf("expected zero vol for constant returns, got %v and %v", got[9], got[49])
	}
}

func TestRollingVolatilityAnnualized(t *testing.T) {
	// Alternating +/-1% returns: sample sd is computable in closed form.
	rets := make([]float64, 40)
	for i := range rets {
		if i%2 == 0 {
			rets[i] = 0.01
		} else {
			rets[i] = -0.01
		}
	}
	got := RollingVolatility(rets, 30)
	last := got[39]
	if math.IsNaN(last) {
		t.Fatalf("expected value at end")
	}
	// sd of alternating +-x over even window is close to x
	want := 0.01 * math.Sqrt(252) * math.Sqrt(30.0/29.0)
	if math.Abs(last-want)/want > 0.01 {
		t.Fatalf("expected about %v, got %v", want, last)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(got[1]) {
		t.Fatalf("expected NaN before full window")
	}
	if got[2] != 2 || got[4] != 4 {
		t.Fatalf("unexpected ma %v", got)
	}
}

func TestPriceToMA(t *testing.T) {
	prices := []float64{2, 4}
	ma := []float64{math.NaN(), 2}
	got := PriceToMA(prices, ma)
	if !math.IsNaN(got[0]) {
		t.Fatalf("expected NaN where ma undefined")
	}
	if got[1] != 2 {
		t.Fatalf("expected ratio 2, got %v", got[1])
	}
}
