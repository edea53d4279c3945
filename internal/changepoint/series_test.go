package changepoint

import (
	"errors"
	"math"
	"testing"
	"time"
)

func dailyDates(n int) []time.Time {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestNewSeriesLengthMismatch(t *testing.T) {
	_, err := NewSeries(dailyDates(3), []float64{1, 2})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewSeriesEmpty(t *testing.T) {
	_, err := NewSeries(nil, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewSeriesUnorderedDates(t *testing.T) {
	dates := dailyDates(3)
	dates[2] = dates[1] // duplicate timestamp
	_, err := NewSeries(dates, []float64{1, 2, 3})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewSeriesNonFinite(t *testing.T) {
	_, err := NewSeries(dailyDates(3), []float64{1, math.NaN(), 3})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSeriesValuesIsCopy(t *testing.T) {
	s, err := NewSeries(dailyDates(3), []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vs := s.Values()
	vs[0] = 99
	if s.Value(0) != 1 {
		t.Fatalf("series mutated through Values() copy")
	}
}

func TestSeriesMeanVariance(t *testing.T) {
	s, err := NewSeries(dailyDates(4), []float64{2, 4, 6, 8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.mean(); got != 5 {
		t.Fatalf("mean = %v, want 5", got)
	}
	// sample variance of {2,4,6,8} is 20/3
	if got := s.variance(); math.Abs(got-20.0/3.0) > 1e-12 {
		t.Fatalf("variance = %v, want %v", got, 20.0/3.0)
	}
}
