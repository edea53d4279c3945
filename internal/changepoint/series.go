package changepoint

import (
	"fmt"
	"math"
	"time"
)

// Series is an ordered, gap-checked sequence of (date, value) observations.
// It is immutable once constructed and safe to share across chains without
// locking.
type Series struct {
	dates  []time.Time
	values []float64
}

// NewSeries validates and copies the given observations. Dates must be
// strictly increasing and values finite; violations return ErrInvalidInput
// naming the offending index.
func NewSeries(dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("%w: %d dates but %d values", ErrInvalidInput, len(dates), len(values))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInvalidInput)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value %v at index %d", ErrInvalidInput, v, i)
		}
		if i > 0 && !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("%w: dates not strictly increasing at index %d (%s then %s)",
				ErrInvalidInput, i, dates[i-1].Format("2006-01-02"), dates[i].Format("2006-01-02"))
		}
	}
	s := &Series{
		dates:  make([]time.Time, len(dates)),
		values: make([]float64, len(values)),
	}
	copy(s.dates, dates)
	copy(s.values, values)
	return s, nil
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.values) }

// Date returns the date at index i.
func (s *Series) Date(i int) time.Time { return s.dates[i] }

// Value returns the observation at index i.
func (s *Series) Value(i int) float64 { return s.values[i] }

// Values returns a copy of the observation values.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

func (s *Series) mean() float64 {
	sum := 0.0
	for _, v := range s.values {
		sum += v
	}
	return sum / float64(len(s.values))
}

func (s *Series) variance() float64 {
	if len(s.values) < 2 {
		return 0
	}
	m := s.mean()
	sum := 0.0
	for _, v := range s.values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(s.values)-1)
}
