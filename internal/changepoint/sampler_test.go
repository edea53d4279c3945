package changepoint

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"sync/atomic"
	"testing"
)

// syntheticShift builds n observations with a single regime shift at index
// split: Normal(mean1, var1) before, Normal(mean2, var2) after.
func syntheticShift(n, split int, mean1, var1, mean2, var2 float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		if i < split {
			out[i] = mean1 + math.Sqrt(var1)*rng.NormFloat64()
		} else {
			out[i] = mean2 + math.Sqrt(var2)*rng.NormFloat64()
		}
	}
	return out
}

func TestDetectRecoversKnownShift(t *testing.T) {
	// 1000 points: first 500 from N(10, 1), rest from N(20, 4).
	s, err := NewSeries(dailyDates(1000), syntheticShift(1000, 500, 10, 1, 20, 4, 99))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := Config{
		Segments:         2,
		MinSegmentLength: 30,
		Chains:           4,
		Draws:            2000,
		Warmup:           1000,
		Seed:             42,
		MaxRHat:          1.01,
		MinESS:           400,
		AcceptMin:        0.05,
		AcceptMax:        0.95,
	}
	res, err := Detect(context.Background(), s, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.ChangePoints) != 1 {
		t.Fatalf("expected 1 change point, got %d", len(res.ChangePoints))
	}
	cp := res.ChangePoints[0]

	if cp.Index < 495 || cp.Index > 505 {
		t.Fatalf("boundary mode %d not within 5 of 500", cp.Index)
	}
	if cp.RHat >= 1.01 {
		t.Fatalf("boundary r_hat = %v, want < 1.01", cp.RHat)
	}
	if math.Abs(cp.VolatilityRatio-2.0) > 0.2 {
		t.Fatalf("volatility ratio = %v, want within 10%% of 2.0", cp.VolatilityRatio)
	}
	if !cp.LevelImpactDefined {
		t.Fatalf("level impact should be defined for nonzero pre mean")
	}
	if math.Abs(cp.LevelImpact-1.0) > 0.15 {
		t.Fatalf("level impact = %v, want near 1.0", cp.LevelImpact)
	}
	if cp.IndexLow > cp.Index || cp.IndexHigh < cp.Index {
		t.Fatalf("credible interval [%d, %d] does not contain mode %d", cp.IndexLow, cp.IndexHigh, cp.Index)
	}
	if cp.Pre.Length < cfg.MinSegmentLength || cp.Post.Length < cfg.MinSegmentLength {
		t.Fatalf("segment lengths %d/%d below minimum %d", cp.Pre.Length, cp.Post.Length, cfg.MinSegmentLength)
	}
}

func TestDetectDeterministicWithSeed(t *testing.T) {
	s, _ := NewSeries(dailyDates(300), syntheticShift(300, 150, 0, 1, 3, 1, 5))
	cfg := testConfig()

	run := func() *Result {
		res, err := Detect(context.Background(), s, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return res
	}
	a, b := run(), run()

	if !reflect.DeepEqual(a.ChangePoints, b.ChangePoints) {
		t.Fatalf("change points differ across identically seeded runs:\n%+v\n%+v", a.ChangePoints, b.ChangePoints)
	}
	if !reflect.DeepEqual(a.Diagnostics.Quantities, b.Diagnostics.Quantities) {
		t.Fatalf("diagnostics differ across identically seeded runs")
	}
}

func TestDetectLockedBoundaryIsNotDivergence(t *testing.T) {
	// Extreme separation pins every chain to the true boundary: each
	// windowed move crosses a huge likelihood gap, so the post-warmup
	// boundary acceptance is exactly zero. That must not fail the run.
	s, _ := NewSeries(dailyDates(400), syntheticShift(400, 200, 0, 0.01, 50, 0.01, 7))
	cfg := testConfig()
	cfg.Warmup = 500 // enough for every chain to lock before retention starts

	m, err := newModel(s, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chains, err := sample(context.Background(), m, cfg, options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for ci, c := range chains {
		if c.AcceptBounds != 0 {
			t.Fatalf("chain %d boundary acceptance %v, expected 0 on this data", ci, c.AcceptBounds)
		}
	}

	res, err := Detect(context.Background(), s, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.ChangePoints[0].Index; got != 200 {
		t.Fatalf("boundary mode %d, want exactly 200", got)
	}
}

func TestSampleHonorsPartitionInvariant(t *testing.T) {
	s, _ := NewSeries(dailyDates(300), syntheticShift(300, 150, 0, 1, 3, 1, 5))
	cfg := testConfig()
	cfg.Segments = 3
	m, err := newModel(s, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chains, err := sample(context.Background(), m, cfg, options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for ci, c := range chains {
		if len(c.Bounds) != cfg.Draws {
			t.Fatalf("chain %d retained %d draws, want %d", ci, len(c.Bounds), cfg.Draws)
		}
		for d, bounds := range c.Bounds {
			prev := 0
			for _, b := range bounds {
				if b-prev < cfg.MinSegmentLength {
					t.Fatalf("chain %d draw %d: segment length %d below minimum", ci, d, b-prev)
				}
				prev = b
			}
			if s.Len()-prev < cfg.MinSegmentLength {
				t.Fatalf("chain %d draw %d: trailing segment too short", ci, d)
			}
		}
	}
}

func TestBoundaryPosteriorIsDistribution(t *testing.T) {
	s, _ := NewSeries(dailyDates(200), syntheticShift(200, 100, 0, 1, 2, 1, 11))
	cfg := testConfig()
	m, err := newModel(s, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chains, err := sample(context.Background(), m, cfg, options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := make(map[int]int)
	total := 0
	for _, c := range chains {
		for _, b := range c.Bounds {
			counts[b[0]]++
			total++
		}
	}
	sum := 0.0
	for idx, n := range counts {
		if idx < cfg.MinSegmentLength || idx > s.Len()-cfg.MinSegmentLength {
			t.Fatalf("posterior mass at infeasible index %d", idx)
		}
		sum += float64(n) / float64(total)
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("posterior index distribution sums to %v, want 1", sum)
	}
}

func TestSampleCancellation(t *testing.T) {
	s, _ := NewSeries(dailyDates(500), syntheticShift(500, 250, 0, 1, 4, 1, 3))
	cfg := testConfig()
	cfg.Draws = 100000 // long enough that cancellation lands mid-run
	m, err := newModel(s, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	opt := options{progress: func(chain, done, total int) {
		if atomic.AddInt32(&calls, 1) == 3 {
			cancel()
		}
	}}
	_, err = sample(ctx, m, cfg, opt)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDetectNotConvergedIsSoft(t *testing.T) {
	// Far too few draws to satisfy the ESS threshold: the run must still
	// produce a result, flagged as not converged.
	s, _ := NewSeries(dailyDates(200), syntheticShift(200, 100, 0, 1, 2, 1, 21))
	cfg := testConfig()
	cfg.Draws = 20
	cfg.Warmup = 50
	cfg.MinESS = 10000
	res, err := Detect(context.Background(), s, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Converged {
		t.Fatalf("expected Converged=false")
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a not-converged warning")
	}
	if len(res.ChangePoints) != 1 {
		t.Fatalf("expected result despite failed convergence, got %d change points", len(res.ChangePoints))
	}
}
