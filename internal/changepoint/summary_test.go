package changepoint

import (
	"math"
	"testing"
)

func TestModeEarliestTieBreak(t *testing.T) {
	if got := modeEarliest([]int{5, 3, 5, 3, 9}); got != 3 {
		t.Fatalf("mode = %d, want 3 (tie breaks to earlier index)", got)
	}
	if got := modeEarliest([]int{7, 7, 2}); got != 7 {
		t.Fatalf("mode = %d, want 7", got)
	}
}

func TestQuantileIndexBounds(t *testing.T) {
	if got := quantileIndex(100, 0.025); got != 2 {
		t.Fatalf("quantileIndex(100, 0.025) = %d, want 2", got)
	}
	if got := quantileIndex(100, 0.975); got != 97 {
		t.Fatalf("quantileIndex(100, 0.975) = %d, want 97", got)
	}
	if got := quantileIndex(1, 0.975); got != 0 {
		t.Fatalf("quantileIndex(1, 0.975) = %d, want 0", got)
	}
}

func TestSummarizeLevelImpactUndefinedAtZeroPreMean(t *testing.T) {
	// Hand-built chains: pre-segment mean exactly zero in every draw.
	mk := func() *Chain {
		c := &Chain{}
		for d := 0; d < 100; d++ {
			c.Bounds = append(c.Bounds, []int{50})
			c.Means = append(c.Means, []float64{0, 2})
			c.Vars = append(c.Vars, []float64{1, 4})
		}
		return c
	}
	chains := []*Chain{mk(), mk()}
	s, err := NewSeries(dailyDates(100), rampValues(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := testConfig()
	cfg.Draws = 100
	rep := diagnose(chains, cfg)
	cps := summarize(s, chains, rep, cfg)
	if len(cps) != 1 {
		t.Fatalf("expected 1 change point, got %d", len(cps))
	}
	cp := cps[0]
	if cp.LevelImpactDefined {
		t.Fatalf("level impact must be undefined when pre mean is zero")
	}
	if cp.LevelImpact != 0 {
		t.Fatalf("undefined level impact must stay zero-valued, got %v", cp.LevelImpact)
	}
	if math.Abs(cp.VolatilityRatio-2.0) > 1e-12 {
		t.Fatalf("volatility ratio = %v, want 2.0", cp.VolatilityRatio)
	}
	if cp.Index != 50 {
		t.Fatalf("boundary mode = %d, want 50", cp.Index)
	}
	if cp.Pre.Length != 50 || cp.Post.Length != 50 {
		t.Fatalf("segment lengths = %d/%d, want 50/50", cp.Pre.Length, cp.Post.Length)
	}
	if cp.Date != s.Date(50) {
		t.Fatalf("boundary date = %v, want %v", cp.Date, s.Date(50))
	}
}

func TestSummarizeSegmentIntervals(t *testing.T) {
	c := &Chain{}
	for d := 0; d < 1000; d++ {
		v := float64(d) / 999 // uniform grid on [0, 1]
		c.Bounds = append(c.Bounds, []int{50})
		c.Means = append(c.Means, []float64{v, v + 10})
		c.Vars = append(c.Vars, []float64{1, 1})
	}
	est := summarizeSegment([]*Chain{c}, 0)
	if math.Abs(est.Mean-0.5) > 1e-3 {
		t.Fatalf("posterior mean = %v, want 0.5", est.Mean)
	}
	if math.Abs(est.MeanLow-0.025) > 5e-3 || math.Abs(est.MeanHigh-0.975) > 5e-3 {
		t.Fatalf("95%% interval = [%v, %v], want about [0.025, 0.975]", est.MeanLow, est.MeanHigh)
	}
}
