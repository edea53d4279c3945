package changepoint

import (
	"math"
	"sort"
	"time"
)

// SegmentEstimate summarizes the posterior of one regime's parameters.
// Intervals are empirical 95% credible intervals over pooled draws.
type SegmentEstimate struct {
	Mean         float64 `json:"mean"`
	MeanLow      float64 `json:"mean_low"`
	MeanHigh     float64 `json:"mean_high"`
	Variance     float64 `json:"variance"`
	VarianceLow  float64 `json:"variance_low"`
	VarianceHigh float64 `json:"variance_high"`
	Length       int     `json:"length"` // observations at the point estimate partition
}

// ChangePoint is one boundary's posterior summary with derived impact
// metrics. It is immutable once produced and is the engine's sole output
// contract toward presentation layers.
type ChangePoint struct {
	Index     int       `json:"index"` // first index of the post segment
	Date      time.Time `json:"date"`
	IndexLow  int       `json:"index_low"`
	IndexHigh int       `json:"index_high"`
	DateLow   time.Time `json:"date_low"`
	DateHigh  time.Time `json:"date_high"`

	Pre  SegmentEstimate `json:"pre"`
	Post SegmentEstimate `json:"post"`

	// LevelImpact is (post mean - pre mean) / |pre mean|. Undefined (and
	// LevelImpactDefined false) when the pre mean is exactly zero.
	LevelImpact        float64 `json:"level_impact"`
	LevelImpactDefined bool    `json:"level_impact_defined"`
	// VolatilityRatio is sqrt(post variance) / sqrt(pre variance).
	VolatilityRatio float64 `json:"volatility_ratio"`

	RHat float64 `json:"r_hat"` // for this boundary's index
	ESS  float64 `json:"ess"`
}

// Result is the engine's complete output for one run.
type Result struct {
	ChangePoints []ChangePoint `json:"change_points"`
	Diagnostics  *Report       `json:"diagnostics"`
	Converged    bool          `json:"converged"`
	Warnings     []string      `json:"warnings,omitempty"`

	Segments int           `json:"segments"`
	Chains   int           `json:"chains"`
	Draws    int           `json:"draws"` // retained per chain
	Warmup   int           `json:"warmup"`
	Seed     int64         `json:"seed"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// summarize reduces the pooled draws to one ChangePoint per boundary:
// posterior mode of the boundary index (ties broken toward the earlier
// index), empirical 2.5/97.5 percentile interval, posterior means and 95%
// intervals for the adjacent segments, and the deterministic impact metrics.
func summarize(s *Series, chains []*Chain, rep *Report, cfg Config) []ChangePoint {
	k := cfg.Segments
	pooled := len(chains) * len(chains[0].Bounds)

	out := make([]ChangePoint, 0, k-1)
	for i := 0; i < k-1; i++ {
		idxDraws := make([]int, 0, pooled)
		for _, c := range chains {
			for _, b := range c.Bounds {
				idxDraws = append(idxDraws, b[i])
			}
		}
		mode := modeEarliest(idxDraws)
		sort.Ints(idxDraws)
		lo := idxDraws[quantileIndex(len(idxDraws), 0.025)]
		hi := idxDraws[quantileIndex(len(idxDraws), 0.975)]

		cp := ChangePoint{
			Index:     mode,
			Date:      s.Date(mode),
			IndexLow:  lo,
			IndexHigh: hi,
			DateLow:   s.Date(lo),
			DateHigh:  s.Date(hi),
			Pre:       summarizeSegment(chains, i),
			Post:      summarizeSegment(chains, i+1),
		}
		cp.Pre.Length, cp.Post.Length = segmentLengths(s.Len(), modeBounds(chains, k), i)

		if cp.Pre.Mean != 0 {
			cp.LevelImpact = (cp.Post.Mean - cp.Pre.Mean) / math.Abs(cp.Pre.Mean)
			cp.LevelImpactDefined = true
		}
		cp.VolatilityRatio = math.Sqrt(cp.Post.Variance) / math.Sqrt(cp.Pre.Variance)

		if q, ok := rep.Get(boundaryQuantity(i)); ok {
			cp.RHat = q.RHat
			cp.ESS = q.ESS
		}
		out = append(out, cp)
	}
	return out
}

func summarizeSegment(chains []*Chain, j int) SegmentEstimate {
	var means, vars []float64
	for _, c := range chains {
		for d := range c.Means {
			means = append(means, c.Means[d][j])
			vars = append(vars, c.Vars[d][j])
		}
	}
	sort.Float64s(means)
	sort.Float64s(vars)
	return SegmentEstimate{
		Mean:         meanOf(means),
		MeanLow:      means[quantileIndex(len(means), 0.025)],
		MeanHigh:     means[quantileIndex(len(means), 0.975)],
		Variance:     meanOf(vars),
		VarianceLow:  vars[quantileIndex(len(vars), 0.025)],
		VarianceHigh: vars[quantileIndex(len(vars), 0.975)],
	}
}

// modeBounds returns the per-boundary posterior modes, which together form
// the point-estimate partition used for segment lengths.
func modeBounds(chains []*Chain, k int) []int {
	out := make([]int, k-1)
	for i := 0; i < k-1; i++ {
		draws := make([]int, 0, len(chains)*len(chains[0].Bounds))
		for _, c := range chains {
			for _, b := range c.Bounds {
				draws = append(draws, b[i])
			}
		}
		out[i] = modeEarliest(draws)
	}
	return out
}

func segmentLengths(n int, bounds []int, i int) (pre, post int) {
	lo := 0
	if i > 0 {
		lo = bounds[i-1]
	}
	hi := n
	if i+1 < len(bounds) {
		hi = bounds[i+1]
	}
	return bounds[i] - lo, hi - bounds[i]
}

// modeEarliest returns the most frequent value; ties break toward the
// smaller (earlier) index.
func modeEarliest(xs []int) int {
	counts := make(map[int]int, 64)
	for _, x := range xs {
		counts[x]++
	}
	best, bestN := 0, -1
	for x, n := range counts {
		if n > bestN || (n == bestN && x < best) {
			best, bestN = x, n
		}
	}
	return best
}

// quantileIndex maps a probability to an order-statistic index over m
// sorted draws.
func quantileIndex(m int, q float64) int {
	i := int(math.Round(q * float64(m-1)))
	if i < 0 {
		i = 0
	}
	if i >= m {
		i = m - 1
	}
	return i
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
