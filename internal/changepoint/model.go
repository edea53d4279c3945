package changepoint

import (
	"fmt"
	"math"
	"math/rand"
)

const log2Pi = 1.8378770664093453

// model is the generative regime model: K contiguous segments, each with its
// own Normal(mean, variance), a discrete uniform prior over feasible ordered
// boundaries, a diffuse Normal prior on segment means and a weakly
// informative Normal prior on log-variances. Segments are conditionally
// independent given the partition.
type model struct {
	series *Series
	n      int
	k      int
	minLen int

	// prefix sums for O(1) segment likelihood terms
	cum  []float64
	cum2 []float64

	priorMean   float64 // mean prior center: data mean
	priorMeanSD float64 // mean prior sd: 10x data sd
	priorLogVar float64 // log-variance prior center: log data variance
	priorLVarSD float64

	// init dispersion for chain starting points
	initMeanSD float64
	initLVarSD float64
}

func newModel(s *Series, cfg Config) (*model, error) {
	if err := cfg.validate(s.Len()); err != nil {
		return nil, err
	}
	dataVar := s.variance()
	if dataVar == 0 {
		return nil, fmt.Errorf("%w: series is constant (zero variance), no regime structure is estimable",
			ErrSamplerDivergence)
	}

	n := s.Len()
	m := &model{
		series: s,
		n:      n,
		k:      cfg.Segments,
		minLen: cfg.MinSegmentLength,
		cum:    make([]float64, n+1),
		cum2:   make([]float64, n+1),
	}
	for i := 0; i < n; i++ {
		v := s.Value(i)
		m.cum[i+1] = m.cum[i] + v
		m.cum2[i+1] = m.cum2[i] + v*v
	}

	sd := math.Sqrt(dataVar)
	m.priorMean = s.mean()
	m.priorMeanSD = 10 * sd
	m.priorLogVar = math.Log(dataVar)
	m.priorLVarSD = 2.0
	m.initMeanSD = sd
	m.initLVarSD = 0.5
	return m, nil
}

// segmentLogLik is the Normal log-likelihood of observations [lo, hi) under
// (mu, exp(logVar)), computed from prefix sums.
func (m *model) segmentLogLik(lo, hi int, mu, logVar float64) float64 {
	cnt := float64(hi - lo)
	sum := m.cum[hi] - m.cum[lo]
	sum2 := m.cum2[hi] - m.cum2[lo]
	// sum (x - mu)^2 = sum x^2 - 2 mu sum x + cnt mu^2
	ss := sum2 - 2*mu*sum + cnt*mu*mu
	return -0.5*cnt*(log2Pi+logVar) - 0.5*math.Exp(-logVar)*ss
}

func (m *model) logPriorMean(mu float64) float64 {
	d := (mu - m.priorMean) / m.priorMeanSD
	return -0.5 * d * d
}

func (m *model) logPriorLogVar(lv float64) float64 {
	d := (lv - m.priorLogVar) / m.priorLVarSD
	return -0.5 * d * d
}

// draw is one complete posterior sample: an ordered partition and
// per-segment parameters. bounds[i] is the first index of segment i+1.
type draw struct {
	bounds  []int
	means   []float64
	logVars []float64
}

// segmentRange returns the [lo, hi) index range of segment j under bounds.
func (m *model) segmentRange(bounds []int, j int) (int, int) {
	lo, hi := 0, m.n
	if j > 0 {
		lo = bounds[j-1]
	}
	if j < len(bounds) {
		hi = bounds[j]
	}
	return lo, hi
}

// boundaryRange returns the feasible positions for boundary i given its
// neighbors, honoring the minimum segment length on both sides.
func (m *model) boundaryRange(bounds []int, i int) (int, int) {
	lo := m.minLen
	if i > 0 {
		lo = bounds[i-1] + m.minLen
	}
	hi := m.n - m.minLen
	if i < len(bounds)-1 {
		hi = bounds[i+1] - m.minLen
	}
	return lo, hi
}

// initDraw produces an independent, overdispersed starting point for one
// chain: boundaries sampled uniformly over feasible positions left to right,
// parameters around the data-level prior centers.
func (m *model) initDraw(rng *rand.Rand) draw {
	k := m.k
	d := draw{
		bounds:  make([]int, k-1),
		means:   make([]float64, k),
		logVars: make([]float64, k),
	}
	prev := 0
	for i := 0; i < k-1; i++ {
		lo := prev + m.minLen
		hi := m.n - (k-1-i)*m.minLen
		d.bounds[i] = lo + rng.Intn(hi-lo+1)
		prev = d.bounds[i]
	}
	for j := 0; j < k; j++ {
		d.means[j] = m.priorMean + m.initMeanSD*rng.NormFloat64()
		d.logVars[j] = m.priorLogVar + m.initLVarSD*rng.NormFloat64()
	}
	return d
}
