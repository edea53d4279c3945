package changepoint

import (
	"fmt"
	"math"
)

// QuantityDiagnostic holds the convergence statistics of one monitored
// posterior quantity.
type QuantityDiagnostic struct {
	Name string  `json:"name"`
	RHat float64 `json:"r_hat"`
	ESS  float64 `json:"ess"`
}

// Report certifies how well the chains agree on the posterior. It gates
// softly: a failed threshold sets Converged=false and records the failure,
// it never aborts the run.
type Report struct {
	Quantities []QuantityDiagnostic `json:"quantities"`
	Converged  bool                 `json:"converged"`
	Failures   []string             `json:"failures,omitempty"`
}

// Get returns the diagnostic entry for a named quantity.
func (r *Report) Get(name string) (QuantityDiagnostic, bool) {
	for _, q := range r.Quantities {
		if q.Name == name {
			return q, true
		}
	}
	return QuantityDiagnostic{}, false
}

func boundaryQuantity(i int) string { return fmt.Sprintf("boundary[%d]", i) }

// diagnose computes split-R-hat and effective sample size for every
// monitored quantity: each boundary index, each segment mean, each segment
// variance.
func diagnose(chains []*Chain, cfg Config) *Report {
	k := cfg.Segments
	rep := &Report{}

	monitor := func(name string, extract func(c *Chain, d int) float64) {
		seqs := make([][]float64, len(chains))
		for ci, c := range chains {
			seq := make([]float64, len(c.Bounds))
			for d := range seq {
				seq[d] = extract(c, d)
			}
			seqs[ci] = seq
		}
		q := QuantityDiagnostic{Name: name, RHat: splitRHat(seqs), ESS: effectiveSampleSize(seqs)}
		rep.Quantities = append(rep.Quantities, q)
		if q.RHat > cfg.MaxRHat {
			rep.Failures = append(rep.Failures,
				fmt.Sprintf("%s: r_hat %.4f exceeds %.4f", name, q.RHat, cfg.MaxRHat))
		}
		if q.ESS < cfg.MinESS {
			rep.Failures = append(rep.Failures,
				fmt.Sprintf("%s: ess %.0f below %.0f", name, q.ESS, cfg.MinESS))
		}
	}

	for i := 0; i < k-1; i++ {
		i := i
		monitor(boundaryQuantity(i), func(c *Chain, d int) float64 { return float64(c.Bounds[d][i]) })
	}
	for j := 0; j < k; j++ {
		j := j
		monitor(fmt.Sprintf("segment[%d].mean", j), func(c *Chain, d int) float64 { return c.Means[d][j] })
		monitor(fmt.Sprintf("segment[%d].variance", j), func(c *Chain, d int) float64 { return c.Vars[d][j] })
	}

	rep.Converged = len(rep.Failures) == 0
	return rep
}

// splitRHat is the Gelman-Rubin potential scale reduction statistic computed
// on split chains: each chain contributes its first and second half as
// separate sequences, so within-chain drift also inflates the statistic.
func splitRHat(seqs [][]float64) float64 {
	var halves [][]float64
	for _, s := range seqs {
		m := len(s) / 2
		if m < 2 {
			return math.NaN()
		}
		halves = append(halves, s[:m], s[len(s)-m:])
	}

	m := len(halves[0])
	means := make([]float64, len(halves))
	vars := make([]float64, len(halves))
	for i, h := range halves {
		means[i], vars[i] = meanVariance(h)
	}

	w := 0.0
	for _, v := range vars {
		w += v
	}
	w /= float64(len(vars))

	_, varOfMeans := meanVariance(means)
	b := float64(m) * varOfMeans

	if w == 0 {
		if b == 0 {
			return 1 // all sequences constant and identical
		}
		return math.Inf(1)
	}
	varPlus := float64(m-1)/float64(m)*w + b/float64(m)
	return math.Sqrt(varPlus / w)
}

// effectiveSampleSize estimates the number of independent-equivalent draws
// across all chains, correcting for within-chain autocorrelation using the
// initial positive sequence of paired autocorrelations.
func effectiveSampleSize(seqs [][]float64) float64 {
	c := len(seqs)
	d := len(seqs[0])
	if d < 4 {
		return math.NaN()
	}

	means := make([]float64, c)
	vars := make([]float64, c)
	for i, s := range seqs {
		means[i], vars[i] = meanVariance(s)
	}
	w := 0.0
	for _, v := range vars {
		w += v
	}
	w /= float64(c)

	_, varOfMeans := meanVariance(means)
	b := float64(d) * varOfMeans
	varPlus := float64(d-1)/float64(d)*w + b/float64(d)
	if varPlus == 0 {
		return float64(c * d) // constant quantity: every draw is "independent"
	}

	maxLag := d - 1
	if maxLag > 500 {
		maxLag = 500
	}

	// combined autocorrelation at each lag, averaged over chains
	rho := func(t int) float64 {
		acov := 0.0
		for i, s := range seqs {
			sum := 0.0
			for j := 0; j+t < d; j++ {
				sum += (s[j] - means[i]) * (s[j+t] - means[i])
			}
			acov += sum / float64(d)
		}
		acov /= float64(c)
		return 1 - (w-acov)/varPlus
	}

	// Geyer: sum paired autocorrelations while the pair sums stay positive
	// and monotonically non-increasing.
	tau := 1.0
	prevPair := math.Inf(1)
	for t := 1; t+1 <= maxLag; t += 2 {
		pair := rho(t) + rho(t+1)
		if pair <= 0 {
			break
		}
		if pair > prevPair {
			pair = prevPair
		}
		tau += 2 * pair
		prevPair = pair
	}

	ess := float64(c*d) / tau
	if ess > float64(c*d) {
		ess = float64(c * d)
	}
	return ess
}

func meanVariance(xs []float64) (float64, float64) {
	n := float64(len(xs))
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / n
	if len(xs) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, ss / (n - 1)
}
