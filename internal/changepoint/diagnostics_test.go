package changepoint

import (
	"math"
	"math/rand"
	"testing"
)

// iidSequences builds c sequences of d iid Normal(mean, 1) draws,
// exercising the diagnostics without running the sampler.
func iidSequences(c, d int, mean float64, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, c)
	for i := range out {
		seq := make([]float64, d)
		for j := range seq {
			seq[j] = mean + rng.NormFloat64()
		}
		out[i] = seq
	}
	return out
}

func TestSplitRHatAgreeingChains(t *testing.T) {
	seqs := iidSequences(4, 1000, 0, 1)
	r := splitRHat(seqs)
	if math.IsNaN(r) || r > 1.01 {
		t.Fatalf("r_hat = %v for agreeing iid chains, want < 1.01", r)
	}
}

func TestSplitRHatDisagreeingChains(t *testing.T) {
	seqs := iidSequences(4, 1000, 0, 1)
	for j := range seqs[0] {
		seqs[0][j] += 5 // one chain stuck in a different mode
	}
	r := splitRHat(seqs)
	if r < 1.5 {
		t.Fatalf("r_hat = %v for disagreeing chains, want well above 1", r)
	}
}

func TestEffectiveSampleSizeIID(t *testing.T) {
	seqs := iidSequences(4, 1000, 0, 2)
	ess := effectiveSampleSize(seqs)
	if ess < 2000 || ess > 4000 {
		t.Fatalf("ess = %v for 4000 iid draws, want near 4000", ess)
	}
}

func TestEffectiveSampleSizeAutocorrelated(t *testing.T) {
	// AR(1) with phi=0.9 has tau = (1+phi)/(1-phi) = 19.
	rng := rand.New(rand.NewSource(3))
	seqs := make([][]float64, 4)
	for i := range seqs {
		seq := make([]float64, 2000)
		x := 0.0
		for j := range seq {
			x = 0.9*x + rng.NormFloat64()
			seq[j] = x
		}
		seqs[i] = seq
	}
	ess := effectiveSampleSize(seqs)
	iid := effectiveSampleSize(iidSequences(4, 2000, 0, 4))
	if ess >= iid/2 {
		t.Fatalf("ess = %v for AR(1) chains, want far below iid ess %v", ess, iid)
	}
}

func TestEffectiveSampleSizeMonotoneInDraws(t *testing.T) {
	full := iidSequences(4, 800, 0, 5)
	short := make([][]float64, len(full))
	for i, s := range full {
		short[i] = s[:400]
	}
	if e1, e2 := effectiveSampleSize(short), effectiveSampleSize(full); e2 < e1 {
		t.Fatalf("ess decreased from %v to %v when doubling draws", e1, e2)
	}
}

func TestEffectiveSampleSizeConstant(t *testing.T) {
	seqs := make([][]float64, 2)
	for i := range seqs {
		seqs[i] = make([]float64, 100) // all zero
	}
	if ess := effectiveSampleSize(seqs); ess != 200 {
		t.Fatalf("ess = %v for constant chains, want 200", ess)
	}
	if r := splitRHat(seqs); r != 1 {
		t.Fatalf("r_hat = %v for constant identical chains, want 1", r)
	}
}

func TestDiagnoseGatesSoftly(t *testing.T) {
	chains := []*Chain{chainFromSequences(iidSequences(1, 500, 0, 6)[0]), chainFromSequences(iidSequences(1, 500, 4, 7)[0])}
	cfg := testConfig()
	cfg.Draws = 500
	rep := diagnose(chains, cfg)
	if rep.Converged {
		t.Fatalf("expected Converged=false for disagreeing chains")
	}
	if len(rep.Failures) == 0 {
		t.Fatalf("expected recorded failures")
	}
	if _, ok := rep.Get(boundaryQuantity(0)); !ok {
		t.Fatalf("boundary quantity missing from report")
	}
}

// chainFromSequences fabricates a 2-segment chain whose boundary tracks the
// given values and whose parameters stay fixed.
func chainFromSequences(vals []float64) *Chain {
	c := &Chain{}
	for _, v := range vals {
		c.Bounds = append(c.Bounds, []int{100 + int(math.Abs(v)*3)})
		c.Means = append(c.Means, []float64{v, v + 1})
		c.Vars = append(c.Vars, []float64{1 + math.Abs(v), 2})
	}
	return c
}
