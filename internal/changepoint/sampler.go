package changepoint

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Chain holds the retained posterior draws of one independent sampling run.
// Draw d has boundaries Bounds[d], segment means Means[d] and segment
// variances Vars[d]. Warm-up draws are discarded and never stored.
type Chain struct {
	Seed         int64
	Bounds       [][]int
	Means        [][]float64
	Vars         [][]float64
	AcceptParams float64 // post-warmup acceptance rate, continuous updates
	AcceptBounds float64 // post-warmup acceptance rate, boundary updates (diagnostic only)
}

// Option configures optional sampler behavior.
type Option func(*options)

type options struct {
	progress func(chain, completed, total int)
	window   int
}

// WithProgress registers a callback invoked periodically from each chain
// goroutine with (chain index, completed iterations, total iterations).
// The callback must be safe for concurrent use.
func WithProgress(fn func(chain, completed, total int)) Option {
	return func(o *options) { o.progress = fn }
}

// WithBoundaryWindow overrides the half-width of the symmetric discrete
// proposal for boundary moves. Defaults to max(2, n/50).
func WithBoundaryWindow(w int) Option {
	return func(o *options) {
		if w > 0 {
			o.window = w
		}
	}
}

const (
	adaptBatch       = 50
	progressInterval = 100
)

// sample runs cfg.Chains independent Metropolis-within-Gibbs chains in
// parallel, one goroutine per chain, joining at a single barrier. Chains
// share only the read-only model; each owns its generator and draw buffers.
func sample(ctx context.Context, m *model, cfg Config, opt options) ([]*Chain, error) {
	if opt.window == 0 {
		opt.window = m.n / 50
		if opt.window < 2 {
			opt.window = 2
		}
	}

	base := cfg.Seed
	if base == 0 {
		// Documented: without an explicit seed runs are not reproducible.
		base = time.Now().UnixNano()
	}

	chains := make([]*Chain, cfg.Chains)
	errs := make([]error, cfg.Chains)
	var wg sync.WaitGroup
	for c := 0; c < cfg.Chains; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			chains[c], errs[c] = runChain(ctx, m, cfg, c, cfg.chainSeed(base, c), opt)
		}(c)
	}
	wg.Wait()

	for c, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", c, err)
		}
	}
	return chains, nil
}

// runChain executes one chain: warm-up with step-size adaptation, then
// cfg.Draws retained draws. Cancellation aborts the whole chain; partial
// draws are discarded.
func runChain(ctx context.Context, m *model, cfg Config, chainIdx int, seed int64, opt options) (*Chain, error) {
	rng := rand.New(rand.NewSource(seed))
	cur := m.initDraw(rng)
	k := m.k

	meanStep := make([]float64, k)
	lvarStep := make([]float64, k)
	for j := 0; j < k; j++ {
		meanStep[j] = m.initMeanSD / 2
		lvarStep[j] = 0.5
	}

	win := make([]int, k-1)
	for i := range win {
		win[i] = opt.window
	}

	total := cfg.Warmup + cfg.Draws
	out := &Chain{
		Seed:   seed,
		Bounds: make([][]int, 0, cfg.Draws),
		Means:  make([][]float64, 0, cfg.Draws),
		Vars:   make([][]float64, 0, cfg.Draws),
	}

	// post-warmup acceptance counters
	var accParams, totParams, accBounds, totBounds int
	// per-parameter warm-up adaptation counters, reset every adaptBatch
	batchAccMean := make([]int, k)
	batchAccLVar := make([]int, k)
	batchAccBound := make([]int, k-1)

	for it := 0; it < total; it++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		warm := it < cfg.Warmup

		// (a) continuous step: random-walk Metropolis on each segment's
		// mean and log-variance, conditional on the current partition.
		for j := 0; j < k; j++ {
			lo, hi := m.segmentRange(cur.bounds, j)

			prop := cur.means[j] + meanStep[j]*rng.NormFloat64()
			logR := m.segmentLogLik(lo, hi, prop, cur.logVars[j]) + m.logPriorMean(prop) -
				m.segmentLogLik(lo, hi, cur.means[j], cur.logVars[j]) - m.logPriorMean(cur.means[j])
			if metropolisAccept(rng, logR) {
				cur.means[j] = prop
				if warm {
					batchAccMean[j]++
				} else {
					accParams++
				}
			}
			if !warm {
				totParams++
			}

			propLV := cur.logVars[j] + lvarStep[j]*rng.NormFloat64()
			logR = m.segmentLogLik(lo, hi, cur.means[j], propLV) + m.logPriorLogVar(propLV) -
				m.segmentLogLik(lo, hi, cur.means[j], cur.logVars[j]) - m.logPriorLogVar(cur.logVars[j])
			if metropolisAccept(rng, logR) {
				cur.logVars[j] = propLV
				if warm {
					batchAccLVar[j]++
				} else {
					accParams++
				}
			}
			if !warm {
				totParams++
			}
		}

		// (b) discrete step: symmetric window proposal for each boundary,
		// accepted via the Metropolis ratio of the two adjacent segments.
		// The uniform partition prior cancels inside the feasible region;
		// infeasible proposals have zero prior mass and are rejected.
		for i := 0; i < k-1; i++ {
			if !warm {
				totBounds++
			}
			delta := rng.Intn(2*win[i]) + 1
			if delta > win[i] {
				delta = win[i] - delta // maps to -1..-win[i]
			}
			prop := cur.bounds[i] + delta
			lo, hi := m.boundaryRange(cur.bounds, i)
			if prop < lo || prop > hi {
				continue
			}
			segLo, _ := m.segmentRange(cur.bounds, i)
			_, segHi := m.segmentRange(cur.bounds, i+1)
			b := cur.bounds[i]
			curLL := m.segmentLogLik(segLo, b, cur.means[i], cur.logVars[i]) +
				m.segmentLogLik(b, segHi, cur.means[i+1], cur.logVars[i+1])
			newLL := m.segmentLogLik(segLo, prop, cur.means[i], cur.logVars[i]) +
				m.segmentLogLik(prop, segHi, cur.means[i+1], cur.logVars[i+1])
			if metropolisAccept(rng, newLL-curLL) {
				cur.bounds[i] = prop
				if warm {
					batchAccBound[i]++
				} else {
					accBounds++
				}
			}
		}

		// warm-up only: adapt continuous step sizes toward ~0.44 acceptance
		// and shrink boundary windows whose proposals rarely land.
		if warm && (it+1)%adaptBatch == 0 {
			for j := 0; j < k; j++ {
				meanStep[j] = adaptStep(meanStep[j], batchAccMean[j])
				lvarStep[j] = adaptStep(lvarStep[j], batchAccLVar[j])
				batchAccMean[j] = 0
				batchAccLVar[j] = 0
			}
			for i := 0; i < k-1; i++ {
				win[i] = adaptWindow(win[i], batchAccBound[i], m.n)
				batchAccBound[i] = 0
			}
		}

		if !warm {
			out.Bounds = append(out.Bounds, append([]int(nil), cur.bounds...))
			out.Means = append(out.Means, append([]float64(nil), cur.means...))
			vars := make([]float64, k)
			for j := 0; j < k; j++ {
				vars[j] = math.Exp(cur.logVars[j])
			}
			out.Vars = append(out.Vars, vars)
		}

		if opt.progress != nil && ((it+1)%progressInterval == 0 || it+1 == total) {
			opt.progress(chainIdx, it+1, total)
		}
	}

	out.AcceptParams = rate(accParams, totParams)
	out.AcceptBounds = rate(accBounds, totBounds)

	// The band guards against proposal/prior mismatch, a continuous-proposal
	// pathology. It must not apply to the discrete boundary step: on sharply
	// separated regimes a chain locks onto the true boundary and rejects every
	// windowed move, so a zero boundary rate is the healthy outcome there.
	// Mode-locked boundaries are certified by their R-hat/ESS instead.
	if out.AcceptParams < cfg.AcceptMin || out.AcceptParams > cfg.AcceptMax {
		return nil, fmt.Errorf("%w: continuous-step acceptance rate %.3f outside healthy band [%.2f, %.2f]",
			ErrSamplerDivergence, out.AcceptParams, cfg.AcceptMin, cfg.AcceptMax)
	}
	return out, nil
}

func metropolisAccept(rng *rand.Rand, logRatio float64) bool {
	if logRatio >= 0 {
		return true
	}
	return math.Log(rng.Float64()) < logRatio
}

// adaptStep nudges a random-walk step size toward the 0.44 acceptance rate
// that is optimal for one-dimensional Metropolis updates.
func adaptStep(step float64, accepted int) float64 {
	r := float64(accepted) / adaptBatch
	switch {
	case r > 0.5:
		return step * 1.2
	case r < 0.3:
		return step * 0.8
	default:
		return step
	}
}

// adaptWindow resizes a boundary proposal window toward a 0.2-0.5
// acceptance rate, clamped to [1, n/4].
func adaptWindow(w, accepted, n int) int {
	r := float64(accepted) / adaptBatch
	switch {
	case r > 0.5:
		w = w*3/2 + 1
	case r < 0.2:
		w = w * 3 / 5
	}
	if w < 1 {
		w = 1
	}
	if max := n / 4; w > max && max >= 1 {
		w = max
	}
	return w
}

func rate(acc, tot int) float64 {
	if tot == 0 {
		return 0
	}
	return float64(acc) / float64(tot)
}
