package changepoint

import "errors"

// Sentinel errors returned by the engine. Callers match with errors.Is;
// every wrapped message names the violated invariant and the offending values.
var (
	// ErrInvalidConfiguration means no feasible partition exists for the
	// requested segment count and minimum segment length.
	ErrInvalidConfiguration = errors.New("changepoint: invalid configuration")

	// ErrInvalidInput means the observation series violates its invariants
	// (unordered or duplicate dates, non-finite values, empty series).
	ErrInvalidInput = errors.New("changepoint: invalid input")

	// ErrSamplerDivergence means one or more chains behaved pathologically:
	// the post-warmup continuous-step acceptance rate left the configured
	// healthy band, or the series is degenerate (zero variance). The run
	// produced no result; re-running with adjusted parameters is a caller
	// decision.
	ErrSamplerDivergence = errors.New("changepoint: sampler divergence")
)
