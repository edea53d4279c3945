// Package changepoint implements Bayesian change-point detection for
// univariate time series: a fixed-K regime model with Normal segments, an
// explicit Metropolis-within-Gibbs posterior sampler running independent
// parallel chains, split-R-hat/ESS convergence diagnostics, and a posterior
// summarizer producing the stable ChangePoint result contract.
//
// The engine estimates where and how much the series' mean/variance regime
// shifts; it makes no causal claims about why.
package changepoint

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Detect runs one full detection: model construction, posterior sampling,
// convergence diagnostics, and summarization. Fatal conditions return
// ErrInvalidInput, ErrInvalidConfiguration or ErrSamplerDivergence; a failed
// convergence threshold is a soft failure surfaced through Result.Converged
// and Result.Warnings, never an error.
func Detect(ctx context.Context, s *Series, cfg Config, opts ...Option) (*Result, error) {
	start := time.Now()

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	m, err := newModel(s, cfg)
	if err != nil {
		return nil, err
	}

	var opt options
	for _, o := range opts {
		o(&opt)
	}

	chains, err := sample(ctx, m, cfg, opt)
	if err != nil {
		return nil, err
	}

	rep := diagnose(chains, cfg)
	cps := summarize(s, chains, rep, cfg)

	res := &Result{
		ChangePoints: cps,
		Diagnostics:  rep,
		Converged:    rep.Converged,
		Segments:     cfg.Segments,
		Chains:       cfg.Chains,
		Draws:        cfg.Draws,
		Warmup:       cfg.Warmup,
		Seed:         cfg.Seed,
		Elapsed:      time.Since(start),
	}
	if !rep.Converged {
		res.Warnings = append(res.Warnings, "not converged: "+strings.Join(rep.Failures, "; "))
	}
	return res, nil
}
