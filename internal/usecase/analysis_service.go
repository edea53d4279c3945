package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/changepoint"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	domrepo "github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/repository"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/service/cache"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/metrics"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/queue"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/util"
)

// Queue message type for analysis jobs.
const AnalysisJobType = "analysis.run"

// AnalysisJobPayload is the queue payload for a scheduled run.
type AnalysisJobPayload struct {
	RunID string `json:"run_id"`
}

// AnalysisService schedules and executes change point analyses.
type AnalysisService struct {
	prices    *PriceService
	runs      *RunManager
	store     domrepo.ChangePointStore // optional
	publisher domrepo.Publisher        // optional
	cache     cache.BytesCache
	queue     queue.QueueService // optional, runs inline when absent
	recorder  *metrics.Recorder
	l         *applogger.Logger
	cacheTTL  time.Duration
}

func NewAnalysisService(
	prices *PriceService,
	runs *RunManager,
	store domrepo.ChangePointStore,
	publisher domrepo.Publisher,
	bytesCache cache.BytesCache,
	recorder *metrics.Recorder,
	l *applogger.Logger,
	cacheTTL time.Duration,
) *AnalysisService {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &AnalysisService{
		prices:    prices,
		runs:      runs,
		store:     store,
		publisher: publisher,
		cache:     bytesCache,
		recorder:  recorder,
		l:         l,
		cacheTTL:  cacheTTL,
	}
}

// SetQueue injects the job queue. Wired separately because the queue also
// needs the service registered as its job handler.
func (s *AnalysisService) SetQueue(q queue.QueueService) { s.queue = q }

// Submit registers a run and schedules it for execution. When no queue is
// configured the run executes on a background goroutine.
func (s *AnalysisService) Submit(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisRun, error) {
	run := s.runs.Create(req)

	if s.queue != nil {
		if err := s.queue.PublishMessage(ctx, AnalysisJobType, AnalysisJobPayload{RunID: run.ID}); err != nil {
			s.runs.SetFailed(run.ID, err)
			return nil, fmt.Errorf("enqueue analysis: %w", err)
		}
	} else {
		go func() {
			if err := s.Execute(context.Background(), run.ID); err != nil {
				s.l.Error("inline analysis failed",
					applogger.String("run_id", run.ID),
					applogger.Error(err))
			}
		}()
	}

	s.l.Info("analysis submitted",
		applogger.String("run_id", run.ID),
		applogger.Int("segments", req.Segments),
		applogger.Int("chains", req.Chains),
		applogger.Int("draws", req.Draws))
	return run, nil
}

// Execute runs the full pipeline for a previously submitted run: slice the
// price window, run the sampler, persist, publish and cache the result.
func (s *AnalysisService) Execute(ctx context.Context, runID string) error {
	run := s.runs.Get(runID)
	if run == nil {
		return fmt.Errorf("unknown run %s", runID)
	}

	s.runs.SetRunning(runID)
	start := time.Now()

	result, err := s.detect(ctx, run)
	if err != nil {
		s.runs.SetFailed(runID, err)
		s.recorder.RecordAnalysis("failed")
		s.recorder.RecordRunDuration(time.Since(start))
		return err
	}

	s.runs.SetResult(runID, result)
	if result.Converged {
		s.recorder.RecordAnalysis("succeeded")
	} else {
		s.recorder.RecordAnalysis("not_converged")
		s.recorder.RecordConvergenceFailure()
	}
	s.recorder.RecordRunDuration(time.Since(start))

	s.persist(runID, result)
	s.cacheResult(runID, result)

	s.l.Info("analysis finished",
		applogger.String("run_id", runID),
		applogger.Bool("converged", result.Converged),
		applogger.Int("change_points", len(result.ChangePoints)),
		applogger.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *AnalysisService) detect(ctx context.Context, run *models.AnalysisRun) (*changepoint.Result, error) {
	req := run.Request
	from := util.ParseTimeDefault(req.From, time.Time{})
	to := util.ParseTimeDefault(req.To, time.Time{})

	points := s.prices.Range(from, to, 0)
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no prices in requested window", changepoint.ErrInvalidInput)
	}

	dates := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		dates[i] = p.Date
		values[i] = p.Price
	}
	series, err := changepoint.NewSeries(dates, values)
	if err != nil {
		return nil, err
	}

	cfg := changepoint.Config{
		Segments:         req.Segments,
		MinSegmentLength: req.MinSegmentLength,
		Chains:           req.Chains,
		Draws:            req.Draws,
		Warmup:           req.Warmup,
		Seed:             req.Seed,
	}

	total := req.Draws + req.Warmup
	result, err := changepoint.Detect(ctx, series, cfg,
		changepoint.WithProgress(func(chain, completed, _ int) {
			s.runs.Progress(run.ID, chain, completed, total)
		}))
	if err != nil {
		return nil, err
	}
	s.recorder.RecordDraws(req.Chains * req.Draws)
	return result, nil
}

// persist writes the result to the store and results topic, best effort.
func (s *AnalysisService) persist(runID string, result *changepoint.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.StoreResult(ctx, runID, result); err != nil {
			s.l.Warn("store result failed",
				applogger.String("run_id", runID),
				applogger.Error(err))
		}
	}
	if s.publisher != nil {
		if run := s.runs.Get(runID); run != nil {
			if err := s.publisher.PublishResult(ctx, run); err != nil {
				s.l.Warn("publish result failed",
					applogger.String("run_id", runID),
					applogger.Error(err))
			}
		}
	}
}

func (s *AnalysisService) cacheResult(runID string, result *changepoint.Result) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(result)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.SetBytes(ctx, resultCacheKey(runID), b, s.cacheTTL); err != nil {
		s.l.Warn("cache result failed", applogger.Error(err))
	}
}

// CachedResult returns the cached result JSON for a run, if present.
func (s *AnalysisService) CachedResult(ctx context.Context, runID string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, ok, err := s.cache.GetBytes(ctx, resultCacheKey(runID))
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

// ChangePoints lists persisted change points across runs.
func (s *AnalysisService) ChangePoints(ctx context.Context, limit int) ([]domrepo.StoredChangePoint, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.QueryChangePoints(ctx, limit)
}

func resultCacheKey(runID string) string {
	return "brent:result:" + runID
}

// Name implements queue.Job.
func (s *AnalysisService) Name() string { return "change-point-analysis" }

// Type implements queue.Job.
func (s *AnalysisService) Type() string { return AnalysisJobType }

// Handle implements queue.Job: it resolves the payload and executes the run.
func (s *AnalysisService) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AnalysisJobPayload](payload)
	if err != nil {
		return fmt.Errorf("parse analysis payload: %w", err)
	}
	return s.Execute(ctx, p.RunID)
}

var _ queue.Job = (*AnalysisService)(nil)
