package usecase

import (
	"sync"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/changepoint"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"

	"github.com/google/uuid"
)

// RunManager is the in-memory registry of analysis runs. It also fans out
// progress events to websocket subscribers.
type RunManager struct {
	mu   sync.RWMutex
	runs map[string]*models.AnalysisRun
	subs map[string]map[chan models.RunProgress]struct{}
}

func NewRunManager() *RunManager {
	return &RunManager{
		runs: make(map[string]*models.AnalysisRun),
		subs: make(map[string]map[chan models.RunProgress]struct{}),
	}
}

// Create registers a new pending run for the given request.
func (m *RunManager) Create(req models.AnalysisRequest) *models.AnalysisRun {
	run := &models.AnalysisRun{
		ID:          uuid.NewString(),
		Status:      models.RunPending,
		Request:     req,
		SubmittedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()
	return run
}

// Get returns a copy of the run, or nil if unknown.
func (m *RunManager) Get(id string) *models.AnalysisRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil
	}
	cp := *run
	return &cp
}

// SetRunning marks the run as started.
func (m *RunManager) SetRunning(id string) {
	now := time.Now().UTC()
	m.mu.Lock()
	if run, ok := m.runs[id]; ok {
		run.Status = models.RunRunning
		run.StartedAt = &now
	}
	m.mu.Unlock()
	m.publish(models.RunProgress{RunID: id, Status: models.RunRunning, Timestamp: now})
}

// SetResult marks the run as succeeded with its result.
func (m *RunManager) SetResult(id string, result *changepoint.Result) {
	now := time.Now().UTC()
	m.mu.Lock()
	if run, ok := m.runs[id]; ok {
		run.Status = models.RunSucceeded
		run.FinishedAt = &now
		run.Result = result
	}
	m.mu.Unlock()
	m.publish(models.RunProgress{RunID: id, Status: models.RunSucceeded, Timestamp: now})
	m.closeSubs(id)
}

// SetFailed marks the run as failed.
func (m *RunManager) SetFailed(id string, err error) {
	now := time.Now().UTC()
	m.mu.Lock()
	if run, ok := m.runs[id]; ok {
		run.Status = models.RunFailed
		run.FinishedAt = &now
		if err != nil {
			run.Error = err.Error()
		}
	}
	m.mu.Unlock()
	m.publish(models.RunProgress{RunID: id, Status: models.RunFailed, Timestamp: now})
	m.closeSubs(id)
}

// Progress publishes a sampler progress event for the run.
func (m *RunManager) Progress(id string, chain, completed, total int) {
	m.publish(models.RunProgress{
		RunID:     id,
		Status:    models.RunRunning,
		Chain:     chain,
		Completed: completed,
		Total:     total,
		Timestamp: time.Now().UTC(),
	})
}

// Subscribe registers a progress listener for the run. The returned cancel
// function must be called when the subscriber goes away. The channel is
// closed when the run reaches a terminal state; subscribing to an already
// terminal run yields a closed channel immediately.
func (m *RunManager) Subscribe(id string) (<-chan models.RunProgress, func()) {
	ch := make(chan models.RunProgress, 16)
	m.mu.Lock()
	if run, ok := m.runs[id]; ok && (run.Status == models.RunSucceeded || run.Status == models.RunFailed) {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if m.subs[id] == nil {
		m.subs[id] = make(map[chan models.RunProgress]struct{})
	}
	m.subs[id][ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if set, ok := m.subs[id]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *RunManager) publish(p models.RunProgress) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs[p.RunID] {
		// drop events for slow subscribers instead of blocking the sampler
		select {
		case ch <- p:
		default:
		}
	}
}

func (m *RunManager) closeSubs(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs[id] {
		close(ch)
	}
	delete(m.subs, id)
}
