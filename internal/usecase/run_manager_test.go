package usecase

import (
	"testing"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/changepoint"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
)

func TestRunManagerLifecycle(t *testing.T) {
	m := NewRunManager()

	run := m.Create(models.AnalysisRequest{Segments: 2})
	if run.ID == "" {
		t.Fatalf("expected run id")
	}
	if run.Status != models.RunPending {
		t.Fatalf("expected pending, got %s", run.Status)
	}

	m.SetRunning(run.ID)
	got := m.Get(run.ID)
	if got.Status != models.RunRunning || got.StartedAt == nil {
		t.Fatalf("expected running with start time, got %+v", got)
	}

	m.SetResult(run.ID, &changepoint.Result{Converged: true})
	got = m.Get(run.ID)
	if got.Status != models.RunSucceeded || got.Result == nil || got.FinishedAt == nil {
		t.Fatalf("expected succeeded with result, got %+v", got)
	}
}

func TestRunManagerFailed(t *testing.T) {
	m := NewRunManager()
	run := m.Create(models.AnalysisRequest{})

	m.SetFailed(run.ID, changepoint.ErrSamplerDivergence)
	got := m.Get(run.ID)
	if got.Status != models.RunFailed || got.Error == "" {
		t.Fatalf("expected failed with error, got %+v", got)
	}
}

func TestRunManagerGetUnknown(t *testing.T) {
	m := NewRunManager()
	if m.Get("nope") != nil {
		t.Fatalf("expected nil for unknown run")
	}
}

func TestRunManagerSubscribe(t *testing.T) {
	m := NewRunManager()
	run := m.Create(models.AnalysisRequest{})

	ch, cancel := m.Subscribe(run.ID)
	defer cancel()

	m.Progress(run.ID, 1, 100, 3000)

	ev := <-ch
	if ev.Chain != 1 || ev.Completed != 100 || ev.Total != 3000 {
		t.Fatalf("unexpected event %+v", ev)
	}

	m.SetResult(run.ID, &changepoint.Result{})
	// terminal event then channel close
	for ev = range ch {
	}
	if ev.Status != models.RunSucceeded {
		t.Fatalf("expected terminal succeeded event, got %+v", ev)
	}
}

func TestRunManagerSubscribeAfterTerminal(t *testing.T) {
	m := NewRunManager()
	run := m.Create(models.AnalysisRequest{})
	m.SetResult(run.ID, &changepoint.Result{})

	// a subscription racing the terminal transition must not park forever
	ch, cancel := m.Subscribe(run.ID)
	defer cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel, got event")
		}
	default:
		t.Fatalf("channel for terminal run should be closed immediately")
	}
}
