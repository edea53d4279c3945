package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPriceIngestHandlerSingle(t *testing.T) {
	l := testLogger(t)
	prices := NewPriceService(&memorySource{points: shiftedPoints(5, 2)}, nil, l)
	if err := prices.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	rec := metrics.NewWith(prometheus.NewRegistry())
	h := NewPriceIngestHandler("brent.prices", prices, rec, l)

	if h.Topic() != "brent.prices" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}

	if err := h.Handle(context.Background(), []byte(`{"date":"2021-06-01","price":71.5}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if prices.Len() != 6 {
		t.Fatalf("expected 6 points, got %d", prices.Len())
	}
	got := prices.Range(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), 0)
	if len(got) != 1 || got[0].Price != 71.5 {
		t.Fatalf("expected ingested price, got %+v", got)
	}
}

func TestPriceIngestHandlerBatch(t *testing.T) {
	l := testLogger(t)
	prices := NewPriceService(&memorySource{points: shiftedPoints(5, 2)}, nil, l)
	if err := prices.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	rec := metrics.NewWith(prometheus.NewRegistry())
	h := NewPriceIngestHandler("brent.prices", prices, rec, l)

	payload := []byte(`[{"date":"2021-06-01","price":71.5},{"date":"2021-06-02","price":72.1}]`)
	if err := h.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if prices.Len() != 7 {
		t.Fatalf("expected 7 points, got %d", prices.Len())
	}
}

func TestPriceIngestHandlerBadPayload(t *testing.T) {
	l := testLogger(t)
	prices := NewPriceService(&memorySource{points: shiftedPoints(5, 2)}, nil, l)
	if err := prices.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	rec := metrics.NewWith(prometheus.NewRegistry())
	h := NewPriceIngestHandler("brent.prices", prices, rec, l)

	if err := h.Handle(context.Background(), []byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
	if err := h.Handle(context.Background(), []byte(`{"date":"junk","price":1}`)); err == nil {
		t.Fatalf("expected error for invalid date")
	}
}
