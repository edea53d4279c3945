package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	domrepo "github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/repository"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/services/features"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
)

// PriceService owns the in-memory price history. The history is loaded once
// from the source at startup and optionally mirrored into the price store.
type PriceService struct {
	source domrepo.PriceSource
	store  domrepo.PriceStore // optional
	l      *applogger.Logger

	mu     sync.RWMutex
	points []models.PricePoint
}

func NewPriceService(source domrepo.PriceSource, store domrepo.PriceStore, l *applogger.Logger) *PriceService {
	return &PriceService{source: source, store: store, l: l}
}

// Load reads the history from the source, caches it in memory and mirrors it
// into the store when one is configured.
func (s *PriceService) Load(ctx context.Context) error {
	points, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}

	s.mu.Lock()
	s.points = points
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.StorePrices(ctx, points); err != nil {
			// storage mirror is best effort, the in-memory copy is primary
			s.l.Warn("mirror prices to store failed", applogger.Error(err))
		}
	}

	s.l.Info("price history loaded",
		applogger.Int("rows", len(points)),
		applogger.String("from", points[0].Date.Format("2006-01-02")),
		applogger.String("to", points[len(points)-1].Date.Format("2006-01-02")))
	return nil
}

// Ingest appends new observations, keeping the history deduplicated and
// sorted. Used by the Kafka price consumer.
func (s *PriceService) Ingest(ctx context.Context, incoming []models.PricePoint) error {
	if len(incoming) == 0 {
		return nil
	}

	s.mu.Lock()
	byDate := make(map[time.Time]float64, len(s.points)+len(incoming))
	for _, p := range s.points {
		byDate[p.Date] = p.Price
	}
	for _, p := range incoming {
		if p.Price <= 0 {
			continue
		}
		byDate[p.Date.UTC()] = p.Price
	}
	merged := make([]models.PricePoint, 0, len(byDate))
	for date, price := range byDate {
		merged = append(merged, models.PricePoint{Date: date, Price: price})
	}
	sortPoints(merged)
	s.points = merged
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.StorePrices(ctx, incoming); err != nil {
			return fmt.Errorf("store ingested prices: %w", err)
		}
	}
	return nil
}

// Range returns the points within [from, to], capped at limit when limit > 0.
func (s *PriceService) Range(from, to time.Time, limit int) []models.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PricePoint, 0, len(s.points))
	for _, p := range s.points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Features computes the derived series for the given window.
func (s *PriceService) Features(from, to time.Time) *models.PriceFeatures {
	return features.Extract(s.Range(from, to, 0))
}

// Len returns the number of points held.
func (s *PriceService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func sortPoints(points []models.PricePoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
}
