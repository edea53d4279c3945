package repository

import (
	"context"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/changepoint"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
)

// PriceSource loads the full price history from some backing medium.
type PriceSource interface {
	Load(ctx context.Context) ([]models.PricePoint, error)
}

// PriceStore persists and queries daily price observations.
type PriceStore interface {
	StorePrices(ctx context.Context, points []models.PricePoint) error
	QueryPrices(ctx context.Context, from, to time.Time, limit int) ([]models.PricePoint, error)
}

// ChangePointStore persists detected change points per analysis run.
type ChangePointStore interface {
	StoreResult(ctx context.Context, runID string, result *changepoint.Result) error
	QueryChangePoints(ctx context.Context, limit int) ([]StoredChangePoint, error)
}

// StoredChangePoint is a persisted change point row joined with its run.
type StoredChangePoint struct {
	RunID           string    `json:"run_id"`
	Date            time.Time `json:"date"`
	Index           int       `json:"index"`
	LevelImpact     float64   `json:"level_impact"`
	VolatilityRatio float64   `json:"volatility_ratio"`
	RHat            float64   `json:"r_hat"`
	ESS             float64   `json:"ess"`
	DetectedAt      time.Time `json:"detected_at"`
}

// Publisher broadcasts completed analysis runs to downstream consumers.
type Publisher interface {
	PublishResult(ctx context.Context, run *models.AnalysisRun) error
	Close() error
}
