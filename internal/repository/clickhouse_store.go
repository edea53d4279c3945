package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/changepoint"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	domrepo "github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/repository"
	pkgch "github.com/Habtu32/brent-oil-change-point-analysis/pkg/clickhouse"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
)

// SchemaStatements returns the idempotent DDL for the analysis tables.
func SchemaStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS brent_prices (
			date Date,
			price Float64
		) ENGINE = ReplacingMergeTree()
		ORDER BY date`,
		`CREATE TABLE IF NOT EXISTS brent_change_points (
			run_id String,
			date Date,
			idx UInt32,
			level_impact Float64,
			volatility_ratio Float64,
			r_hat Float64,
			ess Float64,
			detected_at DateTime
		) ENGINE = MergeTree()
		ORDER BY (detected_at, run_id)`,
	}
}

// CHStore persists prices and change points in ClickHouse.
type CHStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHStore(ch *pkgch.Client) *CHStore {
	return &CHStore{db: ch.DB()}
}

var (
	_ domrepo.PriceStore       = (*CHStore)(nil)
	_ domrepo.ChangePointStore = (*CHStore)(nil)
)

// SetLogger injects a structured logger.
func (s *CHStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHStore) StorePrices(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	// Chunked multi-row VALUES to reduce round-trips.
	const chunkSize = 2000
	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*2)
		for _, p := range points[start:end] {
			values = append(values, "(?, ?)")
			args = append(args, p.Date, p.Price)
		}
		q := fmt.Sprintf("INSERT INTO brent_prices (date, price) VALUES %s", strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store prices: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("prices stored", applogger.Int("rows", len(points)))
	}
	return nil
}

func (s *CHStore) QueryPrices(ctx context.Context, from, to time.Time, limit int) ([]models.PricePoint, error) {
	const q = `
        SELECT date, price
        FROM brent_prices FINAL
        WHERE date >= ? AND date <= ?
        ORDER BY date ASC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, 1024)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHStore) StoreResult(ctx context.Context, runID string, result *changepoint.Result) error {
	if result == nil || len(result.ChangePoints) == 0 {
		return nil
	}
	values := make([]string, 0, len(result.ChangePoints))
	args := make([]interface{}, 0, len(result.ChangePoints)*8)
	now := time.Now().UTC()
	for _, cp := range result.ChangePoints {
		impact := 0.0
		if cp.LevelImpactDefined {
			impact = cp.LevelImpact
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, runID, cp.Date, uint32(cp.Index), impact, cp.VolatilityRatio, cp.RHat, cp.ESS, now)
	}
	q := fmt.Sprintf("INSERT INTO brent_change_points (run_id, date, idx, level_impact, volatility_ratio, r_hat, ess, detected_at) VALUES %s",
		strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store change points: %w", err)
	}
	if s.l != nil {
		s.l.Info("change points stored",
			applogger.String("run_id", runID),
			applogger.Int("rows", len(result.ChangePoints)))
	}
	return nil
}

func (s *CHStore) QueryChangePoints(ctx context.Context, limit int) ([]domrepo.StoredChangePoint, error) {
	const q = `
        SELECT run_id, date, idx, level_impact, volatility_ratio, r_hat, ess, detected_at
        FROM brent_change_points
        ORDER BY detected_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query change points: %w", err)
	}
	defer rows.Close()

	var out []domrepo.StoredChangePoint
	for rows.Next() {
		var cp domrepo.StoredChangePoint
		var idx uint32
		if err := rows.Scan(&cp.RunID, &cp.Date, &idx, &cp.LevelImpact, &cp.VolatilityRatio, &cp.RHat, &cp.ESS, &cp.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan change point: %w", err)
		}
		cp.Index = int(idx)
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *CHStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
