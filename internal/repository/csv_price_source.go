package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	domrepo "github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/repository"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
)

// Historical exports mix date layouts within a single file, so every row is
// tried against each configured layout in order.
var defaultDateFormats = []string{
	"02-Jan-06",
	"Jan 02, 2006",
	"2006-01-02",
}

// CSVPriceSource loads daily prices from a Date,Price CSV file.
type CSVPriceSource struct {
	path    string
	formats []string
	l       *applogger.Logger
}

// NewCSVPriceSource creates a CSV-backed price source. Empty formats fall
// back to the default layouts.
func NewCSVPriceSource(path string, formats []string) *CSVPriceSource {
	if len(formats) == 0 {
		formats = defaultDateFormats
	}
	return &CSVPriceSource{path: path, formats: formats}
}

var _ domrepo.PriceSource = (*CSVPriceSource)(nil)

// SetLogger injects a structured logger.
func (s *CSVPriceSource) SetLogger(l *applogger.Logger) { s.l = l }

// Load reads, parses and cleans the price history: rows with unparseable
// dates or non-positive prices are dropped, duplicate dates keep the last
// occurrence, and the result is sorted by date ascending.
func (s *CSVPriceSource) Load(ctx context.Context) ([]models.PricePoint, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open prices csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	byDate := make(map[time.Time]float64)
	line := 0
	dropped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prices csv: %w", err)
		}
		line++

		// Skip header row
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}
		if len(rec) < 2 {
			dropped++
			continue
		}

		priceIdx := 1
		date, ok := s.parseDate(strings.TrimSpace(rec[0]))
		if !ok && len(rec) >= 3 {
			// Unquoted "Jan 02, 2006" dates split on their embedded comma,
			// leaving the year in the second field.
			date, ok = s.parseDate(strings.TrimSpace(rec[0]) + ", " + strings.TrimSpace(rec[1]))
			priceIdx = 2
		}
		if !ok {
			dropped++
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[priceIdx]), 64)
		if err != nil || price <= 0 {
			dropped++
			continue
		}

		byDate[date] = price
	}

	points := make([]models.PricePoint, 0, len(byDate))
	for date, price := range byDate {
		points = append(points, models.PricePoint{Date: date, Price: price})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if s.l != nil {
		s.l.Info("prices csv loaded",
			applogger.String("path", s.path),
			applogger.Int("rows", len(points)),
			applogger.Int("dropped", dropped))
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no usable rows in %s", s.path)
	}
	return points, nil
}

func (s *CSVPriceSource) parseDate(raw string) (time.Time, bool) {
	for _, layout := range s.formats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
