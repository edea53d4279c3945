package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/metrics"
)

// priceMessage is the wire format on the prices topic.
type priceMessage struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// PriceIngestHandler consumes new daily observations from Kafka and merges
// them into the price history.
type PriceIngestHandler struct {
	topic    string
	prices   *PriceService
	recorder *metrics.Recorder
	l        *applogger.Logger
}

func NewPriceIngestHandler(topic string, prices *PriceService, recorder *metrics.Recorder, l *applogger.Logger) *PriceIngestHandler {
	return &PriceIngestHandler{topic: topic, prices: prices, recorder: recorder, l: l}
}

// Topic implements kafka.MessageHandler.
func (h *PriceIngestHandler) Topic() string { return h.topic }

// Handle implements kafka.MessageHandler. The payload is either a single
// price object or an array of them.
func (h *PriceIngestHandler) Handle(ctx context.Context, data []byte) error {
	var batch []priceMessage
	if err := json.Unmarshal(data, &batch); err != nil {
		var single priceMessage
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("decode price message: %w", err)
		}
		batch = append(batch, single)
	}

	points := make([]models.PricePoint, 0, len(batch))
	for _, m := range batch {
		date, err := time.Parse("2006-01-02", m.Date)
		if err != nil {
			return fmt.Errorf("decode price date %q: %w", m.Date, err)
		}
		points = append(points, models.PricePoint{Date: date.UTC(), Price: m.Price})
	}

	if err := h.prices.Ingest(ctx, points); err != nil {
		return err
	}
	h.recorder.RecordPricesIngested(len(points))
	h.l.Debug("prices ingested from kafka", applogger.Int("rows", len(points)))
	return nil
}
