package repository

import (
	"context"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	domrepo "github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/repository"
	pkgkafka "github.com/Habtu32/brent-oil-change-point-analysis/pkg/kafka"
)

// KafkaResultPublisher publishes completed runs to the results topic.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

// PublishResult publishes the full run keyed by run ID so replays of the same
// run land on the same partition.
func (p *KafkaResultPublisher) PublishResult(ctx context.Context, run *models.AnalysisRun) error {
	return p.producer.Publish(ctx, p.topic, []byte(run.ID), run)
}

func (p *KafkaResultPublisher) Close() error {
	return p.producer.Close()
}
