package repository

import (
	"context"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements ResultPublisher for Kafka. Records are keyed by
// ticker so a ticker's results stay ordered within a partition.
type KafkaPublisher struct {
	producer producer
	topic    string
}

var _ domrepo.ResultPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(p producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, rec models.ForecastRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Ticker), rec)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
