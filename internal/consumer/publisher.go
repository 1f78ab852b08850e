package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"metric-oracle/internal/config"
)

// Publisher writes metric envelopes to the metrics topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewPublisher dials the brokers with a synchronous producer.
func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, SaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisherFromProducer(producer, cfg.Topic), nil
}

// NewPublisherFromProducer wraps an existing producer.
func NewPublisherFromProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish sends env keyed by metric key, so one key stays on one partition.
func (p *Publisher) Publish(ctx context.Context, env Envelope) (int32, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	js, err := json.Marshal(env)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal envelope: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(env.Metric.Key),
		Value: sarama.ByteEncoder(js),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("send message: %w", err)
	}
	return partition, offset, nil
}

// Close releases the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
