package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"metric-oracle/internal/config"
	"metric-oracle/internal/logging"
)

// SaramaConfig returns the client settings shared by consumer and publisher.
func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "oracled"
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	return cfg
}

// Consumer feeds metrics from a Kafka topic into the oracle.
type Consumer struct {
	client        sarama.Client
	consumerGroup sarama.ConsumerGroup
	handler       Handler
	logger        zerolog.Logger
}

// NewConsumer joins the configured consumer group.
func NewConsumer(cfg config.KafkaConfig, poster Poster, logger zerolog.Logger) (*Consumer, error) {
	client, err := sarama.NewClient(cfg.Brokers, SaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	group, err := sarama.NewConsumerGroupFromClient(cfg.Group, client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	logger = logging.Component(logger, "consumer")
	return &Consumer{
		client:        client,
		consumerGroup: group,
		handler:       NewHandler(cfg.Topic, poster, logger),
		logger:        logger,
	}, nil
}

// Run consumes until ctx is cancelled or the group fails.
func (c *Consumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		for {
			if err := c.consumerGroup.Consume(ctx, c.handler.topics(), c.handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					err = ctx.Err()
				}
				errs <- err
				return
			}
			if ctx.Err() != nil {
				errs <- ctx.Err()
				return
			}
			c.logger.Debug().Msg("consumer group rebalanced")
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("consumer: %w", err)
	case err := <-c.consumerGroup.Errors():
		return fmt.Errorf("consumer group: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("consumer: %w", ctx.Err())
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() error {
	groupErr := c.consumerGroup.Close()
	clientErr := c.client.Close()
	return errors.Join(groupErr, clientErr)
}
