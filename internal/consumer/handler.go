package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"metric-oracle/internal/oracle"
)

// Poster is the ingestion side of the oracle.
type Poster interface {
	PostMetric(ctx context.Context, sender string, metric oracle.Metric) (oracle.PostResult, error)
}

// Envelope is the message carried on the metrics topic. Sender is trusted as
// is, so produce access to the topic must be restricted.
type Envelope struct {
	Sender string        `json:"sender"`
	Metric oracle.Metric `json:"metric"`
}

var _ sarama.ConsumerGroupHandler = Handler{}

// Handler applies each claimed message to the oracle.
type Handler struct {
	topic  string
	poster Poster
	logger zerolog.Logger
}

// NewHandler builds a handler for topic.
func NewHandler(topic string, poster Poster, logger zerolog.Logger) Handler {
	return Handler{topic: topic, poster: poster, logger: logger}
}

func (h Handler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}

func (h Handler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks a message only once the oracle has accepted or
// permanently rejected it. Storage failures stop the claim so the message is
// redelivered.
func (h Handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handle(ctx, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("claim handle: %w", err)
			}
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}

func (h Handler) topics() []string {
	return []string{h.topic}
}

func (h Handler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger.Warn().Err(err).Int64("offset", msg.Offset).Int32("partition", msg.Partition).Msg("skip undecodable message")
		return nil
	}

	res, err := h.poster.PostMetric(ctx, env.Sender, env.Metric)
	if err != nil {
		if rejected(err) {
			h.logger.Warn().Err(err).
				Str("key", env.Metric.Key).
				Str("sender", env.Sender).
				Int64("offset", msg.Offset).
				Msg("metric rejected")
			return nil
		}
		return fmt.Errorf("post metric %s: %w", env.Metric.Key, err)
	}

	h.logger.Debug().
		Str("key", env.Metric.Key).
		Str("event_id", res.EventID.String()).
		Int64("offset", msg.Offset).
		Msg("metric consumed")
	return nil
}

// rejected reports whether err is a permanent verdict on the message itself.
func rejected(err error) bool {
	for _, target := range []error{
		oracle.ErrUnauthorized,
		oracle.ErrInvalidMetricAttributes,
		oracle.ErrInvalidDenom,
		oracle.ErrMalformedValue,
		oracle.ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
