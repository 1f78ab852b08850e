package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"metric-oracle/internal/consumer"
	"metric-oracle/internal/oracle"
)

// Post submits one metric, either straight into the local store or onto the
// Kafka metrics topic for a running server to consume.
func (a *App) Post(ctx context.Context, opts PostOptions) error {
	sender := opts.Sender
	if sender == "" {
		sender = a.Config.Oracle.AdminAddress
	}
	if sender == "" {
		return errors.New("sender not set; pass --sender or configure oracle.admin_address")
	}

	if opts.Kafka {
		return a.publish(ctx, consumer.Envelope{Sender: sender, Metric: opts.Metric})
	}

	o, closeOracle, err := a.openOracle(ctx)
	if err != nil {
		return err
	}
	defer closeOracle()

	if !oracle.KnownCategory(opts.Metric.Category) {
		a.Logger.Debug().Str("metric_type", opts.Metric.Category).Msg("category has no post-processing")
	}

	res, err := o.PostMetric(ctx, sender, opts.Metric)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

func (a *App) publish(ctx context.Context, env consumer.Envelope) error {
	if len(a.Config.Kafka.Brokers) == 0 || a.Config.Kafka.Topic == "" {
		return errors.New("kafka.brokers and kafka.topic must be configured")
	}

	pub, err := consumer.NewPublisher(a.Config.Kafka)
	if err != nil {
		return err
	}
	defer pub.Close()

	partition, offset, err := pub.Publish(ctx, env)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("key", env.Metric.Key).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("metric published")
	return nil
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// ParseMetric decodes a metric given as JSON on the command line.
func ParseMetric(raw string) (oracle.Metric, error) {
	var metric oracle.Metric
	if err := json.Unmarshal([]byte(raw), &metric); err != nil {
		return oracle.Metric{}, fmt.Errorf("decode metric: %w", err)
	}
	if metric.Key == "" {
		return oracle.Metric{}, errors.New("metric key is required")
	}
	return metric, nil
}
