package oracle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ActionPostMetric is the action attribute of a successful PostMetric.
const ActionPostMetric = "post_metric"

// PostMetric ingests one metric on behalf of sender.
//
// The metric is promoted to latest when it is newer than the stored entry,
// appended to the key's history when its UpdateTime is new, and projected into
// the price table for redemption_rate metrics. Stale or duplicate metrics are
// dropped silently. Every write of the call is committed in one batch, so a
// failure at any step leaves the store untouched.
func (o *Oracle) PostMetric(ctx context.Context, sender string, metric Metric) (PostResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.config == nil {
		return PostResult{}, ErrNotInstantiated
	}
	if sender != o.config.AdminAddress {
		return PostResult{}, ErrUnauthorized
	}

	ws := newWriteSet(o.kv)

	latestUpdated, err := o.applyLatest(ctx, ws, metric)
	if err != nil {
		return PostResult{}, err
	}
	historyUpdated, err := o.appendHistory(ctx, ws, metric)
	if err != nil {
		return PostResult{}, err
	}
	priceUpdated, err := o.postProcess(ctx, ws, metric, latestUpdated || historyUpdated)
	if err != nil {
		o.logger.Debug().Err(err).Str("key", metric.Key).Str("metric_type", metric.Category).Msg("metric rejected")
		return PostResult{}, err
	}

	if err := ws.commit(ctx); err != nil {
		return PostResult{}, fmt.Errorf("post metric: %w", err)
	}

	result := PostResult{
		EventID:        uuid.New(),
		Attributes:     []Attribute{{Key: "action", Value: ActionPostMetric}},
		LatestUpdated:  latestUpdated,
		HistoryUpdated: historyUpdated,
		PriceUpdated:   priceUpdated,
	}

	o.logger.Info().
		Str("event_id", result.EventID.String()).
		Str("key", metric.Key).
		Str("metric_type", metric.Category).
		Uint64("update_time", metric.Metadata.UpdateTime).
		Bool("latest_updated", latestUpdated).
		Bool("history_updated", historyUpdated).
		Bool("price_updated", priceUpdated).
		Msg("metric posted")

	return result, nil
}
