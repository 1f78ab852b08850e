package oracle

import (
	"context"
	"fmt"
)

// promotes reports whether incoming replaces the stored latest metric.
// Only a strictly newer UpdateTime wins; ties keep the stored entry.
func promotes(existing *Metric, incoming Metric) bool {
	if existing == nil {
		return true
	}
	return incoming.Metadata.UpdateTime > existing.Metadata.UpdateTime
}

func (o *Oracle) applyLatest(ctx context.Context, ws *writeSet, metric Metric) (bool, error) {
	var stored Metric
	found, err := ws.loadJSON(ctx, latestKey(metric.Key), &stored)
	if err != nil {
		return false, fmt.Errorf("load latest metric: %w", err)
	}

	var existing *Metric
	if found {
		existing = &stored
	}
	if !promotes(existing, metric) {
		return false, nil
	}

	if err := ws.putJSON(latestKey(metric.Key), metric); err != nil {
		return false, fmt.Errorf("encode latest metric: %w", err)
	}
	return true, nil
}

func (o *Oracle) appendHistory(ctx context.Context, ws *writeSet, metric Metric) (bool, error) {
	var stored []Metric
	if _, err := ws.loadJSON(ctx, historyKey(metric.Key), &stored); err != nil {
		return false, fmt.Errorf("load history: %w", err)
	}

	history := historyFrom(o.capacity, stored)
	if !history.Add(metric) {
		return false, nil
	}

	if err := ws.putJSON(historyKey(metric.Key), history.All()); err != nil {
		return false, fmt.Errorf("encode history: %w", err)
	}
	return true, nil
}
