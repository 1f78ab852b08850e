package oracle

import (
	"context"
	"fmt"
)

// Config returns the stored admin config.
func (o *Oracle) Config(ctx context.Context) (Config, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.config == nil {
		return Config{}, ErrNotInstantiated
	}
	return *o.config, nil
}

// LatestMetric returns the most recent metric for key.
func (o *Oracle) LatestMetric(ctx context.Context, key string) (Metric, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var metric Metric
	found, err := loadJSON(ctx, o.kv, latestKey(key), &metric)
	if err != nil {
		return Metric{}, fmt.Errorf("load latest metric: %w", err)
	}
	if !found {
		return Metric{}, fmt.Errorf("%w: metric %s", ErrNotFound, key)
	}
	return metric, nil
}

// AllLatestMetrics returns the latest metric of every key, ordered by key.
func (o *Oracle) AllLatestMetrics(ctx context.Context) (Metrics, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	metrics, err := scanJSON[Metric](ctx, o.kv, latestPrefix)
	if err != nil {
		return Metrics{}, fmt.Errorf("list latest metrics: %w", err)
	}
	return Metrics{Metrics: metrics}, nil
}

// HistoricalMetrics returns the retained history of key, ascending by UpdateTime.
func (o *Oracle) HistoricalMetrics(ctx context.Context, key string) (Metrics, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var stored []Metric
	found, err := loadJSON(ctx, o.kv, historyKey(key), &stored)
	if err != nil {
		return Metrics{}, fmt.Errorf("load history: %w", err)
	}
	if !found {
		return Metrics{}, fmt.Errorf("%w: history %s", ErrNotFound, key)
	}
	return Metrics{Metrics: historyFrom(o.capacity, stored).All()}, nil
}

// RecentMetrics returns up to n of the most recent metrics of key, ascending.
func (o *Oracle) RecentMetrics(ctx context.Context, key string, n int) (Metrics, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var stored []Metric
	found, err := loadJSON(ctx, o.kv, historyKey(key), &stored)
	if err != nil {
		return Metrics{}, fmt.Errorf("load history: %w", err)
	}
	if !found {
		return Metrics{}, fmt.Errorf("%w: history %s", ErrNotFound, key)
	}
	return Metrics{Metrics: historyFrom(o.capacity, stored).LatestRange(n)}, nil
}

// Price looks up the latest exchange rate of denom against baseDenom.
// params is reserved and must be empty.
func (o *Oracle) Price(ctx context.Context, denom, baseDenom, params string) (PriceResponse, error) {
	if params != "" {
		return PriceResponse{}, fmt.Errorf("%w: params must be empty", ErrInvalidRequest)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	var price Price
	found, err := loadJSON(ctx, o.kv, priceKey(PriceKey(denom, baseDenom)), &price)
	if err != nil {
		return PriceResponse{}, fmt.Errorf("load price: %w", err)
	}
	if !found {
		return PriceResponse{}, fmt.Errorf("%w: price %s/%s", ErrNotFound, denom, baseDenom)
	}
	if price.BaseDenom != baseDenom {
		return PriceResponse{}, fmt.Errorf("%w: stored base denom %s, requested %s", ErrInconsistentPriceRecord, price.BaseDenom, baseDenom)
	}

	return PriceResponse{ExchangeRate: price.ExchangeRate, LastUpdated: price.LastUpdated}, nil
}

// AllPrices lists every derived price, ordered by composite key.
func (o *Oracle) AllPrices(ctx context.Context) ([]Price, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	prices, err := scanJSON[Price](ctx, o.kv, pricePrefix)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return prices, nil
}
