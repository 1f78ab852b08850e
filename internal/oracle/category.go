package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// CategoryRedemptionRate marks metrics that project into the price table.
const CategoryRedemptionRate = "redemption_rate"

// maxRateScale matches the 18 fractional digits of on-chain fixed point decimals.
const maxRateScale = 18

// maxRateLength bounds the textual value before it is parsed.
const maxRateLength = 64

// Plain digits with an optional fraction. Signs and exponents are rejected.
var ratePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// maxRate is the largest 128-bit fixed point value with 18 decimal places.
var maxRate = decimal.RequireFromString("340282366920938463463.374607431768211455")

// RedemptionRateAttributes is the attribute schema of redemption_rate metrics.
type RedemptionRateAttributes struct {
	Denom     string `json:"denom"`
	BaseDenom string `json:"base_denom"`
}

// KnownCategory reports whether a category has post-processing attached.
// Unknown categories are stored as plain metrics.
func KnownCategory(category string) bool {
	switch category {
	case CategoryRedemptionRate:
		return true
	default:
		return false
	}
}

// postProcess runs the category specific step for an ingested metric and
// reports whether any derived record was written. Input is validated even when
// the metric was dropped, but only an accepted metric writes derived records.
func (o *Oracle) postProcess(ctx context.Context, ws *writeSet, metric Metric, accepted bool) (bool, error) {
	switch metric.Category {
	case CategoryRedemptionRate:
		return o.deriveRedemptionPrice(ctx, ws, metric, accepted)
	default:
		return false, nil
	}
}

func (o *Oracle) deriveRedemptionPrice(ctx context.Context, ws *writeSet, metric Metric, accepted bool) (bool, error) {
	attrs, err := parseRedemptionRateAttributes(metric)
	if err != nil {
		return false, err
	}
	if !o.validDenom(attrs.Denom) {
		return false, fmt.Errorf("%w: %s", ErrInvalidDenom, attrs.Denom)
	}
	if !o.validDenom(attrs.BaseDenom) {
		return false, fmt.Errorf("%w: %s", ErrInvalidDenom, attrs.BaseDenom)
	}

	rate, err := parseExchangeRate(metric.Value)
	if err != nil {
		return false, err
	}
	if !accepted {
		return false, nil
	}

	incoming := Price{
		Denom:        attrs.Denom,
		BaseDenom:    attrs.BaseDenom,
		ExchangeRate: rate,
		LastUpdated:  metric.Metadata.UpdateTime,
	}

	key := priceKey(PriceKey(attrs.Denom, attrs.BaseDenom))
	var existing Price
	found, err := ws.loadJSON(ctx, key, &existing)
	if err != nil {
		return false, fmt.Errorf("load price: %w", err)
	}
	if found && incoming.LastUpdated <= existing.LastUpdated {
		return false, nil
	}

	if err := ws.putJSON(key, incoming); err != nil {
		return false, fmt.Errorf("encode price: %w", err)
	}
	return true, nil
}

func parseRedemptionRateAttributes(metric Metric) (RedemptionRateAttributes, error) {
	var attrs RedemptionRateAttributes
	if metric.Metadata.Attributes == nil {
		return attrs, fmt.Errorf("%w: metric type %s", ErrInvalidMetricAttributes, metric.Category)
	}

	if err := json.Unmarshal([]byte(*metric.Metadata.Attributes), &attrs); err != nil {
		return attrs, fmt.Errorf("%w: metric type %s: %v", ErrInvalidMetricAttributes, metric.Category, err)
	}
	if attrs.Denom == "" || attrs.BaseDenom == "" {
		return attrs, fmt.Errorf("%w: metric type %s: denom and base_denom are required", ErrInvalidMetricAttributes, metric.Category)
	}
	return attrs, nil
}

func parseExchangeRate(value string) (decimal.Decimal, error) {
	if len(value) > maxRateLength || !ratePattern.MatchString(value) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrMalformedValue, value)
	}
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrMalformedValue, value)
	}
	if rate.GreaterThan(maxRate) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is out of range", ErrMalformedValue, value)
	}
	if rate.Exponent() < -maxRateScale && !rate.Equal(rate.Truncate(maxRateScale)) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q exceeds %d decimal places", ErrMalformedValue, value, maxRateScale)
	}
	return rate, nil
}

// PriceKey is the composite key of the price table.
func PriceKey(denom, baseDenom string) string {
	return denom + "-" + baseDenom
}

// NewRedemptionRateMetric builds a redemption_rate metric carrying its
// attribute payload.
func NewRedemptionRateMetric(key, value, denom, baseDenom string, updateTime, blockHeight uint64) (Metric, error) {
	raw, err := json.Marshal(RedemptionRateAttributes{Denom: denom, BaseDenom: baseDenom})
	if err != nil {
		return Metric{}, err
	}
	attrs := string(raw)
	return Metric{
		Key:      key,
		Value:    value,
		Category: CategoryRedemptionRate,
		Metadata: Metadata{
			UpdateTime:  updateTime,
			BlockHeight: blockHeight,
			Attributes:  &attrs,
		},
	}, nil
}
