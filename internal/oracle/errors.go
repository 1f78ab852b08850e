package oracle

import "errors"

var (
	// ErrUnauthorized is returned when the sender is not the admin.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidMetricAttributes is returned when category attributes are missing or unparseable.
	ErrInvalidMetricAttributes = errors.New("invalid metric metadata attributes")
	// ErrInvalidDenom is returned when a denom fails native denom validation.
	ErrInvalidDenom = errors.New("invalid denom")
	// ErrMalformedValue is returned when a metric value is not a valid decimal.
	ErrMalformedValue = errors.New("malformed metric value")
	// ErrNotFound is returned by queries for absent keys or prices.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is returned when query params are not empty.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInconsistentPriceRecord is returned when a stored price does not match its lookup key.
	ErrInconsistentPriceRecord = errors.New("inconsistent price record")
	// ErrNotInstantiated is returned before a config has been stored.
	ErrNotInstantiated = errors.New("oracle not instantiated")
	// ErrAlreadyInstantiated is returned when instantiating over a different config.
	ErrAlreadyInstantiated = errors.New("oracle already instantiated")
)
