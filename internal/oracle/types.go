package oracle

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metric is a single timestamped observation pushed by the admin.
type Metric struct {
	Key      string   `json:"key"`
	Value    string   `json:"value"`
	Category string   `json:"metric_type"`
	Metadata Metadata `json:"metadata"`
}

// Metadata carries the source-chain ordering data and category attributes.
type Metadata struct {
	UpdateTime  uint64  `json:"update_time"`
	BlockHeight uint64  `json:"block_height"`
	Attributes  *string `json:"attributes"`
}

// Price is the latest exchange rate derived for a denom pair.
type Price struct {
	Denom        string          `json:"denom"`
	BaseDenom    string          `json:"base_denom"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	LastUpdated  uint64          `json:"last_updated"`
}

// Config is written once at instantiation.
type Config struct {
	AdminAddress string `json:"admin_address"`
}

// Attribute is a key/value pair attached to a success event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PostResult describes the outcome of a committed PostMetric call.
type PostResult struct {
	EventID        uuid.UUID   `json:"event_id"`
	Attributes     []Attribute `json:"attributes"`
	LatestUpdated  bool        `json:"latest_updated"`
	HistoryUpdated bool        `json:"history_updated"`
	PriceUpdated   bool        `json:"price_updated"`
}

// Metrics wraps a list response.
type Metrics struct {
	Metrics []Metric `json:"metrics"`
}

// PriceResponse is returned by price lookups.
type PriceResponse struct {
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	LastUpdated  uint64          `json:"last_updated"`
}
