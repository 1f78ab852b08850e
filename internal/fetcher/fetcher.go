package fetcher

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Reading is one sampled rate.
type Reading struct {
	Rate        decimal.Decimal
	BlockNumber uint64
	Quality     string
	Raw         json.RawMessage
}

// RedemptionRateFetcher reads the vault's share-to-asset redemption rate.
type RedemptionRateFetcher interface {
	FetchRedemptionRate(ctx context.Context) (Reading, error)
}

// MarketRateFetcher reads the secondary market rate for the same pair.
type MarketRateFetcher interface {
	FetchMarketRate(ctx context.Context) (Reading, error)
}
