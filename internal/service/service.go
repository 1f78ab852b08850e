package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"metric-oracle/internal/alerting"
	"metric-oracle/internal/config"
	"metric-oracle/internal/fetcher"
	"metric-oracle/internal/logging"
	"metric-oracle/internal/oracle"
	"metric-oracle/internal/scheduler"
)

// CategoryMarketRate marks market quotes. The oracle stores them without a
// price projection.
const CategoryMarketRate = "market_rate"

// Poster is the ingestion side of the oracle.
type Poster interface {
	PostMetric(ctx context.Context, sender string, metric oracle.Metric) (oracle.PostResult, error)
}

// Service samples the vault and market rates every bucket, posts them to
// the oracle as the admin, and alerts when they diverge.
type Service struct {
	scheduler  *scheduler.Scheduler
	redemption fetcher.RedemptionRateFetcher
	market     fetcher.MarketRateFetcher
	poster     Poster
	notifier   alerting.Notifier
	logger     zerolog.Logger

	feed      config.FeedConfig
	sender    string
	threshold decimal.Decimal
	notional  decimal.Decimal
	channels  []string
	alertsOn  bool
	cooldown  time.Duration

	mu        sync.Mutex
	lastAlert time.Time
}

// New constructs the feed service. market and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, redemption fetcher.RedemptionRateFetcher, market fetcher.MarketRateFetcher, poster Poster, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.ThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.ThresholdPct)
	}

	return &Service{
		scheduler:  sched,
		redemption: redemption,
		market:     market,
		poster:     poster,
		notifier:   notifier,
		logger:     logging.Component(logger, "feeder"),
		feed:       cfg.Feed,
		sender:     cfg.Oracle.AdminAddress,
		threshold:  threshold,
		notional:   decimal.NewFromFloat(cfg.Cow.Notional),
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		cooldown:   cfg.Alerting.Cooldown,
	}
}

// Run begins the bucketed sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket samples and posts the rates of one bucket. The bucket start
// becomes the metrics' update time, so re-running a bucket is a no-op.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	if s.redemption == nil {
		return errors.New("redemption rate fetcher not configured")
	}

	reading, err := s.redemption.FetchRedemptionRate(ctx)
	if err != nil {
		return fmt.Errorf("fetch redemption rate: %w", err)
	}
	if !reading.Rate.IsPositive() {
		return fmt.Errorf("redemption rate must be positive, got %s", reading.Rate)
	}

	updateTime := uint64(bucket.Unix())
	metric, err := oracle.NewRedemptionRateMetric(
		s.feed.RedemptionKey,
		reading.Rate.Round(18).String(),
		s.feed.Denom,
		s.feed.BaseDenom,
		updateTime,
		reading.BlockNumber,
	)
	if err != nil {
		return fmt.Errorf("build redemption metric: %w", err)
	}

	res, err := s.poster.PostMetric(ctx, s.sender, metric)
	if err != nil {
		return fmt.Errorf("post redemption metric: %w", err)
	}
	s.logger.Info().Time("bucket", bucket).
		Str("key", metric.Key).
		Str("rate", metric.Value).
		Uint64("block", reading.BlockNumber).
		Bool("price_updated", res.PriceUpdated).
		Msg("redemption rate posted")

	if s.market == nil {
		return nil
	}

	quote, err := s.market.FetchMarketRate(ctx)
	if err != nil {
		return fmt.Errorf("fetch market rate: %w", err)
	}

	marketMetric := oracle.Metric{
		Key:      s.feed.MarketKey,
		Value:    quote.Rate.Round(18).String(),
		Category: CategoryMarketRate,
		Metadata: oracle.Metadata{UpdateTime: updateTime, BlockHeight: reading.BlockNumber},
	}
	if _, err := s.poster.PostMetric(ctx, s.sender, marketMetric); err != nil {
		return fmt.Errorf("post market metric: %w", err)
	}

	deviation := Deviation(reading.Rate, quote.Rate)
	s.logger.Info().Time("bucket", bucket).
		Str("quality", quote.Quality).
		Str("deviation_pct", deviation.StringFixed(4)).
		Msg("market rate posted")

	s.maybeAlert(ctx, bucket, reading, quote, deviation)
	return nil
}

func (s *Service) maybeAlert(ctx context.Context, bucket time.Time, reading, quote fetcher.Reading, deviation decimal.Decimal) {
	if !s.alertsOn || s.notifier == nil || s.threshold.IsZero() {
		return
	}
	if !deviation.Abs().GreaterThan(s.threshold) {
		return
	}
	if !s.claimAlertSlot(bucket) {
		s.logger.Debug().Time("bucket", bucket).Msg("alert suppressed by cooldown")
		return
	}

	note := alerting.Notification{
		Bucket:         bucket,
		Denom:          s.feed.Denom,
		BaseDenom:      s.feed.BaseDenom,
		RedemptionRate: reading.Rate,
		MarketRate:     quote.Rate,
		DeviationPct:   deviation,
		ThresholdPct:   s.threshold,
		Direction:      classifyDeviation(deviation),
		Channels:       s.channels,
		Notional:       s.notional,
		BlockHeight:    reading.BlockNumber,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
}

func (s *Service) claimAlertSlot(bucket time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastAlert.IsZero() && bucket.Sub(s.lastAlert) < s.cooldown {
		return false
	}
	s.lastAlert = bucket
	return true
}

// Deviation is the market premium over the redemption rate in percent.
func Deviation(redemption, market decimal.Decimal) decimal.Decimal {
	if redemption.IsZero() {
		return decimal.Zero
	}
	return market.Div(redemption).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
}

func classifyDeviation(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}
