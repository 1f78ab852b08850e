package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"metric-oracle/internal/alerting"
	"metric-oracle/internal/config"
	"metric-oracle/internal/fetcher"
	"metric-oracle/internal/logging"
	"metric-oracle/internal/oracle"
	"metric-oracle/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

// openOracle opens the configured storage and attaches an oracle to it. When
// an admin address is configured the oracle is instantiated with it.
func (a *App) openOracle(ctx context.Context) (*oracle.Oracle, func(), error) {
	kv, err := storage.Open(ctx, a.Config.Storage, a.Config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	closer := func() {
		if cached, ok := kv.(*storage.Cached); ok {
			hits, misses := cached.Stats()
			a.Logger.Debug().Uint64("hits", hits).Uint64("misses", misses).Msg("storage cache stats")
		}
		if err := kv.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("close storage")
		}
	}

	o, err := oracle.Open(ctx, kv, oracle.Options{HistoryCapacity: a.Config.Oracle.HistoryCapacity}, a.Logger)
	if err != nil {
		closer()
		return nil, nil, err
	}

	if admin := a.Config.Oracle.AdminAddress; admin != "" {
		if err := o.Instantiate(ctx, admin); err != nil {
			closer()
			return nil, nil, fmt.Errorf("instantiate oracle: %w", err)
		}
	}

	return o, closer, nil
}

func (a *App) newFetchers() (fetcher.RedemptionRateFetcher, fetcher.MarketRateFetcher) {
	vault := fetcher.NewVault(fetcher.VaultOptions{
		RPCURL:       a.Config.Ethereum.RPCURL,
		VaultAddress: a.Config.Ethereum.VaultAddress,
		Timeout:      a.Config.Ethereum.RequestTimeout,
	}, a.Logger)

	if a.Config.Ethereum.AssetAddress == "" {
		return vault, nil
	}

	market := fetcher.NewMarket(fetcher.MarketOptions{
		BaseURL:      a.Config.Cow.BaseURL,
		PriceQuality: a.Config.Cow.PriceQuality,
		Notional:     decimal.NewFromFloat(a.Config.Cow.Notional),
		Timeout:      a.Config.Cow.RequestTimeout,
		UserAgent:    a.Config.Cow.UserAgent,
		SellToken:    a.Config.Ethereum.VaultAddress,
		BuyToken:     a.Config.Ethereum.AssetAddress,
	}, a.Logger)

	return vault, market
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

// PostOptions configure the post command.
type PostOptions struct {
	Sender string
	Metric oracle.Metric
	Kafka  bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Key   string
	Limit int
}

// ExportOptions hold parameters for exporting one key's history.
type ExportOptions struct {
	Key        string
	CompareKey string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ImportOptions configure the import job.
type ImportOptions struct {
	Path   string
	Sender string
	DryRun bool
}
