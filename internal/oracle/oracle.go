package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"metric-oracle/internal/storage"
)

// Options tune oracle behaviour.
type Options struct {
	HistoryCapacity int
	DenomValidator  DenomValidator
}

// Oracle is the metric store. Calls against one Oracle are serialised: a
// PostMetric runs to completion before any other call observes the store.
type Oracle struct {
	kv       storage.KV
	capacity int
	validate DenomValidator
	logger   zerolog.Logger

	mu     sync.RWMutex
	config *Config
}

// Open attaches an oracle to kv and loads its config when one was stored.
func Open(ctx context.Context, kv storage.KV, opts Options, logger zerolog.Logger) (*Oracle, error) {
	if kv == nil {
		return nil, errors.New("oracle: storage backend is required")
	}

	capacity := opts.HistoryCapacity
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	validate := opts.DenomValidator
	if validate == nil {
		validate = ValidNativeDenom
	}

	o := &Oracle{
		kv:       kv,
		capacity: capacity,
		validate: validate,
		logger:   logger.With().Str("component", "oracle").Logger(),
	}

	var cfg Config
	found, err := loadJSON(ctx, kv, configKey, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if found {
		o.config = &cfg
	}
	return o, nil
}

// Instantiate stores the admin config. Repeating it with the same admin is a
// no-op; any other admin fails with ErrAlreadyInstantiated.
func (o *Oracle) Instantiate(ctx context.Context, adminAddress string) error {
	adminAddress = strings.TrimSpace(adminAddress)
	if adminAddress == "" || strings.ContainsAny(adminAddress, " \t\n") {
		return fmt.Errorf("%w: admin address %q", ErrInvalidRequest, adminAddress)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.config != nil {
		if o.config.AdminAddress == adminAddress {
			return nil
		}
		return fmt.Errorf("%w: admin is %s", ErrAlreadyInstantiated, o.config.AdminAddress)
	}

	cfg := Config{AdminAddress: adminAddress}
	ws := newWriteSet(o.kv)
	if err := ws.putJSON(configKey, cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := ws.commit(ctx); err != nil {
		return err
	}
	o.config = &cfg

	o.logger.Info().Str("admin", adminAddress).Msg("oracle instantiated")
	return nil
}

// Instantiated reports whether a config is stored.
func (o *Oracle) Instantiated() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config != nil
}

// HistoryCapacity reports the per-key retention bound.
func (o *Oracle) HistoryCapacity() int {
	return o.capacity
}

func (o *Oracle) validDenom(denom string) bool {
	return o.validate(denom)
}
