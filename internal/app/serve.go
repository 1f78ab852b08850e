package app

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/oklog/run"

	"metric-oracle/internal/api"
	"metric-oracle/internal/consumer"
	"metric-oracle/internal/scheduler"
	"metric-oracle/internal/service"
)

// Runner is a long-running component of the serve command.
type Runner interface {
	Run(ctx context.Context) error
}

// actor adapts a Runner to an oklog/run actor that stops on interrupt.
func actor(ctx context.Context, r Runner) (func() error, func(error)) {
	ctx, cancel := context.WithCancelCause(ctx)
	return func() error {
			return r.Run(ctx)
		}, func(err error) {
			cancel(err)
		}
}

// Serve runs the API, the optional Kafka consumer, and the optional feeder
// until a signal arrives or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	o, closeOracle, err := a.openOracle(ctx)
	if err != nil {
		return err
	}
	defer closeOracle()

	if !o.Instantiated() {
		a.Logger.Warn().Msg("oracle.admin_address not configured; ingestion rejected until instantiated")
	}

	var group run.Group
	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	server := api.NewServer(api.Options{
		Addr:         a.Config.HTTP.Addr,
		SenderHeader: a.Config.HTTP.SenderHeader,
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
	}, o, a.Logger)
	group.Add(actor(ctx, server))

	if a.Config.Kafka.Enabled {
		cons, err := consumer.NewConsumer(a.Config.Kafka, o, a.Logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := cons.Close(); err != nil {
				a.Logger.Error().Err(err).Msg("close consumer")
			}
		}()
		group.Add(actor(ctx, cons))
	}

	if a.Config.Feed.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:      a.Config.Scheduler.Interval,
			AlignToBucket: a.Config.Scheduler.AlignToBucket,
			StartupDelay:  a.Config.Scheduler.StartupDelay,
			RunOnStart:    a.Config.Scheduler.RunOnStart,
		}, a.Logger)
		redemption, market := a.newFetchers()
		feeder := service.New(a.Config, sched, redemption, market, o, a.newNotifier(), a.Logger)
		group.Add(actor(ctx, feeder))
	}

	a.Logger.Info().
		Str("addr", a.Config.HTTP.Addr).
		Int("history_capacity", o.HistoryCapacity()).
		Bool("kafka", a.Config.Kafka.Enabled).
		Bool("feed", a.Config.Feed.Enabled).
		Msg("starting oracle")

	err = group.Run()
	var sigErr run.SignalError
	if err == nil || errors.As(err, &sigErr) || errors.Is(err, context.Canceled) {
		a.Logger.Info().Msg("oracle stopped")
		return nil
	}
	return fmt.Errorf("serve: %w", err)
}
