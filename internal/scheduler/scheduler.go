package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"soc-log-pipeline/config"
)

// SweepRequester is implemented by the watcher loop, which runs the sweep on
// its own goroutine.
type SweepRequester interface {
	RequestSweep()
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, target SweepRequester) (*cron.Cron, error) {
	c, err := newCron(cfg.Sweep.Schedule, target)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("Starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping cron scheduler...")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				log.Info().Msg("Cron scheduler stopped gracefully.")
				return nil
			case <-ctx.Done():
				log.Error().Msg("Context cancelled while waiting for cron scheduler to stop.")
				return ctx.Err()
			}
		},
	})
	return c, nil
}

func newCron(schedule string, target SweepRequester) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	_, err := c.AddFunc(schedule, func() {
		log.Debug().Msg("Requesting stale enrichment sweep")
		target.RequestSweep()
	})
	if err != nil {
		log.Error().Err(err).Str("schedule", schedule).Msg("Failed to add cron job")
		return nil, fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", schedule, err)
	}
	log.Info().Str("schedule", schedule).Msg("Scheduled stale enrichment sweep")
	return c, nil
}
