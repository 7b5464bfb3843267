package web

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jira-flow-metrics/app"
	"jira-flow-metrics/config"
	"jira-flow-metrics/report"
	"jira-flow-metrics/telemetry"
)

// refresher builds a fresh pipeline per run so the sprint calendar horizon
// follows the clock.
func refresher(cfg *config.Config, rec *telemetry.Recorder, log zerolog.Logger) RefreshFunc {
	return func(ctx context.Context) (*report.Report, error) {
		now := time.Now()
		p, err := app.New(cfg, app.All, rec, log, now)
		if err != nil {
			return nil, err
		}
		return p.Run(ctx, now)
	}
}

// location is the business calendar timezone the refresh schedule runs in.
func location(cfg *config.Config) *time.Location {
	if wc, err := cfg.BusinessCalendar(); err == nil && wc.Location != nil {
		return wc.Location
	}
	return time.UTC
}

// Run serves cfg on addr until ctx is cancelled. When configPath is set the
// file is watched and a valid change is applied from the next refresh on.
func Run(ctx context.Context, configPath string, cfg *config.Config, addr string, log zerolog.Logger) error {
	rec := telemetry.NewRecorder()

	p, err := app.New(cfg, app.All, rec, log, time.Now())
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	s, err := NewServer(Options{
		Refresh:     refresher(cfg, rec, log),
		Columns:     p.Columns,
		RefreshCron: cfg.Server.RefreshCron,
		Location:    location(cfg),
		Timeout:     cfg.Server.Timeout,
		Recorder:    rec,
	}, log)
	if err != nil {
		return err
	}

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, log, func(next *config.Config) {
				np, err := app.New(next, app.All, rec, log, time.Now())
				if err != nil {
					log.Error().Err(err).Msg("reloaded config is unusable, keeping previous config")
					return
				}
				err = s.Reconfigure(Options{
					Refresh:     refresher(next, rec, log),
					Columns:     np.Columns,
					RefreshCron: next.Server.RefreshCron,
					Location:    location(next),
					Timeout:     next.Server.Timeout,
				})
				if err != nil {
					log.Error().Err(err).Msg("reloaded config is unusable, keeping previous config")
				}
			})
			if err != nil {
				log.Error().Err(err).Str("path", configPath).Msg("config watcher stopped")
			}
		}()
	}

	return s.Start(ctx, addr)
}
