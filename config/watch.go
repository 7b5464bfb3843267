package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads path whenever it is written and hands the new Config to
// onChange. It runs until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped, so the
// previous config stays active.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log.Info().Str("path", path).Msg("watching config for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves show up as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadConfig(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("config reload failed, keeping previous config")
				continue
			}

			log.Info().Str("path", path).Msg("config reloaded")
			onChange(cfg)

			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}
