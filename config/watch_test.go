package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_Reload(t *testing.T) {
	path := writeConfig(t, "jira:\n  url: https://before.example\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zerolog.Nop(), func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// An invalid file is skipped, the next valid write is delivered.
	require.NoError(t, os.WriteFile(path, []byte("sprints:\n  length_days: -1\n"), 0o600))

	var got *Config
	require.Eventually(t, func() bool {
		assert.NoError(t, os.WriteFile(path, []byte("jira:\n  url: https://after.example\n"), 0o600))
		select {
		case got = <-reloaded:
			return got.Jira.URL == "https://after.example"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "https://after.example", got.Jira.URL)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/jira-flow.yaml", zerolog.Nop(), func(*Config) {})
	require.Error(t, err)
}
