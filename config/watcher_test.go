package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smurfwatch.toml")
	require.NoError(t, os.WriteFile(path, []byte("[detection]\nmin_games = 30\n"), 0o644))

	w, err := NewWatcher(path, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer w.Stop()

	// Short debounce so the test does not crawl
	w.debouncePeriod = 50 * time.Millisecond

	reloaded := make(chan *Config, 1)
	w.OnReload(func(cfg *Config) error {
		select {
		case reloaded <- cfg:
		default:
		}
		return nil
	})
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("[detection]\nmin_games = 12\n"), 0o644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 12, cfg.Detection.MinGames)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherMissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent.toml"), zap.NewNop().Sugar())
	require.Error(t, err)
}
