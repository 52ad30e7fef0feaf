package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "top hits indonesia 2025", cfg.Player.DefaultSearch)
	assert.Equal(t, 20, cfg.Library.MaxHistory)
	require.Len(t, cfg.API.Providers, 2)
	assert.Equal(t, "primary", cfg.API.Providers[0].Name)
	assert.Contains(t, cfg.API.Providers[0].URL, "/youtube/v5")
	assert.Contains(t, cfg.API.Providers[1].URL, "/youtube/v4")
	assert.InDelta(t, 0.7, cfg.Audio.DefaultVolume, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 10*time.Minute, cfg.ResolverCacheTTL())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
api:
  search_url: http://localhost:9999/search
  providers:
    - name: only
      url: http://localhost:9999/resolve
storage:
  database_path: ` + filepath.Join(dir, "db", "test.db") + `
download:
  dir: ` + filepath.Join(dir, "downloads") + `
library:
  max_history: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("AMPSTREAM_PLAYER_DEFAULT_SEARCH", "lofi beats")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/search", cfg.API.SearchURL)
	require.Len(t, cfg.API.Providers, 1)
	assert.Equal(t, "only", cfg.API.Providers[0].Name)
	assert.Equal(t, 5, cfg.Library.MaxHistory)
	assert.Equal(t, "lofi beats", cfg.Player.DefaultSearch)
	assert.Equal(t, 10, cfg.API.RateLimit.RequestsPerSecond)

	for _, d := range []string{filepath.Join(dir, "db"), filepath.Join(dir, "downloads")} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
