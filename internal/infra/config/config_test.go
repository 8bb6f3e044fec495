package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
bridge:
  token: secret
library:
  roots: [/music]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/ws/now-playing", cfg.Server.WebSocketPath)
	assert.Equal(t, "library", cfg.Library.Name)
	assert.Equal(t, []string{".mp3", ".wav", ".flac"}, cfg.Library.Extensions)
	assert.Equal(t, "path", cfg.Library.Sort)
	assert.InDelta(t, 0.1, cfg.Playback.DuckVolume, 1e-9)
	assert.False(t, cfg.Playback.Autostart)
	assert.False(t, cfg.Playback.KeepStateOnExit)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout())
	assert.Equal(t, 44100, cfg.Render.SampleRate)
	assert.Equal(t, 100*time.Millisecond, cfg.RenderBuffer())
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, 500*time.Millisecond, cfg.SendTimeout())
	assert.Equal(t, 3*time.Second, cfg.ResolveTimeout())
	assert.Equal(t, 5*time.Second, cfg.LastFMTimeout())
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
  hooks:
    on_started: [echo started]
bridge:
  token: secret
library:
  name: evening
  tracks:
    - locator: /music/a.mp3
      title: A
      artist: X
  sort: album
playback:
  autostart: true
  duck_volume: 0.25
  keep_state_on_exit: true
notification:
  resolve_timeout_ms: 1500
store:
  type: redis
  settings:
    addr: localhost:6380
    prefix: player
filters:
  duplicate_track_filter:
    enabled: true
    settings:
      allow_versions: true
  missing_file_filter:
    enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"echo started"}, cfg.Server.Hooks.OnStarted)
	assert.Equal(t, "evening", cfg.Library.Name)
	require.Len(t, cfg.Library.Tracks, 1)
	assert.Equal(t, "/music/a.mp3", cfg.Library.Tracks[0].Locator)
	assert.True(t, cfg.Playback.Autostart)
	assert.InDelta(t, 0.25, cfg.Playback.DuckVolume, 1e-9)
	assert.True(t, cfg.Playback.KeepStateOnExit)
	assert.Equal(t, 1500*time.Millisecond, cfg.ResolveTimeout())
	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "localhost:6380", cfg.Store.Settings["addr"])

	assert.True(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("missing_file_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown"))
	assert.Equal(t, true, cfg.Filters["duplicate_track_filter"].Settings["allow_versions"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_TOKEN", "from-env")
	t.Setenv("LASTFM_API_KEY", "lastfm-key")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/player")
	t.Setenv("REDIS_ADDR", "redis:6379")

	path := writeConfig(t, `
bridge:
  token: from-file
library:
  roots: [/music]
store:
  type: postgres
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Bridge.Token)
	assert.Equal(t, "lastfm-key", cfg.Notification.LastFM.APIKey)
	assert.Equal(t, "postgres://u:p@db/player", cfg.Store.Settings["dsn"])
	_, hasAddr := cfg.Store.Settings["addr"]
	assert.False(t, hasAddr, "redis override only applies to the redis store")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing bridge token",
			body:   "library:\n  roots: [/music]\n",
			errMsg: "Token",
		},
		{
			name:   "empty library",
			body:   "bridge:\n  token: x\n",
			errMsg: "library",
		},
		{
			name:   "invalid duck volume",
			body:   "bridge:\n  token: x\nlibrary:\n  roots: [/m]\nplayback:\n  duck_volume: 1.5\n",
			errMsg: "DuckVolume",
		},
		{
			name:   "unknown store type",
			body:   "bridge:\n  token: x\nlibrary:\n  roots: [/m]\nstore:\n  type: etcd\n",
			errMsg: "Type",
		},
		{
			name:   "track without locator",
			body:   "bridge:\n  token: x\nlibrary:\n  tracks:\n    - title: A\n",
			errMsg: "Locator",
		},
		{
			name:   "invalid sort",
			body:   "bridge:\n  token: x\nlibrary:\n  roots: [/m]\n  sort: random\n",
			errMsg: "Sort",
		},
		{
			name:   "malformed yaml",
			body:   "bridge: [",
			errMsg: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BRIDGE_TOKEN", "")
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("BRIDGE_TOKEN", "")
	t.Setenv("LASTFM_API_KEY", "")
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "server.example.yaml"))
	require.NoError(t, err)

	assert.False(t, cfg.Playback.KeepStateOnExit)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, 3*time.Second, cfg.ResolveTimeout())
	assert.True(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("size_limit_filter"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
