// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig            `yaml:"server"`
	Bridge       BridgeConfig            `yaml:"bridge"`
	Library      LibraryConfig           `yaml:"library"`
	Playback     PlaybackConfig          `yaml:"playback"`
	Render       RenderConfig            `yaml:"render"`
	Store        StoreConfig             `yaml:"store"`
	Notification NotificationConfig      `yaml:"notification"`
	Filters      map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr          string      `yaml:"addr" default:":8080"`
	WebSocketPath string      `yaml:"websocket_path" default:"/ws/now-playing"`
	Hooks         HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// BridgeConfig represents the platform bridge configuration.
type BridgeConfig struct {
	Token     string `yaml:"token" validate:"required"`
	DenyFocus bool   `yaml:"deny_focus"` // Refuse every focus request (testing)
}

// LibraryConfig represents the track list source.
// Tracks listed explicitly come first, followed by the scanned roots.
type LibraryConfig struct {
	Name       string        `yaml:"name" default:"library"`
	Roots      []string      `yaml:"roots"`
	Tracks     []TrackConfig `yaml:"tracks" validate:"dive"`
	Extensions []string      `yaml:"extensions" default:"[\".mp3\",\".wav\",\".flac\"]" validate:"min=1"`
	Sort       string        `yaml:"sort" default:"path" validate:"oneof=path album"`
	Rescan     bool          `yaml:"rescan"` // Ignore the stored playlist
}

// TrackConfig represents one explicitly listed track.
type TrackConfig struct {
	Locator string `yaml:"locator" validate:"required"`
	Title   string `yaml:"title"`
	Album   string `yaml:"album"`
	Artist  string `yaml:"artist"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	Autostart       bool    `yaml:"autostart"`
	DuckVolume      float64 `yaml:"duck_volume" default:"0.1" validate:"gt=0,lte=1"`
	StoreTimeoutMs  int     `yaml:"store_timeout_ms" default:"2000" validate:"gte=100,lte=30000"`
	// KeepStateOnExit keeps the stored playlist and index after a clean
	// shutdown, including the one that follows the last track. By default
	// they are cleared and only a crash leaves them for the next start.
	KeepStateOnExit bool    `yaml:"keep_state_on_exit"`
}

// RenderConfig represents audio output configuration.
type RenderConfig struct {
	SampleRate int `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
}

// StoreConfig represents the persisted state backend.
type StoreConfig struct {
	Type     string         `yaml:"type" default:"file" validate:"oneof=file redis postgres memory"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// NotificationConfig represents the now-playing surface configuration.
type NotificationConfig struct {
	DefaultArtwork   string       `yaml:"default_artwork"`
	SendTimeoutMs    int          `yaml:"send_timeout_ms" default:"500" validate:"gte=10,lte=10000"`
	ResolveTimeoutMs int          `yaml:"resolve_timeout_ms" default:"3000" validate:"gte=100,lte=60000"`
	LastFM           LastFMConfig `yaml:"lastfm"`
}

// LastFMConfig represents Last.fm artwork lookup configuration.
// Lookup is disabled without an API key.
type LastFMConfig struct {
	APIKey    string `yaml:"api_key"`
	TimeoutMs int    `yaml:"timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("BRIDGE_TOKEN"); v != "" {
		c.Bridge.Token = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.Notification.LastFM.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" && c.Store.Type == "redis" {
		c.storeSetting("addr", v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Store.Type == "postgres" {
		c.storeSetting("dsn", v)
	}
}

func (c *Config) storeSetting(key string, value any) {
	if c.Store.Settings == nil {
		c.Store.Settings = make(map[string]any)
	}
	c.Store.Settings[key] = value
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if len(c.Library.Roots) == 0 && len(c.Library.Tracks) == 0 {
		return errors.New("library needs at least one root or track")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// StoreTimeout returns the persistence timeout.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Playback.StoreTimeoutMs) * time.Millisecond
}

// RenderBuffer returns the output buffer length.
func (c *Config) RenderBuffer() time.Duration {
	return time.Duration(c.Render.BufferMs) * time.Millisecond
}

// SendTimeout returns the per-subscriber notification timeout.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Notification.SendTimeoutMs) * time.Millisecond
}

// ResolveTimeout returns the artwork lookup timeout for one snapshot.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Notification.ResolveTimeoutMs) * time.Millisecond
}

// LastFMTimeout returns the Last.fm request timeout.
func (c *Config) LastFMTimeout() time.Duration {
	return time.Duration(c.Notification.LastFM.TimeoutMs) * time.Millisecond
}
