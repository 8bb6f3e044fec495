package filter

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// SizeLimitConfig represents the configuration for SizeLimitFilter.
type SizeLimitConfig struct {
	MinKB int64 `yaml:"min_kb" mapstructure:"min_kb" default:"1" validate:"gte=0"`
	MaxMB int64 `yaml:"max_mb" mapstructure:"max_mb" validate:"gte=0"` // 0 means no limit
}

// SizeLimitFilter rejects local files that are truncated or too large.
type SizeLimitFilter struct {
	config *SizeLimitConfig
}

func (f *SizeLimitFilter) Name() string {
	return "size_limit_filter"
}

func (f *SizeLimitFilter) Description() string {
	return "Checks if the file size is within allowed limits"
}

func (f *SizeLimitFilter) ReturnCodes() []string {
	return []string{"size_limit_exceeded"}
}

func (f *SizeLimitFilter) ValidateConfig(settings map[string]any) error {
	var config SizeLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	// Custom validation: min cannot be greater than max
	if config.MaxMB > 0 && config.MinKB > config.MaxMB*1024 {
		return errors.New("min_kb cannot be greater than max_mb")
	}
	f.config = &config
	zlog.Info().Msgf("size limit filter config: %+v", config)
	return nil
}

func (f *SizeLimitFilter) Check(_ context.Context, t track.Track, _ []track.Track) Result {
	// If config is not set, accept all tracks
	if f.config == nil {
		return Accept()
	}
	info, err := os.Stat(t.Locator)
	if err != nil {
		// Not a local file; missing_file_filter reports absent files.
		return Accept()
	}

	size := info.Size()
	if size < f.config.MinKB*1024 {
		return Reject("size_limit_exceeded")
	}
	if f.config.MaxMB > 0 && size > f.config.MaxMB*1024*1024 {
		return Reject("size_limit_exceeded")
	}
	return Accept()
}

func init() {
	Register("size_limit_filter", func() Filter {
		return &SizeLimitFilter{}
	})
}
