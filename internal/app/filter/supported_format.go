package filter

import (
	"context"
	"slices"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// SupportedFormatConfig represents the configuration for SupportedFormatFilter.
type SupportedFormatConfig struct {
	Extensions []string `yaml:"extensions" mapstructure:"extensions" default:"[\".mp3\",\".wav\",\".flac\"]" validate:"min=1,dive,required"`
}

// SupportedFormatFilter rejects tracks the renderer cannot decode.
type SupportedFormatFilter struct {
	extensions []string
}

// NewSupportedFormatFilter creates a filter accepting the given extensions.
func NewSupportedFormatFilter(extensions ...string) *SupportedFormatFilter {
	return &SupportedFormatFilter{extensions: normalizeExtensions(extensions)}
}

func (f *SupportedFormatFilter) Name() string {
	return "supported_format_filter"
}

func (f *SupportedFormatFilter) Description() string {
	return "Rejects tracks whose file extension has no decoder"
}

func (f *SupportedFormatFilter) ReturnCodes() []string {
	return []string{"unsupported_format"}
}

func (f *SupportedFormatFilter) ValidateConfig(settings map[string]any) error {
	var config SupportedFormatConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.extensions = normalizeExtensions(config.Extensions)
	zlog.Info().Msgf("supported format filter config: %v", f.extensions)
	return nil
}

func (f *SupportedFormatFilter) Check(_ context.Context, t track.Track, _ []track.Track) Result {
	if len(f.extensions) == 0 {
		return Accept()
	}
	if slices.Contains(f.extensions, t.Ext()) {
		return Accept()
	}
	return Reject("unsupported_format")
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func init() {
	Register("supported_format_filter", func() Filter {
		return &SupportedFormatFilter{}
	})
}
