// Package filter provides the admission filters applied to tracks when a
// playlist is loaded.
package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "unsupported_format", "duplicate_track", "missing_file"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check decides whether t is admitted after the tracks already admitted.
	Check(ctx context.Context, t track.Track, admitted []track.Track) Result
}

// Config enables a filter and carries its settings.
type Config struct {
	Enabled  bool
	Settings map[string]any
}

type registration struct {
	order   int
	factory func() Filter
}

// registry holds registered filter factories.
var registry = make(map[string]registration)

// Register registers a filter factory. Filters run in registration order.
func Register(name string, factory func() Filter) {
	registry[name] = registration{order: len(registry), factory: factory}
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	out := make(map[string]func() Filter, len(registry))
	for name, r := range registry {
		out[name] = r.factory
	}
	return out
}

// Build creates a chain of the enabled filters. Unknown names and invalid
// settings are errors.
func Build(configs map[string]Config) (*Chain, error) {
	names := make([]string, 0, len(configs))
	for name, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return registry[names[i]].order < registry[names[j]].order
	})

	chain := NewChain()
	for _, name := range names {
		f := registry[name].factory()
		if err := f.ValidateConfig(configs[name].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
	}
	return chain, nil
}

// decodeSettings decodes settings into out, then applies defaults and
// validation tags.
func decodeSettings(settings map[string]any, out any) error {
	// Decode map[string]any to struct using mapstructure
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
