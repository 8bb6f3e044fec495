// Package store persists the playlist and the cursor index across
// process restarts.
package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// NoIndex is returned by LoadIndex when no index was stored.
const NoIndex = -1

// Store is the persisted state store.
// Writes replace the previous value; Clear removes everything.
type Store interface {
	StorePlaylist(ctx context.Context, tracks []track.Track) error
	LoadPlaylist(ctx context.Context) ([]track.Track, error)
	StoreIndex(ctx context.Context, index int) error
	LoadIndex(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// Backend types
const (
	TypeFile     = "file"
	TypeRedis    = "redis"
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

// Config selects a backend and carries its settings.
type Config struct {
	Type     string
	Settings map[string]any
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeFile, "":
		var c FileConfig
		if err := decodeSettings(cfg.Settings, &c); err != nil {
			return nil, errors.Wrap(err, "file store settings")
		}
		zlog.Info().Msgf("store: file %s", c.Path)
		return NewFile(c.Path), nil
	case TypeRedis:
		var c RedisConfig
		if err := decodeSettings(cfg.Settings, &c); err != nil {
			return nil, errors.Wrap(err, "redis store settings")
		}
		zlog.Info().Msgf("store: redis %s db=%d prefix=%s", c.Addr, c.DB, c.Prefix)
		return OpenRedis(ctx, c)
	case TypePostgres:
		var c PostgresConfig
		if err := decodeSettings(cfg.Settings, &c); err != nil {
			return nil, errors.Wrap(err, "postgres store settings")
		}
		zlog.Info().Msg("store: postgres")
		return OpenPostgres(ctx, c)
	case TypeMemory:
		zlog.Info().Msg("store: memory (state is not kept across restarts)")
		return NewMemory(), nil
	default:
		return nil, errors.Newf("unknown store type: %s", cfg.Type)
	}
}

func decodeSettings(settings map[string]any, out any) error {
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
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

func copyTracks(tracks []track.Track) []track.Track {
	if tracks == nil {
		return nil
	}
	out := make([]track.Track, len(tracks))
	copy(out, tracks)
	return out
}
