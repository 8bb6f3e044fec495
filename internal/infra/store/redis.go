package store

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// RedisConfig represents the redis backend settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" default:"localhost:6379" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix" default:"bgplayer" validate:"required"`
}

// Redis stores the playlist as a JSON list under <prefix>:playlist and the
// index as an integer under <prefix>:index.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Addr)
	}
	return NewRedis(client, cfg.Prefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) playlistKey() string { return r.prefix + ":playlist" }
func (r *Redis) indexKey() string    { return r.prefix + ":index" }

func (r *Redis) StorePlaylist(ctx context.Context, tracks []track.Track) error {
	if tracks == nil {
		tracks = []track.Track{}
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return errors.Wrap(err, "failed to encode playlist")
	}
	if err := r.client.Set(ctx, r.playlistKey(), data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to store playlist")
	}
	return nil
}

func (r *Redis) LoadPlaylist(ctx context.Context) ([]track.Track, error) {
	data, err := r.client.Get(ctx, r.playlistKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load playlist")
	}
	var tracks []track.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, errors.Wrap(err, "failed to decode playlist")
	}
	return tracks, nil
}

func (r *Redis) StoreIndex(ctx context.Context, index int) error {
	if err := r.client.Set(ctx, r.indexKey(), index, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to store index")
	}
	return nil
}

func (r *Redis) LoadIndex(ctx context.Context) (int, error) {
	index, err := r.client.Get(ctx, r.indexKey()).Int()
	if errors.Is(err, redis.Nil) {
		return NoIndex, nil
	}
	if err != nil {
		return NoIndex, errors.Wrap(err, "failed to load index")
	}
	return index, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.playlistKey(), r.indexKey()).Err(); err != nil {
		return errors.Wrap(err, "failed to clear state")
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
