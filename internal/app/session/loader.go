package session

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/filter"
	"github.com/osa030/bgplayer/internal/domain/playlist"
	"github.com/osa030/bgplayer/internal/domain/track"
	"github.com/osa030/bgplayer/internal/infra/config"
	"github.com/osa030/bgplayer/internal/infra/library"
	"github.com/osa030/bgplayer/internal/infra/store"
)

// TrackSource lists the tracks of a media library.
type TrackSource interface {
	Scan(ctx context.Context) ([]track.Track, error)
}

// loaded is the outcome of loading the playlist.
type loaded struct {
	cursor   *playlist.Cursor
	rejected []filter.Rejection
	restored bool // Playlist came from the store
}

// load builds the playlist and restores the persisted cursor position.
// Unless a rescan is requested, a non-empty stored playlist wins over the
// configured library.
func load(ctx context.Context, cfg *config.Config, st store.Store, source TrackSource) (*loaded, error) {
	var (
		tracks   []track.Track
		rejected []filter.Rejection
		restored bool
	)

	if !cfg.Library.Rescan {
		stored, err := st.LoadPlaylist(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load stored playlist")
		}
		if len(stored) > 0 {
			tracks = stored
			restored = true
			zlog.Info().Msgf("session: restored %d tracks from store", len(stored))
		}
	}

	if !restored {
		candidates, err := collect(ctx, cfg, source)
		if err != nil {
			return nil, err
		}

		chain, err := filter.Build(filterConfigs(cfg))
		if err != nil {
			return nil, errors.Wrap(err, "failed to build filters")
		}
		tracks, rejected = chain.Apply(ctx, candidates)

		if err := st.StorePlaylist(ctx, tracks); err != nil {
			return nil, errors.Wrap(err, "failed to store playlist")
		}
		// A new playlist invalidates any stored position.
		if err := st.StoreIndex(ctx, store.NoIndex); err != nil {
			return nil, errors.Wrap(err, "failed to reset stored index")
		}
	}

	cursor := playlist.NewCursor(playlist.New(cfg.Library.Name, tracks))
	if restored {
		restoreIndex(ctx, st, cursor)
	}

	zlog.Info().Msgf("session: playlist %q loaded with %d tracks (%d rejected), index=%d",
		cfg.Library.Name, cursor.Len(), len(rejected), cursor.Index())
	return &loaded{cursor: cursor, rejected: rejected, restored: restored}, nil
}

// collect returns the configured tracks followed by the scanned ones.
func collect(ctx context.Context, cfg *config.Config, source TrackSource) ([]track.Track, error) {
	tracks := make([]track.Track, 0, len(cfg.Library.Tracks))
	for _, tc := range cfg.Library.Tracks {
		tracks = append(tracks, track.Track{
			Locator: tc.Locator,
			Title:   tc.Title,
			Album:   tc.Album,
			Artist:  tc.Artist,
		})
	}

	if source == nil && len(cfg.Library.Roots) > 0 {
		source = library.NewScanner(library.Config{
			Roots:      cfg.Library.Roots,
			Extensions: cfg.Library.Extensions,
			Sort:       cfg.Library.Sort,
		})
	}
	if source != nil {
		scanned, err := source.Scan(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan library")
		}
		tracks = append(tracks, scanned...)
	}
	return tracks, nil
}

func restoreIndex(ctx context.Context, st store.Store, cursor *playlist.Cursor) {
	index, err := st.LoadIndex(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("session: failed to load stored index")
		return
	}
	if index == store.NoIndex {
		return
	}
	if err := cursor.SetIndex(index); err != nil {
		zlog.Warn().Msgf("session: stored index %d discarded: %v", index, err)
	}
}

func filterConfigs(cfg *config.Config) map[string]filter.Config {
	out := make(map[string]filter.Config, len(cfg.Filters))
	for name, fc := range cfg.Filters {
		out[name] = filter.Config{Enabled: cfg.IsFilterEnabled(name), Settings: fc.Settings}
	}
	return out
}
