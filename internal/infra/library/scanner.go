// Package library builds the track list from the local media folders.
package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// Sort orders
const (
	SortPath  = "path"  // Lexical file path
	SortAlbum = "album" // Artist, album, disc and track number, then path
)

// Config holds scanner configuration.
type Config struct {
	Roots      []string // Directories or files to scan
	Extensions []string // Lower-case extensions with the leading dot
	Sort       string   // SortPath or SortAlbum
}

// Scanner walks media folders and reads tag metadata.
type Scanner struct {
	cfg Config
}

// NewScanner creates a scanner.
func NewScanner(cfg Config) *Scanner {
	if cfg.Sort == "" {
		cfg.Sort = SortPath
	}
	return &Scanner{cfg: cfg}
}

type entry struct {
	track track.Track
	disc  int
	num   int
}

// Scan returns the tracks found under the configured roots. Unreadable
// files are skipped; a missing root is an error.
func (s *Scanner) Scan(ctx context.Context) ([]track.Track, error) {
	var entries []entry
	seen := make(map[string]bool)

	for _, root := range s.cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s", root)
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == abs {
					return err
				}
				zlog.Warn().Err(err).Msgf("library: skipping %s", path)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				if path != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.accepts(path) || seen[path] {
				return nil
			}
			seen[path] = true
			entries = append(entries, readEntry(path))
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", root)
		}
	}

	s.sort(entries)
	tracks := make([]track.Track, len(entries))
	for i, e := range entries {
		tracks[i] = e.track
	}
	zlog.Info().Msgf("library: %d tracks found in %d roots", len(tracks), len(s.cfg.Roots))
	return tracks, nil
}

func (s *Scanner) accepts(path string) bool {
	if len(s.cfg.Extensions) == 0 {
		return true
	}
	return slices.Contains(s.cfg.Extensions, strings.ToLower(filepath.Ext(path)))
}

func (s *Scanner) sort(entries []entry) {
	if s.cfg.Sort != SortAlbum {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].track.Locator < entries[j].track.Locator
		})
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.track.Artist != b.track.Artist {
			return a.track.Artist < b.track.Artist
		}
		if a.track.Album != b.track.Album {
			return a.track.Album < b.track.Album
		}
		if a.disc != b.disc {
			return a.disc < b.disc
		}
		if a.num != b.num {
			return a.num < b.num
		}
		return a.track.Locator < b.track.Locator
	})
}

// readEntry reads tags from path. Files without tags get their file name
// as title.
func readEntry(path string) entry {
	e := entry{track: track.Track{Locator: path}}
	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	file, err := os.Open(path)
	if err != nil {
		zlog.Debug().Err(err).Msgf("library: cannot open %s", path)
		e.track.Title = fallback
		return e
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		// If no tags, use basic info from the file name
		e.track.Title = fallback
		return e
	}

	e.track.Title = getOrDefault(metadata.Title(), fallback)
	e.track.Artist = metadata.Artist()
	if e.track.Artist == "" {
		e.track.Artist = metadata.AlbumArtist()
	}
	e.track.Album = metadata.Album()
	e.num, _ = metadata.Track()
	e.disc, _ = metadata.Disc()
	return e
}

// getOrDefault returns the value if non-empty, otherwise returns the default
func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
