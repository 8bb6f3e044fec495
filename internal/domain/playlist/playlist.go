// Package playlist provides the Playlist domain entity and its cursor.
package playlist

import "github.com/osa030/bgplayer/internal/domain/track"

// Playlist is an ordered, immutable list of tracks for one session.
type Playlist struct {
	name   string
	tracks []track.Track
}

// New creates a playlist. The input slice is copied.
func New(name string, tracks []track.Track) *Playlist {
	cp := make([]track.Track, len(tracks))
	copy(cp, tracks)
	return &Playlist{name: name, tracks: cp}
}

// Name returns the playlist name.
func (p *Playlist) Name() string {
	return p.name
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.tracks)
}

// At returns the track at index i. The caller must check bounds.
func (p *Playlist) At(i int) track.Track {
	return p.tracks[i]
}

// Tracks returns a copy of the tracks in insertion order.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, p.Len())
	if p != nil {
		copy(result, p.tracks)
	}
	return result
}

// Locators returns all track locators in order.
func (p *Playlist) Locators() []string {
	ids := make([]string, p.Len())
	for i := range ids {
		ids[i] = p.tracks[i].Locator
	}
	return ids
}

// IndexOf returns the index of the track with the given locator, or -1.
func (p *Playlist) IndexOf(locator string) int {
	for i := 0; i < p.Len(); i++ {
		if p.tracks[i].Locator == locator {
			return i
		}
	}
	return -1
}
