package playlist

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// Unset is the cursor index when no track is selected.
const Unset = -1

// Errors
var (
	ErrEmptyPlaylist   = errors.New("playlist is empty")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Cursor tracks the current position within a playlist.
// If the index is not Unset it always satisfies 0 <= index < Len.
type Cursor struct {
	playlist *Playlist
	index    int
}

// NewCursor creates an unset cursor over p.
func NewCursor(p *Playlist) *Cursor {
	if p == nil {
		p = New("", nil)
	}
	return &Cursor{playlist: p, index: Unset}
}

// Playlist returns the underlying playlist.
func (c *Cursor) Playlist() *Playlist {
	return c.playlist
}

// Len returns the playlist length.
func (c *Cursor) Len() int {
	return c.playlist.Len()
}

// Index returns the current index or Unset.
func (c *Cursor) Index() int {
	return c.index
}

// Next advances the cursor, wrapping from the last track to the first.
// An unset cursor moves to the first track.
func (c *Cursor) Next() (track.Track, error) {
	n := c.playlist.Len()
	if n == 0 {
		return track.Track{}, ErrEmptyPlaylist
	}
	if c.index == Unset || c.index == n-1 {
		c.index = 0
	} else {
		c.index++
	}
	return c.playlist.At(c.index), nil
}

// Previous moves the cursor back, wrapping from the first track to the last.
// An unset cursor moves to the last track.
func (c *Cursor) Previous() (track.Track, error) {
	n := c.playlist.Len()
	if n == 0 {
		return track.Track{}, ErrEmptyPlaylist
	}
	if c.index == Unset || c.index == 0 {
		c.index = n - 1
	} else {
		c.index--
	}
	return c.playlist.At(c.index), nil
}

// SetIndex moves the cursor to i.
func (c *Cursor) SetIndex(i int) error {
	n := c.playlist.Len()
	if n == 0 {
		return ErrEmptyPlaylist
	}
	if i < 0 || i >= n {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0,%d)", i, n)
	}
	c.index = i
	return nil
}

// Current returns the selected track. ok is false when the cursor is unset
// or the playlist is empty.
func (c *Cursor) Current() (t track.Track, ok bool) {
	if c.index == Unset || c.playlist.Len() == 0 {
		return track.Track{}, false
	}
	return c.playlist.At(c.index), true
}

// Reset clears the selection.
func (c *Cursor) Reset() {
	c.index = Unset
}
