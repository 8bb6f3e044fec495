package notification

import (
	"slices"

	"github.com/osa030/bgplayer/internal/app/playback"
	"github.com/osa030/bgplayer/internal/domain/track"
)

// Capability is a transport control offered to the now-playing surface.
type Capability string

const (
	CapPlay     Capability = "play"
	CapPause    Capability = "pause"
	CapNext     Capability = "next"
	CapPrevious Capability = "previous"
	CapStop     Capability = "stop"
)

// Capabilities returns the controls offered in state s.
func Capabilities(s playback.State) []Capability {
	switch s {
	case playback.StatePlaying:
		return []Capability{CapPause, CapNext, CapPrevious, CapStop}
	case playback.StatePaused:
		return []Capability{CapPlay, CapNext, CapPrevious, CapStop}
	case playback.StatePreparing:
		return []Capability{CapNext, CapPrevious, CapStop}
	case playback.StateStopped:
		return []Capability{CapPlay, CapNext, CapPrevious}
	default:
		return nil
	}
}

// Snapshot is the metadata shown on the now-playing surface.
type Snapshot struct {
	Locator      string       `json:"locator,omitempty"`
	Title        string       `json:"title,omitempty"`
	Album        string       `json:"album,omitempty"`
	Artist       string       `json:"artist,omitempty"`
	ArtworkRef   string       `json:"artwork_ref,omitempty"`
	State        string       `json:"state"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Cleared      bool         `json:"cleared"`
	SequenceNo   uint64       `json:"sequence_no"`
}

func newSnapshot(t track.Track, s playback.State, artwork string) Snapshot {
	return Snapshot{
		Locator:      t.Locator,
		Title:        t.DisplayTitle(),
		Album:        t.Album,
		Artist:       t.Artist,
		ArtworkRef:   artwork,
		State:        s.String(),
		Capabilities: Capabilities(s),
	}
}

func clearedSnapshot() Snapshot {
	return Snapshot{State: playback.StateIdle.String(), Cleared: true}
}

// sameContent reports whether a and b show the same thing, ignoring the
// sequence number.
func sameContent(a, b Snapshot) bool {
	return a.Locator == b.Locator &&
		a.Title == b.Title &&
		a.Album == b.Album &&
		a.Artist == b.Artist &&
		a.ArtworkRef == b.ArtworkRef &&
		a.State == b.State &&
		a.Cleared == b.Cleared &&
		slices.Equal(a.Capabilities, b.Capabilities)
}
