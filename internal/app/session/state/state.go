// Package state tracks the lifecycle of a playback session.
package state

import (
	"sync"
	"time"
)

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseLoading    Phase = iota // Playlist is being loaded
	PhaseReady                   // Loaded, actors not started
	PhaseRunning                 // Actors started
	PhaseTerminated              // Session has ended
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseRunning:
		return "running"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Info is a snapshot of the session lifecycle.
type Info struct {
	SessionID    string
	PlaylistName string
	Phase        Phase
	StartedAt    time.Time // Zero until running
	EndedAt      time.Time // Zero until terminated
	Rejected     int       // Tracks refused by admission filters
	Err          error     // Cause of termination, if any
}

// Tracker records lifecycle transitions. Phases only move forward.
type Tracker struct {
	mu   sync.RWMutex
	info Info
	now  func() time.Time
}

// New creates a tracker in PhaseLoading.
func New(sessionID string) *Tracker {
	return &Tracker{
		info: Info{SessionID: sessionID, Phase: PhaseLoading},
		now:  time.Now,
	}
}

// Loaded records the playlist and moves to PhaseReady.
func (t *Tracker) Loaded(name string, rejected int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advance(PhaseReady) {
		t.info.PlaylistName = name
		t.info.Rejected = rejected
	}
}

// Running moves to PhaseRunning.
func (t *Tracker) Running() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advance(PhaseRunning) {
		t.info.StartedAt = t.now()
	}
}

// Terminated moves to PhaseTerminated. It reports false if the session
// had already ended; the first cause wins.
func (t *Tracker) Terminated(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.advance(PhaseTerminated) {
		return false
	}
	t.info.EndedAt = t.now()
	t.info.Err = err
	return true
}

// Info returns the current snapshot.
func (t *Tracker) Info() Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info.Phase
}

func (t *Tracker) advance(p Phase) bool {
	if p <= t.info.Phase {
		return false
	}
	t.info.Phase = p
	return true
}
