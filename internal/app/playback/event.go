package playback

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// EventType represents an input to the state machine.
type EventType int

const (
	EventStart              EventType = iota // Select a track by index and prepare it
	EventPrepareComplete                     // Render resource is ready
	EventPrepareError                        // Render resource could not be prepared
	EventUserPlay                            // Play command
	EventUserPause                           // Pause command
	EventUserNext                            // Next command
	EventUserPrevious                        // Previous command
	EventUserStop                            // Stop command
	EventFocusGained                         // Audio focus (re)gained
	EventFocusLostTransient                  // Audio focus lost for a short time
	EventFocusDuck                           // Audio focus lost, attenuated output allowed
	EventFocusLostPermanent                  // Audio focus lost for good
	EventTrackCompleted                      // Render resource reached the end of the track
	EventRenderError                         // Render resource failed during playback
	EventCallRinging                         // Incoming call is ringing
	EventCallOffHook                         // Call in progress
	EventCallIdle                            // No call
	EventRouteUnavailable                    // Audio route went away (headphones unplugged)

	eventStatus   // Query: report the current status
	eventShutdown // Teardown
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPrepareComplete:
		return "prepare_complete"
	case EventPrepareError:
		return "prepare_error"
	case EventUserPlay:
		return "play"
	case EventUserPause:
		return "pause"
	case EventUserNext:
		return "next"
	case EventUserPrevious:
		return "previous"
	case EventUserStop:
		return "stop"
	case EventFocusGained:
		return "focus_gained"
	case EventFocusLostTransient:
		return "focus_lost_transient"
	case EventFocusDuck:
		return "focus_duck"
	case EventFocusLostPermanent:
		return "focus_lost_permanent"
	case EventTrackCompleted:
		return "track_completed"
	case EventRenderError:
		return "render_error"
	case EventCallRinging:
		return "call_ringing"
	case EventCallOffHook:
		return "call_offhook"
	case EventCallIdle:
		return "call_idle"
	case EventRouteUnavailable:
		return "route_unavailable"
	case eventStatus:
		return "status"
	case eventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ParseCommand maps a transport command name to its event type.
// Only the user command surface is accepted.
func ParseCommand(name string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "play":
		return EventUserPlay, nil
	case "pause":
		return EventUserPause, nil
	case "next", "skip":
		return EventUserNext, nil
	case "previous", "prev":
		return EventUserPrevious, nil
	case "stop":
		return EventUserStop, nil
	case "start":
		return EventStart, nil
	default:
		return 0, errors.Newf("unknown command: %q", name)
	}
}

// Event is one entry of the state machine queue.
type Event struct {
	Type  EventType
	Index int   // Track index for EventStart
	Err   error // Cause for EventPrepareError and EventRenderError

	generation uint64 // Render resource generation; 0 for external events
	reply      chan result
}

// NewEvent creates an event of type t.
func NewEvent(t EventType) Event {
	return Event{Type: t}
}

// Start creates an EventStart for the track at index.
func Start(index int) Event {
	return Event{Type: EventStart, Index: index}
}

type result struct {
	status Status
	err    error
}

// Change is emitted after every state transition.
type Change struct {
	From  State
	To    State
	Cause EventType
	Index int
	Track *track.Track // Active track (nil when none)
	Err   error        // Reported failure that forced the transition
}

// Status is a point-in-time view of the state machine.
type Status struct {
	State          State
	Index          int
	Track          *track.Track
	PausedBy       string // "user", "focus", "call", "route" or empty
	ResumePosition int    // Milliseconds
	Ducked         bool
	Length         int // Playlist length
}
