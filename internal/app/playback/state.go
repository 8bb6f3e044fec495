// Package playback provides the playback state machine that owns the audio
// output for the session.
package playback

// State represents the playback state.
type State int

const (
	StateIdle      State = iota // Nothing selected or session not started
	StatePreparing              // Render resource is being prepared
	StatePlaying                // Track is audible
	StatePaused                 // Track is paused at a resume position
	StateStopped                // Rendering stopped and resource released
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// pauseCause records why playback is paused. Only focus and call pauses
// resume on their own.
type pauseCause int

const (
	causeNone pauseCause = iota
	causeUser
	causeFocus
	causeCall
	causeRoute
)

func (p pauseCause) String() string {
	switch p {
	case causeNone:
		return ""
	case causeUser:
		return "user"
	case causeFocus:
		return "focus"
	case causeCall:
		return "call"
	case causeRoute:
		return "route"
	default:
		return "unknown"
	}
}
