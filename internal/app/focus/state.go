// Package focus arbitrates the shared audio output with the routing authority.
package focus

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// State represents the audio focus held by this process.
type State int

const (
	StateNone              State = iota // No focus requested
	StateGained                         // Exclusive focus granted
	StateLostTransient                  // Lost for a short time, must pause
	StateLostTransientDuck              // Lost for a short time, may keep playing attenuated
	StateLostPermanent                  // Lost for an unbounded time, must stop
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateGained:
		return "gained"
	case StateLostTransient:
		return "lost_transient"
	case StateLostTransientDuck:
		return "lost_transient_duck"
	case StateLostPermanent:
		return "lost_permanent"
	default:
		return "unknown"
	}
}

// ParseState parses a focus change name as reported by a platform bridge.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gain", "gained":
		return StateGained, nil
	case "loss_transient", "lost_transient", "transient":
		return StateLostTransient, nil
	case "duck", "loss_transient_can_duck", "lost_transient_duck":
		return StateLostTransientDuck, nil
	case "loss", "lost", "lost_permanent":
		return StateLostPermanent, nil
	default:
		return StateNone, errors.Newf("unknown focus state: %q", s)
	}
}
