package interruption

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// CallState is the telephony state reported by the platform.
type CallState int

const (
	CallIdle    CallState = iota // No call
	CallRinging                  // Incoming call is ringing
	CallOffHook                  // Call in progress
)

// String returns the string representation of the call state.
func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallRinging:
		return "ringing"
	case CallOffHook:
		return "offhook"
	default:
		return "unknown"
	}
}

// ParseCallState parses a call state name.
func ParseCallState(name string) (CallState, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "idle":
		return CallIdle, nil
	case "ringing":
		return CallRinging, nil
	case "offhook", "off_hook":
		return CallOffHook, nil
	default:
		return 0, errors.Newf("unknown call state: %q", name)
	}
}

// RouteChange is an audio output route change.
type RouteChange int

const (
	RouteUnavailable RouteChange = iota // Output route went away (becoming noisy)
	RouteAvailable                      // Output route connected
)

// String returns the string representation of the route change.
func (r RouteChange) String() string {
	switch r {
	case RouteUnavailable:
		return "unavailable"
	case RouteAvailable:
		return "available"
	default:
		return "unknown"
	}
}

// ParseRouteChange parses a route change name.
func ParseRouteChange(name string) (RouteChange, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "unavailable", "noisy":
		return RouteUnavailable, nil
	case "available", "connected":
		return RouteAvailable, nil
	default:
		return 0, errors.Newf("unknown route change: %q", name)
	}
}
