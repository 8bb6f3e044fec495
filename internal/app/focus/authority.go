package focus

import (
	"sync"

	zlog "github.com/rs/zerolog/log"
)

// SignalAuthority is an in-process Authority. It grants requests unless it
// is set to deny, and forwards externally reported changes to the holder.
type SignalAuthority struct {
	mu     sync.Mutex
	holder Holder
	deny   bool
}

// NewSignalAuthority creates an authority. When deny is true every request
// is refused.
func NewSignalAuthority(deny bool) *SignalAuthority {
	return &SignalAuthority{deny: deny}
}

// Request implements Authority.
func (a *SignalAuthority) Request(h Holder) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deny {
		zlog.Warn().Msg("focus authority: request denied")
		return false
	}
	a.holder = h
	return true
}

// Abandon implements Authority.
func (a *SignalAuthority) Abandon(h Holder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder == h {
		a.holder = nil
	}
}

// SetDeny changes whether future requests are refused.
func (a *SignalAuthority) SetDeny(deny bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deny = deny
}

// Notify delivers a focus change to the current holder.
// A permanent loss detaches the holder.
func (a *SignalAuthority) Notify(s State) error {
	a.mu.Lock()
	h := a.holder
	if s == StateLostPermanent {
		a.holder = nil
	}
	a.mu.Unlock()

	if h == nil {
		return ErrNoHolder
	}
	h.FocusChanged(s)
	return nil
}
