package focus

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/eventq"
)

// Errors
var (
	ErrFocusDenied = errors.New("audio focus denied")
	ErrNoHolder    = errors.New("no focus holder")
)

// Holder receives focus changes from an Authority.
type Holder interface {
	FocusChanged(s State)
}

// Authority is the audio routing authority that grants focus.
// Request reports whether focus was granted; the holder then receives
// changes asynchronously until it abandons the request.
type Authority interface {
	Request(h Holder) bool
	Abandon(h Holder)
}

// Arbiter keeps at most one outstanding focus request and turns authority
// callbacks into an ordered stream of State changes.
type Arbiter struct {
	mu        sync.Mutex
	authority Authority
	state     State
	requested bool
	closed    bool

	pending *eventq.Queue[State]
	changes chan State
	stop    chan struct{}
	done    chan struct{}
}

// NewArbiter creates an arbiter on top of authority.
func NewArbiter(authority Authority) *Arbiter {
	a := &Arbiter{
		authority: authority,
		state:     StateNone,
		pending:   eventq.New[State](),
		changes:   make(chan State),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go a.pump()
	return a
}

// Changes returns the ordered stream of focus changes reported by the
// authority. The channel is closed by Close.
func (a *Arbiter) Changes() <-chan State {
	return a.changes
}

// Request asks the authority for focus. While a request is outstanding a
// second call is a no-op that returns the current grant status.
func (a *Arbiter) Request() bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	if a.requested {
		// A ducked holder may still play; a transient loss may not.
		granted := a.state == StateGained || a.state == StateLostTransientDuck
		a.mu.Unlock()
		return granted
	}
	a.mu.Unlock()

	// The authority may call back into FocusChanged synchronously.
	granted := a.authority.Request(a)

	a.mu.Lock()
	defer a.mu.Unlock()
	if granted {
		a.requested = true
		a.state = StateGained
	} else {
		a.state = StateNone
	}
	zlog.Debug().Msgf("focus: request granted=%v", granted)
	return granted
}

// Release abandons the outstanding request. Releasing twice is harmless.
func (a *Arbiter) Release() {
	a.mu.Lock()
	if !a.requested {
		a.mu.Unlock()
		return
	}
	a.requested = false
	a.state = StateNone
	a.mu.Unlock()

	a.authority.Abandon(a)
	zlog.Debug().Msg("focus: released")
}

// Held reports whether a request is outstanding.
func (a *Arbiter) Held() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requested
}

// State returns the last known focus state.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// FocusChanged implements Holder.
func (a *Arbiter) FocusChanged(s State) {
	a.mu.Lock()
	if !a.requested || a.closed {
		a.mu.Unlock()
		zlog.Debug().Msgf("focus: ignoring change without outstanding request: %s", s)
		return
	}
	a.state = s
	if s == StateLostPermanent {
		// The authority has dropped us; a new request is needed.
		a.requested = false
	}
	a.mu.Unlock()

	a.pending.Push(s)
}

// Close releases focus and closes the change stream.
func (a *Arbiter) Close() {
	a.Release()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.pending.Close()
	close(a.stop)
	<-a.done
}

func (a *Arbiter) pump() {
	defer close(a.done)
	defer close(a.changes)

	ctx := context.Background()
	for {
		s, err := a.pending.Pop(ctx)
		if err != nil {
			return
		}
		select {
		case a.changes <- s:
		case <-a.stop:
			return
		}
	}
}
