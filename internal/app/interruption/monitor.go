// Package interruption turns telephony and audio route signals into
// playback events.
package interruption

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/playback"
)

// Sink receives the translated events.
type Sink interface {
	Submit(ev playback.Event) bool
}

// Monitor subscribes to a CallSource and a RouteSource and forwards each
// signal, in arrival order, to the sink.
type Monitor struct {
	calls  CallSource
	routes RouteSource
	sink   Sink

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	inCall  bool
}

// NewMonitor creates a monitor. Either source may be nil.
func NewMonitor(calls CallSource, routes RouteSource, sink Sink) *Monitor {
	return &Monitor{
		calls:  calls,
		routes: routes,
		sink:   sink,
	}
}

// Start subscribes to the sources. It is a no-op while already running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	var callCh <-chan CallState
	if m.calls != nil {
		callCh = m.calls.CallStates()
	}
	var routeCh <-chan RouteChange
	if m.routes != nil {
		routeCh = m.routes.RouteChanges()
	}

	go m.run(ctx, callCh, routeCh, m.done)
	zlog.Debug().Msg("interruption: monitor started")
}

// Stop unsubscribes and waits for the monitor goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	zlog.Debug().Msg("interruption: monitor stopped")
}

func (m *Monitor) run(ctx context.Context, callCh <-chan CallState, routeCh <-chan RouteChange, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-callCh:
			if !ok {
				callCh = nil
				continue
			}
			m.onCall(s)
		case r, ok := <-routeCh:
			if !ok {
				routeCh = nil
				continue
			}
			m.onRoute(r)
		}
	}
}

func (m *Monitor) onCall(s CallState) {
	var ev playback.EventType
	switch s {
	case CallRinging:
		ev = playback.EventCallRinging
		m.inCall = true
	case CallOffHook:
		ev = playback.EventCallOffHook
		m.inCall = true
	case CallIdle:
		if !m.inCall {
			zlog.Debug().Msg("interruption: call idle without a call in progress, ignored")
			return
		}
		m.inCall = false
		ev = playback.EventCallIdle
	default:
		zlog.Warn().Msgf("interruption: unknown call state %d", s)
		return
	}
	m.forward(ev)
}

func (m *Monitor) onRoute(r RouteChange) {
	if r != RouteUnavailable {
		zlog.Debug().Msgf("interruption: route %s ignored", r)
		return
	}
	m.forward(playback.EventRouteUnavailable)
}

func (m *Monitor) forward(t playback.EventType) {
	zlog.Info().Msgf("interruption: %s", t)
	if !m.sink.Submit(playback.NewEvent(t)) {
		zlog.Debug().Msgf("interruption: sink closed, dropped %s", t)
	}
}
