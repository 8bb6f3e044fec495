package interruption

import (
	"context"
	"sync"

	"github.com/osa030/bgplayer/internal/app/eventq"
)

// CallSource delivers telephony state changes in order.
type CallSource interface {
	CallStates() <-chan CallState
}

// RouteSource delivers audio route changes in order.
type RouteSource interface {
	RouteChanges() <-chan RouteChange
}

// Feed is a CallSource and RouteSource driven by explicit reports, e.g.
// from the platform bridge. Reports never block and are never dropped.
type Feed struct {
	calls  *eventq.Queue[CallState]
	routes *eventq.Queue[RouteChange]

	callCh  chan CallState
	routeCh chan RouteChange

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewFeed creates a feed. Close must be called to release its goroutines.
func NewFeed() *Feed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		calls:   eventq.New[CallState](),
		routes:  eventq.New[RouteChange](),
		callCh:  make(chan CallState),
		routeCh: make(chan RouteChange),
		cancel:  cancel,
	}
	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		pump(ctx, f.calls, f.callCh)
	}()
	go func() {
		defer f.wg.Done()
		pump(ctx, f.routes, f.routeCh)
	}()
	return f
}

// ReportCall records a call state change. It reports false after Close.
func (f *Feed) ReportCall(s CallState) bool {
	return f.calls.Push(s)
}

// ReportRoute records a route change. It reports false after Close.
func (f *Feed) ReportRoute(r RouteChange) bool {
	return f.routes.Push(r)
}

// CallStates implements CallSource.
func (f *Feed) CallStates() <-chan CallState {
	return f.callCh
}

// RouteChanges implements RouteSource.
func (f *Feed) RouteChanges() <-chan RouteChange {
	return f.routeCh
}

// Close stops the feed and closes both channels.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.calls.Close()
		f.routes.Close()
		f.cancel()
		f.wg.Wait()
	})
}

func pump[T any](ctx context.Context, q *eventq.Queue[T], out chan<- T) {
	defer close(out)
	for {
		v, err := q.Pop(ctx)
		if err != nil {
			return
		}
		select {
		case out <- v:
		case <-ctx.Done():
			return
		}
	}
}
