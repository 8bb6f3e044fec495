// Package notification mirrors the active track and playback state to the
// now-playing surfaces.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/eventq"
	"github.com/osa030/bgplayer/internal/app/playback"
	"github.com/osa030/bgplayer/internal/domain/track"
)

// Sink represents a now-playing surface for a subscriber.
type Sink interface {
	Send(s Snapshot) error
}

// ArtworkResolver looks up the artwork reference of a track.
type ArtworkResolver interface {
	Artwork(ctx context.Context, t track.Track) (string, error)
}

// Options configures the manager.
type Options struct {
	DefaultArtwork string        // Used when the resolver has nothing
	SendTimeout    time.Duration // Per subscriber send timeout
	ResolveTimeout time.Duration // Artwork lookup timeout
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id   string
	sink Sink
}

type request struct {
	track track.Track
	state playback.State
	clear bool
}

// Manager publishes snapshots. Publish and Clear never block: requests are
// queued and a single worker resolves artwork, drops repeats, stamps the
// sequence number and broadcasts, so subscribers observe requests in order.
type Manager struct {
	resolver ArtworkResolver
	opts     Options

	mu            sync.RWMutex
	subscriptions map[string]*subscription

	latestMu   sync.RWMutex
	latest     Snapshot
	hasLatest  bool
	sequenceNo uint64

	artworkMu sync.Mutex
	artwork   map[string]string

	queue     *eventq.Queue[request]
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a new notification manager. resolver may be nil.
func NewManager(resolver ArtworkResolver, opts Options) *Manager {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 500 * time.Millisecond
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 3 * time.Second
	}
	m := &Manager{
		resolver:      resolver,
		opts:          opts,
		subscriptions: make(map[string]*subscription),
		artwork:       make(map[string]string),
		queue:         eventq.New[request](),
		done:          make(chan struct{}),
	}
	go m.run()
	return m
}

// Publish queues a snapshot of t in state s. Idle clears the surface.
func (m *Manager) Publish(t track.Track, s playback.State) {
	if s == playback.StateIdle {
		m.Clear()
		return
	}
	m.queue.Push(request{track: t, state: s})
}

// Clear queues the removal of the surface.
func (m *Manager) Clear() {
	m.queue.Push(request{clear: true})
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(sink Sink) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:   id,
		sink: sink,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Latest returns the last delivered snapshot.
func (m *Manager) Latest() (Snapshot, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest, m.hasLatest
}

// Close delivers queued requests, stops the worker and removes all
// subscriptions.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.queue.Close()
		<-m.done
		m.mu.Lock()
		m.subscriptions = make(map[string]*subscription)
		m.mu.Unlock()
	})
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		req, err := m.queue.Pop(context.Background())
		if err != nil {
			return
		}
		m.process(req)
	}
}

func (m *Manager) process(req request) {
	var snap Snapshot
	if req.clear {
		snap = clearedSnapshot()
	} else {
		snap = newSnapshot(req.track, req.state, m.resolveArtwork(req.track))
	}

	m.latestMu.Lock()
	if m.hasLatest && sameContent(m.latest, snap) {
		m.latestMu.Unlock()
		return
	}
	if !m.hasLatest && snap.Cleared {
		// Nothing was ever shown.
		m.latestMu.Unlock()
		return
	}
	m.sequenceNo++
	snap.SequenceNo = m.sequenceNo
	m.latest = snap
	m.hasLatest = true
	m.latestMu.Unlock()

	m.broadcast(snap)
}

func (m *Manager) resolveArtwork(t track.Track) string {
	m.artworkMu.Lock()
	ref, ok := m.artwork[t.Locator]
	m.artworkMu.Unlock()
	if ok {
		return ref
	}

	ref = m.opts.DefaultArtwork
	if m.resolver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.ResolveTimeout)
		u, err := m.resolver.Artwork(ctx, t)
		cancel()
		if err != nil {
			zlog.Debug().Err(err).Msgf("notification: no artwork for %s", t.Locator)
		} else if u != "" {
			ref = u
		}
	}

	m.artworkMu.Lock()
	m.artwork[t.Locator] = ref
	m.artworkMu.Unlock()
	return ref
}

// broadcast sends snap to all subscribers.
// Each send is done in a goroutine with a timeout to prevent blocking.
func (m *Manager) broadcast(snap Snapshot) {
	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			done := make(chan error, 1)
			go func() {
				done <- s.sink.Send(snap)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Msgf("notification: send to %s failed", s.id)
				}
			case <-time.After(m.opts.SendTimeout):
				zlog.Warn().Msgf("notification: send to %s timed out", s.id)
			}
		}(sub)
	}
	wg.Wait()
}
