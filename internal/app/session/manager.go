// Package session owns one playback session: it loads the playlist, wires
// the actors together and releases them in reverse order.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/focus"
	"github.com/osa030/bgplayer/internal/app/interruption"
	"github.com/osa030/bgplayer/internal/app/notification"
	"github.com/osa030/bgplayer/internal/app/playback"
	"github.com/osa030/bgplayer/internal/app/session/state"
	"github.com/osa030/bgplayer/internal/domain/track"
	"github.com/osa030/bgplayer/internal/infra/config"
	"github.com/osa030/bgplayer/internal/infra/store"
)

var (
	ErrSessionClosed     = errors.New("session is closed")
	ErrSessionNotRunning = errors.New("session is not running")
)

// Dependencies are the external handles a session is built on.
type Dependencies struct {
	Store    store.Store                  // Required; closed by the session
	Renderer playback.Renderer            // Required
	Resolver notification.ArtworkResolver // Optional artwork lookup
	Source   TrackSource                  // Optional; defaults to a library scan of the configured roots
}

// Status combines the playback status with the session lifecycle.
type Status struct {
	Playback playback.Status
	Session  state.Info
}

// Manager manages the playback session.
type Manager struct {
	config *config.Config
	deps   Dependencies

	tracker    *state.Tracker
	tracks     []track.Track
	restored   bool
	authority  *focus.SignalAuthority
	arbiter    *focus.Arbiter
	feed       *interruption.Feed
	monitor    *interruption.Monitor
	notifier   *notification.Manager
	controller *playback.Controller

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

// NewManager loads the playlist and constructs every actor. Nothing runs
// until Start. On error the store is closed.
func NewManager(ctx context.Context, cfg *config.Config, deps Dependencies) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Renderer == nil {
		_ = deps.Store.Close()
		return nil, errors.New("renderer is required")
	}

	tracker := state.New(uuid.New().String())
	l, err := load(ctx, cfg, deps.Store, deps.Source)
	if err != nil {
		_ = deps.Store.Close()
		return nil, err
	}
	tracker.Loaded(l.cursor.Playlist().Name(), len(l.rejected))

	m := &Manager{
		config:   cfg,
		deps:     deps,
		tracker:  tracker,
		tracks:   l.cursor.Playlist().Tracks(),
		restored: l.restored,
		done:     make(chan struct{}),
	}

	m.authority = focus.NewSignalAuthority(cfg.Bridge.DenyFocus)
	m.arbiter = focus.NewArbiter(m.authority)
	m.feed = interruption.NewFeed()
	m.notifier = notification.NewManager(deps.Resolver, notification.Options{
		DefaultArtwork: cfg.Notification.DefaultArtwork,
		SendTimeout:    cfg.SendTimeout(),
		ResolveTimeout: cfg.ResolveTimeout(),
	})
	m.controller = playback.NewController(playback.Config{
		DuckVolume:   cfg.Playback.DuckVolume,
		StoreTimeout: cfg.StoreTimeout(),
		ClearOnClose: !cfg.Playback.KeepStateOnExit,
		OnTerminate:  m.onTerminate,
	}, l.cursor, deps.Renderer, m.arbiter, deps.Store, m.notifier)
	m.monitor = interruption.NewMonitor(m.feed, m.feed, m.controller)

	m.notifier.Subscribe(notification.LogSink{})

	zlog.Info().Msgf("session: created id=%s", tracker.Info().SessionID)
	return m, nil
}

// Start launches the actors. With autostart enabled playback begins at the
// restored index, or at the first track.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.tracker.Phase() == state.PhaseTerminated {
		m.mu.Unlock()
		return ErrSessionClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	go m.controller.Run(runCtx)

	m.wg.Add(2)
	go m.forwardFocus()
	go m.watchChanges()

	m.monitor.Start(runCtx)
	m.tracker.Running()
	zlog.Info().Msg("session: started")

	if m.config.Playback.Autostart && len(m.tracks) > 0 {
		if err := m.controller.Do(ctx, playback.NewEvent(playback.EventUserPlay)); err != nil {
			zlog.Warn().Err(err).Msg("session: autostart failed")
		}
	}
	return nil
}

// Done is closed when the session has ended, either because playback
// terminated or because Close was called.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err returns the cause of termination, if any.
func (m *Manager) Err() error {
	return m.tracker.Info().Err
}

// Close releases everything in reverse order of acquisition. It is safe to
// call more than once and on every exit path.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		zlog.Info().Msg("session: closing")
		m.monitor.Stop()
		m.feed.Close()

		// Releases the render resource and focus, clears the surface and,
		// unless kept, the persisted state.
		m.controller.Close()

		m.arbiter.Close()
		m.wg.Wait()

		m.mu.Lock()
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Unlock()

		m.notifier.Close()
		if err := m.deps.Store.Close(); err != nil {
			zlog.Error().Err(err).Msg("session: failed to close store")
		}

		m.tracker.Terminated(nil)
		m.finish()
		zlog.Info().Msg("session: closed")
	})
}

// onTerminate is called from the controller goroutine.
func (m *Manager) onTerminate(err error) {
	m.tracker.Terminated(err)
	m.finish()
}

func (m *Manager) finish() {
	m.doneOnce.Do(func() { close(m.done) })
}

// forwardFocus turns arbiter changes into playback events.
func (m *Manager) forwardFocus() {
	defer m.wg.Done()
	for s := range m.arbiter.Changes() {
		var t playback.EventType
		switch s {
		case focus.StateGained:
			t = playback.EventFocusGained
		case focus.StateLostTransient:
			t = playback.EventFocusLostTransient
		case focus.StateLostTransientDuck:
			t = playback.EventFocusDuck
		case focus.StateLostPermanent:
			t = playback.EventFocusLostPermanent
		default:
			continue
		}
		if !m.controller.Submit(playback.NewEvent(t)) {
			zlog.Debug().Msgf("session: focus %s after close ignored", s)
		}
	}
}

// watchChanges drains the transition stream and reports failures.
func (m *Manager) watchChanges() {
	defer m.wg.Done()
	for ch := range m.controller.Changes() {
		if ch.Err != nil {
			zlog.Warn().Err(ch.Err).Msgf("session: %s -> %s on %s", ch.From, ch.To, ch.Cause)
		}
	}
}

// Tracks returns the loaded playlist.
func (m *Manager) Tracks() []track.Track {
	out := make([]track.Track, len(m.tracks))
	copy(out, m.tracks)
	return out
}

// Restored reports whether the playlist came from the store.
func (m *Manager) Restored() bool {
	return m.restored
}

// Play starts or resumes playback.
func (m *Manager) Play(ctx context.Context) error {
	return m.command(ctx, playback.NewEvent(playback.EventUserPlay))
}

// Pause pauses playback.
func (m *Manager) Pause(ctx context.Context) error {
	return m.command(ctx, playback.NewEvent(playback.EventUserPause))
}

// Next skips to the next track, wrapping at the end.
func (m *Manager) Next(ctx context.Context) error {
	return m.command(ctx, playback.NewEvent(playback.EventUserNext))
}

// Previous goes back one track, wrapping at the start.
func (m *Manager) Previous(ctx context.Context) error {
	return m.command(ctx, playback.NewEvent(playback.EventUserPrevious))
}

// Stop stops playback and clears the now-playing surface.
func (m *Manager) Stop(ctx context.Context) error {
	return m.command(ctx, playback.NewEvent(playback.EventUserStop))
}

// StartAt plays the track at index from the beginning.
func (m *Manager) StartAt(ctx context.Context, index int) error {
	return m.command(ctx, playback.Start(index))
}

// Status returns the playback and session status.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.ready(); err != nil {
		return Status{Session: m.tracker.Info()}, err
	}
	st, err := m.controller.Status(ctx)
	if err != nil {
		return Status{Session: m.tracker.Info()}, m.mapClosed(err)
	}
	return Status{Playback: st, Session: m.tracker.Info()}, nil
}

// ReportCall delivers a telephony state from the platform bridge.
func (m *Manager) ReportCall(s interruption.CallState) error {
	if !m.feed.ReportCall(s) {
		return ErrSessionClosed
	}
	return nil
}

// ReportRoute delivers an audio route change from the platform bridge.
func (m *Manager) ReportRoute(r interruption.RouteChange) error {
	if !m.feed.ReportRoute(r) {
		return ErrSessionClosed
	}
	return nil
}

// ReportFocus delivers a focus change from the platform bridge to the
// current focus holder. focus.ErrNoHolder is returned when none is held.
func (m *Manager) ReportFocus(s focus.State) error {
	if m.tracker.Phase() == state.PhaseTerminated {
		return ErrSessionClosed
	}
	return m.authority.Notify(s)
}

// SetFocusDenied makes the focus authority refuse (or grant) future requests.
func (m *Manager) SetFocusDenied(deny bool) {
	m.authority.SetDeny(deny)
}

// Subscribe registers a now-playing sink and returns its subscription ID.
func (m *Manager) Subscribe(sink notification.Sink) string {
	return m.notifier.Subscribe(sink)
}

// Unsubscribe removes a now-playing sink.
func (m *Manager) Unsubscribe(id string) {
	m.notifier.Unsubscribe(id)
}

// NowPlaying returns the last delivered snapshot.
func (m *Manager) NowPlaying() (notification.Snapshot, bool) {
	return m.notifier.Latest()
}

func (m *Manager) command(ctx context.Context, ev playback.Event) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.mapClosed(m.controller.Do(ctx, ev))
}

func (m *Manager) ready() error {
	switch m.tracker.Phase() {
	case state.PhaseRunning:
		return nil
	case state.PhaseTerminated:
		return ErrSessionClosed
	default:
		return ErrSessionNotRunning
	}
}

func (m *Manager) mapClosed(err error) error {
	if errors.Is(err, playback.ErrClosed) {
		return errors.Mark(err, ErrSessionClosed)
	}
	return err
}
