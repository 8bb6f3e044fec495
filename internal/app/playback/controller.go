package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/eventq"
	"github.com/osa030/bgplayer/internal/domain/playlist"
	"github.com/osa030/bgplayer/internal/domain/track"
)

// Errors
var (
	ErrPrepareFailure = errors.New("prepare failed")
	ErrFocusDenied    = errors.New("audio focus denied")
	ErrRenderResource = errors.New("render resource error")
	ErrNoActiveTrack  = errors.New("no active track")
	ErrClosed         = errors.New("playback controller closed")
)

// Focus is the audio focus arbiter as seen by the controller.
type Focus interface {
	Request() bool
	Release()
}

// Store persists the cursor position.
type Store interface {
	StoreIndex(ctx context.Context, index int) error
	Clear(ctx context.Context) error
}

// Publisher mirrors the active track and state to the now-playing surface.
type Publisher interface {
	Publish(t track.Track, s State)
	Clear()
}

// Config holds controller configuration.
type Config struct {
	DuckVolume   float64       // Output level while ducked
	StoreTimeout time.Duration // Timeout for persisting the cursor
	ClearOnClose bool          // Clear persisted state on teardown

	// OnTerminate is called once when the hosting process should end:
	// the track completed (err is nil) or the session became unusable.
	OnTerminate func(err error)
}

// Controller is the playback state machine. Every input is serialized
// through one queue and applied by the goroutine running Run; no other
// goroutine touches the cursor, the state or the render resource.
type Controller struct {
	config    Config
	cursor    *playlist.Cursor
	renderer  Renderer
	focus     Focus
	store     Store
	publisher Publisher

	queue   *eventq.Queue[Event]
	changes chan Change

	// Actor state
	state        State
	res          Resource
	gen          uint64
	resumePos    int
	paused       pauseCause
	pendingPause pauseCause // Pause requested while preparing
	ducked       bool
	terminated   bool
	shutdown     bool

	mu        sync.Mutex
	started   bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewController creates a new playback controller.
func NewController(
	config Config,
	cursor *playlist.Cursor,
	renderer Renderer,
	focus Focus,
	store Store,
	publisher Publisher,
) *Controller {
	if config.DuckVolume <= 0 || config.DuckVolume > 1 {
		config.DuckVolume = 0.1
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}
	return &Controller{
		config:    config,
		cursor:    cursor,
		renderer:  renderer,
		focus:     focus,
		store:     store,
		publisher: publisher,
		queue:     eventq.New[Event](),
		changes:   make(chan Change, 32),
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// Changes returns the transition channel. It is closed when Run returns.
func (c *Controller) Changes() <-chan Change {
	return c.changes
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Submit enqueues an event without waiting for it to be applied.
// It reports false once the controller is closed.
func (c *Controller) Submit(ev Event) bool {
	return c.queue.Push(ev)
}

// Do enqueues an event and waits until it has been applied. The returned
// error is the synchronous outcome (e.g. ErrEmptyPlaylist); asynchronous
// outcomes such as prepare failures are reported through Changes.
func (c *Controller) Do(ctx context.Context, ev Event) error {
	_, err := c.call(ctx, ev)
	return err
}

// Status returns the state after every previously queued event is applied.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	return c.call(ctx, Event{Type: eventStatus})
}

func (c *Controller) call(ctx context.Context, ev Event) (Status, error) {
	ev.reply = make(chan result, 1)
	if !c.queue.Push(ev) {
		return Status{}, ErrClosed
	}
	select {
	case r := <-ev.reply:
		return r.status, r.err
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-c.done:
		// Run may have applied the event just before exiting.
		select {
		case r := <-ev.reply:
			return r.status, r.err
		default:
			return Status{}, ErrClosed
		}
	}
}

// Run consumes the queue until Close is called or ctx is done.
// Teardown runs on every exit path.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	defer close(c.done)
	defer close(c.changes)

	for {
		ev, err := c.queue.Pop(ctx)
		if err != nil {
			if !c.shutdown {
				c.teardown()
			}
			c.queue.Close()
			for _, pending := range c.queue.Drain() {
				c.reply(pending, ErrClosed)
			}
			return
		}

		if c.shutdown {
			c.reply(ev, ErrClosed)
			continue
		}

		if ev.Type == eventStatus {
			if ev.reply != nil {
				ev.reply <- result{status: c.status()}
			}
			continue
		}

		if ev.Type == eventShutdown {
			c.teardown()
			c.shutdown = true
			c.queue.Close()
			c.reply(ev, nil)
			continue
		}

		c.reply(ev, c.handle(ev))
	}
}

// Close tears the controller down: the render resource and focus are
// released, the now-playing surface is cleared and, when configured, the
// persisted state is cleared. It waits for Run to return.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		started := c.started
		c.started = true
		c.mu.Unlock()

		if !started {
			c.teardown()
			c.shutdown = true
			c.queue.Close()
			close(c.changes)
			close(c.done)
			return
		}

		c.queue.Push(Event{Type: eventShutdown})
		c.queue.Close()
		<-c.done
	})
}

func (c *Controller) reply(ev Event, err error) {
	if ev.reply != nil {
		ev.reply <- result{err: err}
	}
}

func (c *Controller) handle(ev Event) error {
	if ev.generation != 0 && ev.generation != c.gen {
		zlog.Debug().Msgf("playback: dropping stale %s (generation %d, current %d)", ev.Type, ev.generation, c.gen)
		return nil
	}
	if c.terminated {
		zlog.Debug().Msgf("playback: session terminated, ignoring %s", ev.Type)
		return ErrClosed
	}

	switch ev.Type {
	case EventStart:
		return c.onStart(ev.Index)
	case EventPrepareComplete:
		return c.onPrepared()
	case EventPrepareError:
		return c.onPrepareError(ev.Err)
	case EventUserPlay:
		return c.onPlay()
	case EventUserPause:
		return c.pauseFor(causeUser, ev.Type)
	case EventUserNext, EventUserPrevious:
		return c.onSkip(ev.Type)
	case EventUserStop:
		return c.onStop()
	case EventFocusGained:
		return c.onFocusGained()
	case EventFocusLostTransient:
		return c.pauseFor(causeFocus, ev.Type)
	case EventFocusDuck:
		return c.onDuck()
	case EventFocusLostPermanent:
		return c.onFocusLost()
	case EventTrackCompleted:
		return c.onCompleted()
	case EventRenderError:
		return c.onRenderError(ev.Err)
	case EventCallRinging, EventCallOffHook:
		return c.pauseFor(causeCall, ev.Type)
	case EventCallIdle:
		return c.onCallIdle()
	case EventRouteUnavailable:
		return c.pauseFor(causeRoute, ev.Type)
	default:
		return errors.Newf("unsupported event: %s", ev.Type)
	}
}

func (c *Controller) onStart(index int) error {
	if c.cursor.Len() == 0 {
		zlog.Warn().Msg("playback: start requested on an empty playlist")
		return playlist.ErrEmptyPlaylist
	}
	if err := c.cursor.SetIndex(index); err != nil {
		zlog.Warn().Msgf("playback: start rejected: %v", err)
		return err
	}
	c.persistIndex()
	// Explicit track selection discards any pause cause.
	c.paused = causeNone
	c.pendingPause = causeNone
	return c.prepareCurrent(EventStart)
}

func (c *Controller) onSkip(cause EventType) error {
	var err error
	if cause == EventUserNext {
		_, err = c.cursor.Next()
	} else {
		_, err = c.cursor.Previous()
	}
	if err != nil {
		zlog.Warn().Msgf("playback: %s rejected: %v", cause, err)
		return err
	}
	c.persistIndex()

	// A navigation keeps an interruption-driven pause pending for the new
	// track but overrides a user pause.
	carry := c.paused
	if c.state == StatePreparing {
		carry = c.pendingPause
	}
	if carry == causeUser || carry == causeRoute {
		carry = causeNone
	}
	c.paused = causeNone
	c.pendingPause = carry
	return c.prepareCurrent(cause)
}

// prepareCurrent releases any existing resource, acquires focus and starts
// preparing the track under the cursor.
func (c *Controller) prepareCurrent(cause EventType) error {
	tr, ok := c.cursor.Current()
	if !ok {
		c.fatal(cause, ErrNoActiveTrack)
		return ErrNoActiveTrack
	}

	// Cancels an in-flight prepare: its callbacks carry an old generation.
	c.releaseResource()

	if !c.focus.Request() {
		err := errors.Wrapf(ErrFocusDenied, "cannot play %s", tr.Locator)
		zlog.Error().Err(err).Msg("playback: focus request failed")
		c.toStopped(cause, err)
		return err
	}

	c.gen++
	res, err := c.renderer.NewResource(resourceListener{c: c, gen: c.gen})
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "create render resource for %s", tr.Locator), ErrRenderResource)
		zlog.Error().Err(err).Msg("playback: render resource unavailable")
		c.toStopped(cause, err)
		return err
	}

	c.res = res
	c.resumePos = 0
	c.setState(StatePreparing, cause, nil)
	c.publish()

	zlog.Debug().Msgf("playback: preparing index=%d locator=%s generation=%d", c.cursor.Index(), tr.Locator, c.gen)
	res.PrepareAsync(tr.Locator)
	return nil
}

func (c *Controller) onPrepared() error {
	if c.state != StatePreparing || c.res == nil {
		zlog.Debug().Msgf("playback: prepare completion in state %s ignored", c.state)
		return nil
	}
	if _, ok := c.cursor.Current(); !ok {
		c.fatal(EventPrepareComplete, ErrNoActiveTrack)
		return ErrNoActiveTrack
	}

	if c.ducked {
		c.res.SetVolume(c.config.DuckVolume)
	}

	if c.pendingPause != causeNone {
		c.paused = c.pendingPause
		c.pendingPause = causeNone
		c.resumePos = 0
		c.setState(StatePaused, EventPrepareComplete, nil)
		c.publish()
		return nil
	}

	if err := c.res.Start(); err != nil {
		return c.renderFailure(EventPrepareComplete, err)
	}
	c.setState(StatePlaying, EventPrepareComplete, nil)
	c.publish()
	return nil
}

func (c *Controller) onPrepareError(cause error) error {
	if c.state != StatePreparing {
		return nil
	}
	if cause == nil {
		cause = errors.New("unknown error")
	}
	err := errors.Mark(errors.Wrap(cause, "prepare failed"), ErrPrepareFailure)
	if tr, ok := c.cursor.Current(); ok {
		err = errors.Wrapf(err, "track %s", tr.Locator)
	}
	zlog.Error().Err(err).Msg("playback: prepare failed, stopping")
	c.releaseResource()
	c.toStopped(EventPrepareError, err)
	return nil
}

func (c *Controller) onPlay() error {
	switch c.state {
	case StatePlaying:
		return nil
	case StatePaused:
		return c.resume(EventUserPlay)
	case StatePreparing:
		c.pendingPause = causeNone
		return nil
	default:
		if c.cursor.Len() == 0 {
			return playlist.ErrEmptyPlaylist
		}
		if c.cursor.Index() == playlist.Unset {
			if err := c.cursor.SetIndex(0); err != nil {
				return err
			}
			c.persistIndex()
		}
		return c.prepareCurrent(EventUserPlay)
	}
}

func (c *Controller) pauseFor(cause pauseCause, ev EventType) error {
	switch c.state {
	case StatePlaying:
		if err := c.res.Pause(); err != nil {
			return c.renderFailure(ev, err)
		}
		c.resumePos = c.res.CurrentPosition()
		c.paused = cause
		c.setState(StatePaused, ev, nil)
		c.publish()
		zlog.Debug().Msgf("playback: paused by %s at %dms", cause, c.resumePos)
	case StatePaused:
		// An explicit pause overrides an automatic resume.
		if cause == causeUser && c.paused != causeUser {
			c.paused = causeUser
		}
	case StatePreparing:
		if c.pendingPause == causeNone || cause == causeUser {
			c.pendingPause = cause
		}
	default:
		zlog.Debug().Msgf("playback: %s ignored in state %s", ev, c.state)
	}
	return nil
}

func (c *Controller) resume(ev EventType) error {
	if _, ok := c.cursor.Current(); !ok {
		c.fatal(ev, ErrNoActiveTrack)
		return ErrNoActiveTrack
	}
	if !c.focus.Request() {
		err := ErrFocusDenied
		zlog.Error().Err(err).Msg("playback: cannot resume")
		c.releaseResource()
		c.toStopped(ev, err)
		return err
	}
	if err := c.res.SeekTo(c.resumePos); err != nil {
		return c.renderFailure(ev, err)
	}
	if err := c.res.Start(); err != nil {
		return c.renderFailure(ev, err)
	}
	zlog.Debug().Msgf("playback: resumed at %dms (was paused by %s)", c.resumePos, c.paused)
	c.paused = causeNone
	c.setState(StatePlaying, ev, nil)
	c.publish()
	return nil
}

func (c *Controller) onFocusGained() error {
	switch c.state {
	case StatePlaying:
		c.unduck()
	case StatePaused:
		c.unduck()
		if c.paused == causeFocus {
			return c.resume(EventFocusGained)
		}
	case StatePreparing:
		c.unduck()
		if c.pendingPause == causeFocus {
			c.pendingPause = causeNone
		}
	}
	return nil
}

// unduck restores full output level after a duck.
func (c *Controller) unduck() {
	if c.ducked && c.res != nil {
		c.res.SetVolume(1.0)
		zlog.Debug().Msg("playback: volume restored")
	}
	c.ducked = false
}

func (c *Controller) onDuck() error {
	switch c.state {
	case StatePlaying:
		c.res.SetVolume(c.config.DuckVolume)
		c.ducked = true
		zlog.Debug().Msgf("playback: ducked to %.2f", c.config.DuckVolume)
	case StatePreparing, StatePaused:
		c.ducked = true
	}
	return nil
}

func (c *Controller) onFocusLost() error {
	switch c.state {
	case StatePlaying, StatePaused, StatePreparing:
		c.releaseResource()
		c.toStopped(EventFocusLostPermanent, nil)
	}
	return nil
}

func (c *Controller) onCompleted() error {
	if c.state != StatePlaying {
		return nil
	}
	c.releaseResource()
	c.toStopped(EventTrackCompleted, nil)
	c.terminate(nil)
	return nil
}

func (c *Controller) onRenderError(cause error) error {
	switch c.state {
	case StatePlaying, StatePaused, StatePreparing:
		if cause == nil {
			cause = errors.New("unknown error")
		}
		_ = c.renderFailure(EventRenderError, cause)
	}
	return nil
}

func (c *Controller) onCallIdle() error {
	switch {
	case c.state == StatePaused && c.paused == causeCall:
		return c.resume(EventCallIdle)
	case c.state == StatePreparing && c.pendingPause == causeCall:
		c.pendingPause = causeNone
	default:
		zlog.Debug().Msg("playback: call idle without call-caused pause")
	}
	return nil
}

func (c *Controller) onStop() error {
	c.releaseResource()
	c.focus.Release()
	c.paused = causeNone
	c.pendingPause = causeNone
	c.ducked = false
	c.setState(StateStopped, EventUserStop, nil)
	c.publisher.Clear()
	return nil
}

// renderFailure reports err and forces Stopped.
func (c *Controller) renderFailure(ev EventType, cause error) error {
	err := errors.Mark(errors.Wrap(cause, "render"), ErrRenderResource)
	zlog.Error().Err(err).Msgf("playback: render resource failed during %s, stopping", ev)
	c.releaseResource()
	c.toStopped(ev, err)
	return err
}

func (c *Controller) toStopped(cause EventType, err error) {
	c.paused = causeNone
	c.pendingPause = causeNone
	c.ducked = false
	c.focus.Release()
	c.setState(StateStopped, cause, err)
	c.publish()
}

// releaseResource stops and releases the render resource if one exists.
// Callbacks still in flight from it are dropped by generation.
func (c *Controller) releaseResource() {
	if c.res == nil {
		return
	}
	if c.res.IsPlaying() {
		if err := c.res.Stop(); err != nil {
			zlog.Warn().Err(err).Msg("playback: stop before release failed")
		}
	}
	c.res.Release()
	c.res = nil
	c.gen++
}

// fatal ends the session: a transition found no active track.
func (c *Controller) fatal(cause EventType, err error) {
	zlog.Error().Err(err).Msgf("playback: fatal during %s", cause)
	c.releaseResource()
	c.toStopped(cause, err)
	c.terminate(err)
}

func (c *Controller) terminate(err error) {
	if c.terminated {
		return
	}
	c.terminated = true
	if err != nil {
		zlog.Error().Err(err).Msg("playback: terminating session")
	} else {
		zlog.Info().Msg("playback: track completed, terminating session")
	}
	if c.config.OnTerminate != nil {
		c.config.OnTerminate(err)
	}
}

func (c *Controller) teardown() {
	c.releaseResource()
	c.focus.Release()
	c.publisher.Clear()
	if c.state != StateIdle && c.state != StateStopped {
		c.setState(StateStopped, eventShutdown, nil)
	}
	if c.config.ClearOnClose && c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.StoreTimeout)
		defer cancel()
		if err := c.store.Clear(ctx); err != nil {
			zlog.Error().Err(err).Msg("playback: failed to clear persisted state")
		}
	}
	zlog.Debug().Msg("playback: teardown complete")
}

func (c *Controller) persistIndex() {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.StoreTimeout)
	defer cancel()
	if err := c.store.StoreIndex(ctx, c.cursor.Index()); err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to persist index %d", c.cursor.Index())
	}
}

func (c *Controller) publish() {
	tr, ok := c.cursor.Current()
	if !ok {
		c.publisher.Clear()
		return
	}
	c.publisher.Publish(tr, c.state)
}

func (c *Controller) setState(s State, cause EventType, err error) {
	from := c.state
	c.state = s

	change := Change{
		From:  from,
		To:    s,
		Cause: cause,
		Index: c.cursor.Index(),
		Err:   err,
	}
	if tr, ok := c.cursor.Current(); ok {
		change.Track = &tr
	}

	if from != s {
		zlog.Info().Msgf("playback: %s -> %s (%s) index=%d", from, s, cause, change.Index)
	}

	select {
	case c.changes <- change:
	default:
		zlog.Warn().Msgf("playback: change channel full, dropping %s -> %s", from, s)
	}
}

func (c *Controller) status() Status {
	st := Status{
		State:          c.state,
		Index:          c.cursor.Index(),
		PausedBy:       c.paused.String(),
		ResumePosition: c.resumePos,
		Ducked:         c.ducked,
		Length:         c.cursor.Len(),
	}
	if tr, ok := c.cursor.Current(); ok {
		st.Track = &tr
	}
	return st
}
