package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osa030/bgplayer/internal/domain/playlist"
	"github.com/osa030/bgplayer/internal/domain/track"
)

type fakeResource struct {
	mu       sync.Mutex
	listener ResourceListener
	locator  string
	playing  bool
	position int
	volume   float64
	seeks    []int
	starts   int
	pauses   int
	stops    int
	releases int
	startErr error
}

func (r *fakeResource) PrepareAsync(locator string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locator = locator
}

func (r *fakeResource) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.starts++
	r.playing = true
	return nil
}

func (r *fakeResource) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses++
	r.playing = false
	return nil
}

func (r *fakeResource) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.playing = false
	return nil
}

func (r *fakeResource) SeekTo(ms int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeks = append(r.seeks, ms)
	r.position = ms
	return nil
}

func (r *fakeResource) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
	r.playing = false
}

func (r *fakeResource) CurrentPosition() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

func (r *fakeResource) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

func (r *fakeResource) SetVolume(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = level
}

func (r *fakeResource) setPosition(ms int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = ms
}

func (r *fakeResource) snapshot() fakeResource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fakeResource{
		locator:  r.locator,
		playing:  r.playing,
		position: r.position,
		volume:   r.volume,
		seeks:    append([]int(nil), r.seeks...),
		starts:   r.starts,
		pauses:   r.pauses,
		stops:    r.stops,
		releases: r.releases,
	}
}

type fakeRenderer struct {
	mu        sync.Mutex
	resources []*fakeResource
	newErr    error
}

func (f *fakeRenderer) NewResource(l ResourceListener) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	r := &fakeResource{listener: l, volume: 1.0}
	f.resources = append(f.resources, r)
	return r, nil
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resources)
}

func (f *fakeRenderer) last(t *testing.T) *fakeResource {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.resources, "no render resource created")
	return f.resources[len(f.resources)-1]
}

func (f *fakeRenderer) at(i int) *fakeResource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resources[i]
}

type fakeFocus struct {
	mu        sync.Mutex
	grant     bool
	held      bool
	transient bool
	requests  int
	releases  int
}

func (f *fakeFocus) Request() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return !f.transient
	}
	f.requests++
	f.held = f.grant
	return f.grant
}

func (f *fakeFocus) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.held {
		return
	}
	f.held = false
	f.releases++
}

// loseTransient mirrors the authority taking focus away for a while.
func (f *fakeFocus) loseTransient(lost bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transient = lost
}

func (f *fakeFocus) isHeld() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

type fakeStore struct {
	mu      sync.Mutex
	indexes []int
	clears  int
}

func (s *fakeStore) StoreIndex(_ context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes = append(s.indexes, index)
	return nil
}

func (s *fakeStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	return nil
}

func (s *fakeStore) stored() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.indexes...)
}

type published struct {
	locator string
	state   State
}

type fakePublisher struct {
	mu        sync.Mutex
	published []published
	clears    int
}

func (p *fakePublisher) Publish(t track.Track, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, published{locator: t.Locator, state: s})
}

func (p *fakePublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
}

func (p *fakePublisher) lastPublished() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.published) == 0 {
		return published{}
	}
	return p.published[len(p.published)-1]
}

type harness struct {
	t          *testing.T
	c          *Controller
	renderer   *fakeRenderer
	focus      *fakeFocus
	store      *fakeStore
	publisher  *fakePublisher
	terminated chan error
	cancel     context.CancelFunc
}

func newHarness(t *testing.T, locators ...string) *harness {
	t.Helper()
	tracks := make([]track.Track, len(locators))
	for i, l := range locators {
		tracks[i] = track.Track{Locator: l, Title: "Title " + l, Album: "Album", Artist: "Artist"}
	}

	h := &harness{
		t:          t,
		renderer:   &fakeRenderer{},
		focus:      &fakeFocus{grant: true},
		store:      &fakeStore{},
		publisher:  &fakePublisher{},
		terminated: make(chan error, 1),
	}
	h.c = NewController(Config{
		DuckVolume:   0.1,
		ClearOnClose: true,
		OnTerminate: func(err error) {
			h.terminated <- err
		},
	}, playlist.NewCursor(playlist.New("test", tracks)), h.renderer, h.focus, h.store, h.publisher)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.c.Run(ctx)

	t.Cleanup(func() {
		h.c.Close()
		cancel()
	})
	return h
}

func (h *harness) do(ev Event) error {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return h.c.Do(ctx, ev)
}

func (h *harness) status() Status {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := h.c.Status(ctx)
	require.NoError(h.t, err)
	return st
}

// prepared completes the prepare of the newest resource and waits for it
// to be applied.
func (h *harness) prepared() Status {
	h.t.Helper()
	h.renderer.last(h.t).listener.Prepared(nil)
	return h.status()
}

// play starts index and completes its preparation.
func (h *harness) play(index int) Status {
	h.t.Helper()
	require.NoError(h.t, h.do(Start(index)))
	require.Equal(h.t, StatePreparing, h.status().State)
	st := h.prepared()
	require.Equal(h.t, StatePlaying, st.State)
	return st
}
