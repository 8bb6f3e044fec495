package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/bgplayer/internal/app/focus"
	"github.com/osa030/bgplayer/internal/app/interruption"
	"github.com/osa030/bgplayer/internal/app/notification"
	"github.com/osa030/bgplayer/internal/app/playback"
	"github.com/osa030/bgplayer/internal/app/session"
	"github.com/osa030/bgplayer/internal/app/session/state"
	"github.com/osa030/bgplayer/internal/domain/playlist"
	"github.com/osa030/bgplayer/internal/domain/track"
)

const testToken = "bridge-secret"

type fakePlayer struct {
	mu       sync.Mutex
	commands []string
	err      error
	status   session.Status
	tracks   []track.Track
	sinks    map[string]notification.Sink
	latest   *notification.Snapshot
	done     chan struct{}
}

func newFakePlayer() *fakePlayer {
	tr := track.Track{Locator: "/m/b.mp3", Title: "B", Artist: "X"}
	return &fakePlayer{
		sinks: make(map[string]notification.Sink),
		done:  make(chan struct{}),
		tracks: []track.Track{
			{Locator: "/m/a.mp3", Title: "A"},
			tr,
		},
		status: session.Status{
			Playback: playback.Status{State: playback.StatePlaying, Index: 1, Track: &tr, Length: 2},
			Session:  state.Info{SessionID: "s-1", PlaylistName: "evening", Phase: state.PhaseRunning},
		},
	}
}

func (f *fakePlayer) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name)
	return f.err
}

func (f *fakePlayer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakePlayer) Play(context.Context) error     { return f.record("play") }
func (f *fakePlayer) Pause(context.Context) error    { return f.record("pause") }
func (f *fakePlayer) Next(context.Context) error     { return f.record("next") }
func (f *fakePlayer) Previous(context.Context) error { return f.record("previous") }
func (f *fakePlayer) Stop(context.Context) error     { return f.record("stop") }

func (f *fakePlayer) StartAt(_ context.Context, index int) error {
	if index >= len(f.tracks) {
		return playlist.ErrIndexOutOfRange
	}
	return f.record("start")
}

func (f *fakePlayer) Status(context.Context) (session.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakePlayer) Tracks() []track.Track { return f.tracks }

func (f *fakePlayer) Subscribe(sink notification.Sink) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "sub"
	f.sinks[id] = sink
	return id
}

func (f *fakePlayer) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sinks, id)
}

func (f *fakePlayer) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks)
}

func (f *fakePlayer) broadcast(s notification.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sink := range f.sinks {
		_ = sink.Send(s)
	}
}

func (f *fakePlayer) NowPlaying() (notification.Snapshot, bool) {
	if f.latest == nil {
		return notification.Snapshot{}, false
	}
	return *f.latest, true
}

func (f *fakePlayer) Done() <-chan struct{} { return f.done }

func (f *fakePlayer) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type fakeBridge struct {
	mu       sync.Mutex
	calls    []interruption.CallState
	routes   []interruption.RouteChange
	focus    []focus.State
	deny     bool
	focusErr error
	closed   bool
}

func (b *fakeBridge) ReportCall(s interruption.CallState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return session.ErrSessionClosed
	}
	b.calls = append(b.calls, s)
	return nil
}

func (b *fakeBridge) ReportRoute(r interruption.RouteChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes = append(b.routes, r)
	return nil
}

func (b *fakeBridge) ReportFocus(s focus.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.focusErr != nil {
		return b.focusErr
	}
	b.focus = append(b.focus, s)
	return nil
}

func (b *fakeBridge) SetFocusDenied(deny bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deny = deny
}

func newTestServer(t *testing.T, p Player, b Bridge) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(NewRemoteControlService(p).Handler())
	mux.Handle(NewPlatformBridgeService(b).Handler(testToken))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRemoteControl_Commands(t *testing.T) {
	p := newFakePlayer()
	client := NewRemoteControlClient(http.DefaultClient, newTestServer(t, p, &fakeBridge{}))
	ctx := context.Background()

	for _, name := range []string{"play", "pause", "next", "previous", "stop"} {
		resp, err := client.Command(ctx, name)
		require.NoError(t, err, name)
		assert.True(t, resp.Success, name)
		require.NotNil(t, resp.Status)
		assert.Equal(t, "playing", resp.Status.State)
	}
	assert.Equal(t, []string{"play", "pause", "next", "previous", "stop"}, p.recorded())

	_, err := client.Command(ctx, "shuffle")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestRemoteControl_CommandFailure(t *testing.T) {
	p := newFakePlayer()
	client := NewRemoteControlClient(http.DefaultClient, newTestServer(t, p, &fakeBridge{}))
	ctx := context.Background()

	resp, err := client.StartAt(ctx, 5)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "index out of range")

	p.fail(errors.Wrap(playback.ErrFocusDenied, "cannot play"))
	resp, err = client.Command(ctx, "play")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "audio focus denied")

	p.fail(session.ErrSessionClosed)
	_, err = client.Command(ctx, "play")
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestRemoteControl_StatusAndTracks(t *testing.T) {
	p := newFakePlayer()
	client := NewRemoteControlClient(http.DefaultClient, newTestServer(t, p, &fakeBridge{}))
	ctx := context.Background()

	st, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "playing", st.State)
	assert.Equal(t, 1, st.Index)
	require.NotNil(t, st.Track)
	assert.Equal(t, "/m/b.mp3", st.Track.Locator)
	assert.Equal(t, "s-1", st.SessionID)
	assert.Equal(t, "running", st.Phase)

	list, err := client.ListTracks(ctx)
	require.NoError(t, err)
	assert.Equal(t, "evening", list.Name)
	require.Len(t, list.Tracks, 2)
	assert.Equal(t, 1, list.Tracks[1].Index)
	assert.Equal(t, "B", list.Tracks[1].Title)
}

func TestRemoteControl_WatchNowPlaying(t *testing.T) {
	p := newFakePlayer()
	p.latest = &notification.Snapshot{Title: "A", State: "paused", SequenceNo: 3}
	client := NewRemoteControlClient(http.DefaultClient, newTestServer(t, p, &fakeBridge{}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.WatchNowPlaying(ctx)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial snapshot: %v", stream.Err())
	assert.Equal(t, "A", stream.Msg().Title)
	assert.Equal(t, uint64(3), stream.Msg().SequenceNo)

	require.Eventually(t, func() bool { return p.subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	p.broadcast(notification.Snapshot{
		Title:        "B",
		State:        "playing",
		Capabilities: []notification.Capability{"pause", "next"},
		SequenceNo:   4,
	})

	require.True(t, stream.Receive(), "update: %v", stream.Err())
	assert.Equal(t, "B", stream.Msg().Title)
	assert.Equal(t, []string{"pause", "next"}, stream.Msg().Capabilities)

	close(p.done)
	assert.False(t, stream.Receive())
	assert.NoError(t, stream.Err())
	require.Eventually(t, func() bool { return p.subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestPlatformBridge_Auth(t *testing.T) {
	url := newTestServer(t, newFakePlayer(), &fakeBridge{})
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewPlatformBridgeClient(http.DefaultClient, url, tt.token)
			_, err := client.ReportCallState(ctx, "ringing")
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}
}

func TestPlatformBridge_Signals(t *testing.T) {
	b := &fakeBridge{}
	client := NewPlatformBridgeClient(http.DefaultClient, newTestServer(t, newFakePlayer(), b), testToken)
	ctx := context.Background()

	resp, err := client.ReportCallState(ctx, "ringing")
	require.NoError(t, err)
	assert.True(t, resp.Accepted)

	_, err = client.ReportCallState(ctx, "off_hook")
	require.NoError(t, err)

	_, err = client.ReportRouteChange(ctx, "noisy")
	require.NoError(t, err)

	_, err = client.ReportFocusChange(ctx, "duck")
	require.NoError(t, err)

	_, err = client.SetFocusPolicy(ctx, true)
	require.NoError(t, err)

	b.mu.Lock()
	assert.Equal(t, []interruption.CallState{interruption.CallRinging, interruption.CallOffHook}, b.calls)
	assert.Equal(t, []interruption.RouteChange{interruption.RouteUnavailable}, b.routes)
	assert.Equal(t, []focus.State{focus.StateLostTransientDuck}, b.focus)
	assert.True(t, b.deny)
	b.mu.Unlock()
}

func TestPlatformBridge_Errors(t *testing.T) {
	b := &fakeBridge{}
	client := NewPlatformBridgeClient(http.DefaultClient, newTestServer(t, newFakePlayer(), b), testToken)
	ctx := context.Background()

	_, err := client.ReportCallState(ctx, "dialing")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = client.ReportRouteChange(ctx, "sideways")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = client.ReportFocusChange(ctx, "maybe")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	b.mu.Lock()
	b.focusErr = focus.ErrNoHolder
	b.mu.Unlock()
	resp, err := client.ReportFocusChange(ctx, "gain")
	require.NoError(t, err)
	assert.False(t, resp.Accepted)

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	_, err = client.ReportCallState(ctx, "idle")
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	data, err := c.Marshal(&StartAtRequest{Index: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":4}`, string(data))

	var req StartAtRequest
	require.NoError(t, c.Unmarshal(nil, &req))
	assert.Equal(t, 0, req.Index)
	require.NoError(t, c.Unmarshal(data, &req))
	assert.Equal(t, 4, req.Index)
}
