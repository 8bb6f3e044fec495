package render

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/bgplayer/internal/app/playback"
)

const testRate = beep.SampleRate(44100)

// fakeOutput collects played streamers; tests pull samples by hand.
type fakeOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
}

func (o *fakeOutput) Play(s ...beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = append(o.streamers, s...)
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }

func (o *fakeOutput) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streamers)
}

// drain streams the newest streamer until it ends or maxChunks is reached.
// It reports whether the streamer ended.
func (o *fakeOutput) drain(maxChunks int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.streamers[len(o.streamers)-1]
	buf := make([][2]float64, 4096)
	for i := 0; i < maxChunks; i++ {
		if _, ok := s.Stream(buf); !ok {
			return true
		}
	}
	return false
}

type listener struct {
	prepared  chan error
	completed chan struct{}
	failed    chan error
}

func newListener() *listener {
	return &listener{
		prepared:  make(chan error, 4),
		completed: make(chan struct{}, 4),
		failed:    make(chan error, 4),
	}
}

func (l *listener) Prepared(err error) { l.prepared <- err }
func (l *listener) Completed()         { l.completed <- struct{}{} }
func (l *listener) Failed(err error)   { l.failed <- err }

func (l *listener) waitPrepared(t *testing.T) error {
	t.Helper()
	select {
	case err := <-l.prepared:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("prepare did not finish")
		return nil
	}
}

// writeWAV writes a silent stereo WAV file of the given length.
func writeWAV(t *testing.T, dir string, rate beep.SampleRate, length time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, "silence.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(rate.N(length)), format))
	return path
}

func prepare(t *testing.T, out *fakeOutput, rate beep.SampleRate, path string) (playback.Resource, *listener) {
	t.Helper()
	engine := NewEngineWithOutput(out, rate)
	l := newListener()
	res, err := engine.NewResource(l)
	require.NoError(t, err)
	res.PrepareAsync(path)
	require.NoError(t, l.waitPrepared(t))
	return res, l
}

func TestResource_PlayToCompletion(t *testing.T) {
	out := &fakeOutput{}
	path := writeWAV(t, t.TempDir(), testRate, time.Second)
	res, l := prepare(t, out, testRate, path)

	assert.False(t, res.IsPlaying())
	require.NoError(t, res.Start())
	assert.True(t, res.IsPlaying())
	require.Equal(t, 1, out.count())

	require.True(t, out.drain(100), "stream should end")
	select {
	case <-l.completed:
	case <-time.After(time.Second):
		t.Fatal("completion not reported")
	}
	assert.False(t, res.IsPlaying())

	res.Release()
	assert.Len(t, l.completed, 0, "completion reported once")
}

func TestResource_PauseSeekResume(t *testing.T) {
	out := &fakeOutput{}
	path := writeWAV(t, t.TempDir(), testRate, 2*time.Second)
	res, _ := prepare(t, out, testRate, path)
	defer res.Release()

	require.NoError(t, res.Start())
	require.NoError(t, res.Pause())
	assert.False(t, res.IsPlaying())

	// Paused output yields silence without advancing or ending.
	assert.False(t, out.drain(10))
	assert.Equal(t, 0, res.CurrentPosition())

	require.NoError(t, res.SeekTo(500))
	assert.Equal(t, 500, res.CurrentPosition())

	require.NoError(t, res.SeekTo(10_000))
	assert.Equal(t, 2000, res.CurrentPosition(), "seek is clamped to the track length")

	require.NoError(t, res.SeekTo(0))
	require.NoError(t, res.Start())
	assert.True(t, res.IsPlaying())
	assert.Equal(t, 1, out.count(), "resume does not queue the stream again")
}

func TestResource_Stop(t *testing.T) {
	out := &fakeOutput{}
	path := writeWAV(t, t.TempDir(), testRate, time.Second)
	res, _ := prepare(t, out, testRate, path)
	defer res.Release()

	require.NoError(t, res.Start())
	require.NoError(t, res.SeekTo(300))
	require.NoError(t, res.Stop())
	assert.False(t, res.IsPlaying())
	assert.Equal(t, 0, res.CurrentPosition())
}

func TestResource_ReleaseEndsStream(t *testing.T) {
	out := &fakeOutput{}
	path := writeWAV(t, t.TempDir(), testRate, time.Second)
	res, l := prepare(t, out, testRate, path)

	require.NoError(t, res.Start())
	res.Release()
	res.Release()

	assert.True(t, out.drain(1), "released stream is dropped by the output")
	assert.Len(t, l.completed, 0, "release is not a completion")
	assert.False(t, res.IsPlaying())

	assert.True(t, errors.Is(res.Start(), ErrReleased))
	assert.True(t, errors.Is(res.Pause(), ErrReleased))
	assert.True(t, errors.Is(res.SeekTo(0), ErrReleased))
	assert.Equal(t, 0, res.CurrentPosition())
}

func TestResource_ReleaseWhilePreparing(t *testing.T) {
	path := writeWAV(t, t.TempDir(), testRate, time.Second)
	engine := NewEngineWithOutput(&fakeOutput{}, testRate)
	l := newListener()
	res, err := engine.NewResource(l)
	require.NoError(t, err)

	res.PrepareAsync(path)
	res.Release()

	// Either the prepare finished first or it is discarded silently.
	select {
	case err := <-l.prepared:
		assert.NoError(t, err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, errors.Is(res.Start(), ErrReleased))
}

func TestResource_NotPrepared(t *testing.T) {
	engine := NewEngineWithOutput(&fakeOutput{}, testRate)
	res, err := engine.NewResource(newListener())
	require.NoError(t, err)

	assert.True(t, errors.Is(res.Start(), ErrNotPrepared))
	assert.True(t, errors.Is(res.Pause(), ErrNotPrepared))
	assert.False(t, res.IsPlaying())
	res.SetVolume(0.5)
	res.Release()
}

func TestResource_PrepareErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		locator string
		target  error
	}{
		{name: "missing file", locator: filepath.Join(dir, "missing.mp3"), target: os.ErrNotExist},
		{name: "unsupported format", locator: filepath.Join(dir, "song.ogg"), target: ErrUnsupportedFormat},
		{name: "remote locator", locator: "https://example.com/a.mp3", target: ErrUnsupportedLocator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngineWithOutput(&fakeOutput{}, testRate)
			l := newListener()
			res, err := engine.NewResource(l)
			require.NoError(t, err)

			res.PrepareAsync(tt.locator)
			err = l.waitPrepared(t)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestResource_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wave file"), 0o644))

	engine := NewEngineWithOutput(&fakeOutput{}, testRate)
	l := newListener()
	res, err := engine.NewResource(l)
	require.NoError(t, err)
	res.PrepareAsync(path)
	assert.Error(t, l.waitPrepared(t))
}

// brokenStreamer fails on the first read the way a decoder does on a
// truncated file.
type brokenStreamer struct {
	err error
}

func (b *brokenStreamer) Stream([][2]float64) (int, bool) { return 0, false }
func (b *brokenStreamer) Err() error                       { return b.err }
func (b *brokenStreamer) Len() int                         { return 44100 }
func (b *brokenStreamer) Position() int                    { return 0 }
func (b *brokenStreamer) Seek(int) error                   { return nil }
func (b *brokenStreamer) Close() error                     { return nil }

func TestResource_DecodeErrorReportsFailure(t *testing.T) {
	out := &fakeOutput{}
	engine := NewEngineWithOutput(out, testRate)
	l := newListener()
	res, err := engine.NewResource(l)
	require.NoError(t, err)
	defer res.Release()

	r := res.(*resource)
	r.mu.Lock()
	r.setStream(&brokenStreamer{err: errors.New("unexpected EOF")}, beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2})
	r.mu.Unlock()

	require.NoError(t, res.Start())
	require.True(t, out.drain(1), "stream should end")

	select {
	case err := <-l.failed:
		assert.ErrorContains(t, err, "unexpected EOF")
	case <-time.After(time.Second):
		t.Fatal("failure not reported")
	}
	assert.Len(t, l.completed, 0, "a decode error is not a completion")
}

func TestResource_Resamples(t *testing.T) {
	out := &fakeOutput{}
	path := writeWAV(t, t.TempDir(), 22050, 500*time.Millisecond)
	res, l := prepare(t, out, testRate, path)

	require.NoError(t, res.Start())
	require.True(t, out.drain(100))
	select {
	case <-l.completed:
	case <-time.After(time.Second):
		t.Fatal("completion not reported")
	}
}

func TestResource_SetVolume(t *testing.T) {
	out := &fakeOutput{}
	path := writeWAV(t, t.TempDir(), testRate, time.Second)
	res, _ := prepare(t, out, testRate, path)
	defer res.Release()
	r := res.(*resource)

	res.SetVolume(0.1)
	assert.InDelta(t, math.Log2(0.1), r.volume.Volume, 1e-9)
	assert.False(t, r.volume.Silent)

	res.SetVolume(1.0)
	assert.InDelta(t, 0, r.volume.Volume, 1e-9)

	res.SetVolume(0)
	assert.True(t, r.volume.Silent)
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "/music/a.mp3", want: "/music/a.mp3"},
		{in: "relative/a.mp3", want: "relative/a.mp3"},
		{in: "file:///music/a.mp3", want: "/music/a.mp3"},
		{in: `C:\music\a.mp3`, want: `C:\music\a.mp3`},
		{in: "http://host/a.mp3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LocalPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("/a/B.MP3"))
	assert.True(t, IsSupported("x.flac"))
	assert.False(t, IsSupported("x.ogg"))
}
