package render

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/playback"
)

// Errors
var (
	ErrNotPrepared = errors.New("resource not prepared")
	ErrReleased    = errors.New("resource released")
)

// resource renders one track. The decoded stream is queued on the output
// paused and stays there until release; Start and Pause toggle the Ctrl.
//
// Lock order: r.mu, then the output lock. The end-of-track callback runs
// under the output lock and only touches atomics.
type resource struct {
	engine   *Engine
	listener playback.ResourceListener

	mu        sync.Mutex
	preparing bool
	streamer  beep.StreamSeekCloser
	format    beep.Format
	ctrl      *beep.Ctrl
	volume    *effects.Volume
	queued    bool

	released  atomic.Bool
	completed atomic.Bool
}

func newResource(e *Engine, l playback.ResourceListener) *resource {
	return &resource{engine: e, listener: l}
}

// PrepareAsync decodes locator on a new goroutine and reports the outcome
// to the listener. A resource released before decoding finishes reports
// nothing.
func (r *resource) PrepareAsync(locator string) {
	r.mu.Lock()
	if r.preparing || r.streamer != nil || r.released.Load() {
		r.mu.Unlock()
		return
	}
	r.preparing = true
	r.mu.Unlock()

	go func() {
		streamer, format, err := openLocator(locator)

		r.mu.Lock()
		r.preparing = false
		if r.released.Load() {
			r.mu.Unlock()
			if streamer != nil {
				streamer.Close()
			}
			return
		}
		if err == nil {
			r.setStream(streamer, format)
			zlog.Debug().Msgf("render: prepared %s (%d Hz, %d ch, %s)",
				locator, format.SampleRate, format.NumChannels, format.SampleRate.D(streamer.Len()).Round(time.Second))
		}
		r.mu.Unlock()

		r.listener.Prepared(err)
	}()
}

// setStream builds the streamer chain. Caller holds r.mu.
func (r *resource) setStream(streamer beep.StreamSeekCloser, format beep.Format) {
	r.streamer = streamer
	r.format = format
	r.ctrl = &beep.Ctrl{Streamer: streamer, Paused: true}

	var s beep.Streamer = r.ctrl
	if format.SampleRate != r.engine.rate {
		s = beep.Resample(4, format.SampleRate, r.engine.rate, r.ctrl)
	}
	r.volume = &effects.Volume{Streamer: s, Base: 2}
}

func (r *resource) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}

	if !r.queued {
		r.queued = true
		r.completed.Store(false)
		r.ctrl.Paused = false
		r.engine.out.Play(beep.Seq(r.volume, beep.Callback(r.onEnd)))
		return nil
	}

	r.engine.out.Lock()
	r.ctrl.Paused = false
	r.engine.out.Unlock()
	return nil
}

func (r *resource) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	r.engine.out.Lock()
	r.ctrl.Paused = true
	r.engine.out.Unlock()
	return nil
}

// Stop halts output and rewinds to the start of the track.
func (r *resource) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	r.engine.out.Lock()
	defer r.engine.out.Unlock()
	r.ctrl.Paused = true
	if err := r.streamer.Seek(0); err != nil {
		return errors.Wrap(err, "rewind")
	}
	return nil
}

// SeekTo moves to ms, clamped to the track length.
func (r *resource) SeekTo(ms int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}

	n := r.format.SampleRate.N(time.Duration(ms) * time.Millisecond)
	if n < 0 {
		n = 0
	}
	if l := r.streamer.Len(); n > l {
		n = l
	}

	r.engine.out.Lock()
	defer r.engine.out.Unlock()
	if err := r.streamer.Seek(n); err != nil {
		return errors.Wrapf(err, "seek to %dms", ms)
	}
	return nil
}

// Release stops output and closes the decoder. It is idempotent.
func (r *resource) Release() {
	if r.released.Swap(true) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamer == nil {
		return
	}

	r.engine.out.Lock()
	r.ctrl.Paused = true
	// A nil streamer ends the Ctrl; the output drops it.
	r.ctrl.Streamer = nil
	r.engine.out.Unlock()

	if err := r.streamer.Close(); err != nil {
		zlog.Warn().Err(err).Msg("render: failed to close decoder")
	}
}

func (r *resource) CurrentPosition() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamer == nil || r.released.Load() {
		return 0
	}
	r.engine.out.Lock()
	pos := r.streamer.Position()
	r.engine.out.Unlock()
	return int(r.format.SampleRate.D(pos) / time.Millisecond)
}

func (r *resource) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctrl == nil || !r.queued || r.released.Load() || r.completed.Load() {
		return false
	}
	r.engine.out.Lock()
	defer r.engine.out.Unlock()
	return !r.ctrl.Paused
}

// SetVolume sets the linear output level (0.0 to 1.0).
func (r *resource) SetVolume(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.volume == nil {
		return
	}
	r.engine.out.Lock()
	defer r.engine.out.Unlock()
	if level <= 0 {
		r.volume.Silent = true
		return
	}
	if level > 1 {
		level = 1
	}
	r.volume.Silent = false
	r.volume.Volume = math.Log2(level)
}

// onEnd runs on the output goroutine when the stream is exhausted.
func (r *resource) onEnd() {
	if r.released.Load() {
		return
	}
	if r.completed.Swap(true) {
		return
	}
	// Decoders end the stream on a read error; that is a failure, not the end.
	if err := r.streamer.Err(); err != nil {
		r.listener.Failed(errors.Wrap(err, "decode"))
		return
	}
	r.listener.Completed()
}

// usable reports whether the resource can render. Caller holds r.mu.
func (r *resource) usable() error {
	if r.released.Load() {
		return ErrReleased
	}
	if r.streamer == nil {
		return ErrNotPrepared
	}
	return nil
}
