package render

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/playback"
)

// Output is the audio sink shared by all resources. Lock must be held
// while changing a streamer that is being played.
type Output interface {
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
}

// Config holds engine configuration.
type Config struct {
	SampleRate int           // Output sample rate
	Buffer     time.Duration // Output buffer length
}

// speakerOutput is the process-wide speaker. It can be initialised once.
type speakerOutput struct{}

func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Engine creates render resources on one output.
type Engine struct {
	out  Output
	rate beep.SampleRate
}

var _ playback.Renderer = (*Engine)(nil)

// NewEngine initialises the speaker and returns an engine playing on it.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 100 * time.Millisecond
	}
	rate := beep.SampleRate(cfg.SampleRate)

	speakerOnce.Do(func() {
		speakerErr = speaker.Init(rate, rate.N(cfg.Buffer))
	})
	if speakerErr != nil {
		return nil, errors.Wrap(speakerErr, "failed to initialise audio output")
	}
	zlog.Info().Msgf("render: speaker ready at %d Hz, buffer %s", cfg.SampleRate, cfg.Buffer)
	return NewEngineWithOutput(speakerOutput{}, rate), nil
}

// NewEngineWithOutput returns an engine playing on out at rate.
func NewEngineWithOutput(out Output, rate beep.SampleRate) *Engine {
	return &Engine{out: out, rate: rate}
}

// NewResource implements playback.Renderer.
func (e *Engine) NewResource(l playback.ResourceListener) (playback.Resource, error) {
	if l == nil {
		return nil, errors.New("resource listener is required")
	}
	return newResource(e, l), nil
}
