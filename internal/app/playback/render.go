package playback

// ResourceListener receives asynchronous notifications from a render
// resource. Implementations must not block.
type ResourceListener interface {
	// Prepared is called once PrepareAsync finishes; err is nil on success.
	Prepared(err error)
	// Completed is called when the track has been rendered to the end.
	Completed()
	// Failed is called when rendering fails after preparation.
	Failed(err error)
}

// Resource is one render resource: the object that decodes and outputs a
// single audio source.
type Resource interface {
	PrepareAsync(locator string)
	Start() error
	Pause() error
	Stop() error
	SeekTo(ms int) error
	Release()
	CurrentPosition() int // Milliseconds
	IsPlaying() bool
	SetVolume(level float64) // 0.0 to 1.0
}

// Renderer creates render resources.
type Renderer interface {
	NewResource(l ResourceListener) (Resource, error)
}

// resourceListener tags callbacks with the generation of the resource they
// belong to so that callbacks from a superseded resource are dropped.
type resourceListener struct {
	c   *Controller
	gen uint64
}

func (l resourceListener) Prepared(err error) {
	if err != nil {
		l.c.Submit(Event{Type: EventPrepareError, Err: err, generation: l.gen})
		return
	}
	l.c.Submit(Event{Type: EventPrepareComplete, generation: l.gen})
}

func (l resourceListener) Completed() {
	l.c.Submit(Event{Type: EventTrackCompleted, generation: l.gen})
}

func (l resourceListener) Failed(err error) {
	l.c.Submit(Event{Type: EventRenderError, Err: err, generation: l.gen})
}
