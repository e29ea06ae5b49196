// internal/audio/playback.go
package audio

import (
	"context"
	"sync/atomic"

	"github.com/ColonelBlimp/notesynth/internal/recovery"
	"github.com/gen2brain/malgo"
)

// RenderFunc fills an interleaved buffer of channels-wide frames. It runs on
// the audio thread and must not block or allocate.
type RenderFunc func(out []float32, channels int)

// Playback pulls output blocks from a RenderFunc.
type Playback struct {
	stream

	render atomic.Pointer[RenderFunc]
	closed atomic.Bool
}

// NewPlayback creates a playback stream on backend.
func NewPlayback(backend *Backend, cfg Config) *Playback {
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &Playback{
		stream: stream{backend: backend, config: cfg, kind: malgo.Playback},
	}
}

// SetRender sets the render function. With none set the device plays silence.
func (p *Playback) SetRender(fn RenderFunc) {
	if fn == nil {
		p.render.Store(nil)
		return
	}
	p.render.Store(&fn)
}

// Start begins playback. The stream stops when ctx is cancelled.
func (p *Playback) Start(ctx context.Context) error {
	if p.closed.Load() {
		return ErrNotInitialized
	}
	return p.start(ctx, p.onFrames)
}

func (p *Playback) onFrames(output, _ []byte, _ uint32) {
	out := bytesAsFloat32(output)
	defer recovery.ContainFunc(&p.faults, "playback", func() { clear(out) })

	fn := p.render.Load()
	if fn == nil || p.closed.Load() {
		clear(out)
		return
	}
	(*fn)(out, int(p.config.Channels))
}

// Stop stops playback
func (p *Playback) Stop() error {
	return p.stop()
}

// Close stops the stream if running. The backend is left open.
func (p *Playback) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.running.Load() {
		return p.stop()
	}
	return nil
}

// IsRunning returns true if playback is active
func (p *Playback) IsRunning() bool {
	return p.running.Load()
}

// Faults returns the number of panics contained in the audio callback.
func (p *Playback) Faults() uint64 {
	return p.faults.Load()
}
