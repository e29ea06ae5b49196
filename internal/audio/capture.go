// internal/audio/capture.go
package audio

import (
	"context"
	"sync/atomic"

	"github.com/ColonelBlimp/notesynth/internal/recovery"
	"github.com/gen2brain/malgo"
)

// SampleCallback is called directly from the audio thread with one block of
// mono samples. Must be non-blocking and fast. The slice is reused.
type SampleCallback func(samples []float32)

// Capture delivers the first channel of an input device to a SampleCallback.
type Capture struct {
	stream

	callback atomic.Pointer[SampleCallback]
	scratch  []float32
	closed   atomic.Bool
}

// NewCapture creates a capture stream on backend.
func NewCapture(backend *Backend, cfg Config) *Capture {
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &Capture{
		stream: stream{backend: backend, config: cfg, kind: malgo.Capture},
	}
}

// SetCallback sets the real-time sample callback. Safe to call while running.
func (c *Capture) SetCallback(cb SampleCallback) {
	if cb == nil {
		c.callback.Store(nil)
		return
	}
	c.callback.Store(&cb)
}

// Start begins audio capture. The stream stops when ctx is cancelled.
func (c *Capture) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrNotInitialized
	}
	if c.scratch == nil && c.config.Channels > 1 {
		c.scratch = make([]float32, c.config.BufferSize*2)
	}
	return c.start(ctx, c.onFrames)
}

func (c *Capture) onFrames(_, input []byte, frames uint32) {
	defer recovery.Contain(&c.faults, "capture")
	if c.closed.Load() || len(input) == 0 {
		return
	}
	cbp := c.callback.Load()
	if cbp == nil {
		return
	}
	samples := bytesAsFloat32(input)
	if c.config.Channels > 1 {
		samples = c.firstChannel(samples, int(frames))
	}
	(*cbp)(samples)
}

// firstChannel deinterleaves channel 0 into the scratch buffer.
func (c *Capture) firstChannel(interleaved []float32, frames int) []float32 {
	channels := int(c.config.Channels)
	if limit := len(interleaved) / channels; frames > limit {
		frames = limit
	}
	if cap(c.scratch) < frames {
		c.scratch = make([]float32, frames)
	}
	out := c.scratch[:frames]
	for i := range out {
		out[i] = interleaved[i*channels]
	}
	return out
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	return c.stop()
}

// Close stops the stream if running. The backend is left open.
func (c *Capture) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.running.Load() {
		return c.stop()
	}
	return nil
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	return c.running.Load()
}

// Faults returns the number of panics contained in the audio callback.
func (c *Capture) Faults() uint64 {
	return c.faults.Load()
}
