// internal/cli/pipeline/follow.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ColonelBlimp/notesynth/internal/audio"
	"github.com/ColonelBlimp/notesynth/internal/dsp"
	"github.com/ColonelBlimp/notesynth/internal/ring"
	"github.com/ColonelBlimp/notesynth/internal/synth"
	"github.com/ColonelBlimp/notesynth/internal/tracker"
)

// Follower moves detections to synth events on the control side.
type Follower struct {
	notes   *ring.Queue[dsp.NotesMessage]
	inbox   *ring.Queue[synth.Event]
	tracker *tracker.Tracker
	pending []synth.Event
	dropped uint64
}

// NewFollower connects a notes queue to a synth inbox through a tracker.
func NewFollower(notes *ring.Queue[dsp.NotesMessage], inbox *ring.Queue[synth.Event], maxNotes int) (*Follower, error) {
	tr, err := tracker.New(maxNotes)
	if err != nil {
		return nil, err
	}
	return &Follower{
		notes:   notes,
		inbox:   inbox,
		tracker: tr,
		pending: make([]synth.Event, 0, 2*dsp.MIDINotes),
	}, nil
}

// Step handles every queued notes message and forwards the resulting
// transitions. Events the inbox cannot take are dropped and counted.
func (f *Follower) Step() int {
	handled := 0
	for {
		msg, ok := f.notes.TryPop()
		if !ok {
			return handled
		}
		f.pending = f.tracker.Update(&msg, f.pending[:0])
		f.forward()
		handled++
	}
}

// Release sends note-offs for every followed note.
func (f *Follower) Release() {
	f.pending = f.tracker.Release(f.pending[:0])
	f.forward()
}

func (f *Follower) forward() {
	for _, ev := range f.pending {
		if !f.inbox.TryPush(ev) {
			f.dropped++
		}
	}
}

// Dropped returns the number of events the synth inbox refused.
func (f *Follower) Dropped() uint64 {
	return f.dropped
}

// Sounding returns the number of notes currently followed.
func (f *Follower) Sounding() int {
	return f.tracker.Sounding()
}

// Follow plays the strongest detected notes back through the synth:
// capture, detector, tracker, synth, playback. Runs until ctx is cancelled.
func (p *Pipeline) Follow(ctx context.Context, backend *audio.Backend) error {
	det, notes, err := p.NewDetector()
	if err != nil {
		return err
	}
	v, err := p.NewVoices()
	if err != nil {
		return err
	}
	follower, err := NewFollower(notes, v.Inbox, p.settings.FollowMaxNotes)
	if err != nil {
		return err
	}

	playback := audio.NewPlayback(backend, p.settings.PlaybackConfig())
	defer playback.Close()
	playback.SetRender(v.Synth.RenderInterleaved)

	capture := audio.NewCapture(backend, p.settings.CaptureConfig())
	defer capture.Close()
	capture.SetCallback(det.ProcessSamples)

	if err := playback.Start(ctx); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	p.logger.Info("following",
		"input", p.settings.DeviceIndex,
		"output", p.settings.OutputDeviceIndex,
		"max_notes", p.settings.FollowMaxNotes)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			follower.Release()
			p.logCounters(det, v)
			if d := follower.Dropped(); d > 0 {
				p.logger.Warn("follow events dropped", "count", d)
			}
			return nil
		case <-ticker.C:
			follower.Step()
			// Nothing reads echoes while following
			drainEcho(v, nil)
		}
	}
}
