// internal/cli/pipeline/render.go
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ColonelBlimp/notesynth/internal/audio"
	"github.com/ColonelBlimp/notesynth/internal/synth"
)

var ErrInvalidDuration = errors.New("duration must not be negative")

// RenderOptions controls an offline render. A zero Duration renders until the
// last cue plus the release tail.
type RenderOptions struct {
	Duration float64
	Gain     float64
}

// Render reads a timed score from score and writes it to out as a WAV file.
// It returns the number of frames written.
func (p *Pipeline) Render(score io.Reader, out io.WriteSeeker, opts RenderOptions) (int, error) {
	if opts.Duration < 0 || math.IsNaN(opts.Duration) {
		return 0, ErrInvalidDuration
	}
	if opts.Gain == 0 {
		opts.Gain = 1
	}

	cues, err := synth.ReadScore(score)
	if err != nil {
		return 0, fmt.Errorf("read score: %w", err)
	}
	v, err := p.NewVoices()
	if err != nil {
		return 0, err
	}

	duration := opts.Duration
	if duration == 0 {
		duration = synth.Duration(cues) + p.ReleaseTail()
	}
	rate := int(p.settings.SampleRate)
	frames := int(math.Ceil(duration * float64(rate)))

	streamer := synth.NewStreamer(v.Synth, cues)
	if err := audio.WriteWAV(out, streamer, rate, frames, opts.Gain); err != nil {
		return 0, err
	}

	p.logger.Debug("rendered",
		"cues", len(cues),
		"pending", streamer.Pending(),
		"frames", frames,
		"stolen", v.Synth.Stolen())
	return frames, nil
}
