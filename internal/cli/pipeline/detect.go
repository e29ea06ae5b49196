// internal/cli/pipeline/detect.go
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ColonelBlimp/notesynth/internal/audio"
	"github.com/ColonelBlimp/notesynth/internal/dsp"
	"github.com/ColonelBlimp/notesynth/internal/ring"
)

// pollInterval is how often control loops drain their queues.
const pollInterval = 5 * time.Millisecond

// drainNotes writes every queued notes message to enc as one JSON line.
func drainNotes(notes *ring.Queue[dsp.NotesMessage], enc *json.Encoder) (int, error) {
	n := 0
	for {
		msg, ok := notes.TryPop()
		if !ok {
			return n, nil
		}
		if err := enc.Encode(msg); err != nil {
			return n, fmt.Errorf("write notes: %w", err)
		}
		n++
	}
}

// DetectWAV runs the detector over a WAV stream in render-quantum blocks and
// writes one JSON notes message per completed window to out.
func (p *Pipeline) DetectWAV(ctx context.Context, r io.Reader, out io.Writer) error {
	det, notes, err := p.NewDetector()
	if err != nil {
		return err
	}
	src, err := audio.OpenWAV(r, int(p.settings.SampleRate))
	if err != nil {
		return err
	}
	defer src.Close()

	p.logger.Debug("detecting from file",
		"file_rate", int(src.Format().SampleRate),
		"rate", src.SampleRate(),
		"window", p.tables.WindowSize())

	enc := json.NewEncoder(out)
	block := make([]float32, p.settings.BufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.ReadMono(block)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read wav: %w", err)
		}
		det.ProcessSamples(block[:n])
		if _, err := drainNotes(notes, enc); err != nil {
			return err
		}
	}

	p.logCounters(det, nil)
	return nil
}

// DetectLive runs the detector on the capture device until ctx is cancelled.
func (p *Pipeline) DetectLive(ctx context.Context, backend *audio.Backend, out io.Writer) error {
	det, notes, err := p.NewDetector()
	if err != nil {
		return err
	}

	capture := audio.NewCapture(backend, p.settings.CaptureConfig())
	defer capture.Close()
	capture.SetCallback(det.ProcessSamples)

	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	p.logger.Info("listening", "device", p.settings.DeviceIndex, "rate", p.settings.SampleRate)

	enc := json.NewEncoder(out)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Flush what the audio thread already published
			_, _ = drainNotes(notes, enc)
			p.logCounters(det, nil)
			if faults := capture.Faults(); faults > 0 {
				p.logger.Warn("capture callback faults", "count", faults)
			}
			return nil
		case <-ticker.C:
			if _, err := drainNotes(notes, enc); err != nil {
				return err
			}
		}
	}
}
