// internal/audio/wav.go
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"
)

// resampleQuality is the beep interpolation quality used when a file's rate
// differs from the analysis rate.
const resampleQuality = 4

var ErrInvalidGain = errors.New("gain must be positive")

// WAVReader reads the left channel of a WAV stream as mono float32,
// resampled to a target rate.
type WAVReader struct {
	source  beep.StreamSeekCloser
	stream  beep.Streamer
	format  beep.Format
	rate    int
	scratch [][2]float64
}

// OpenWAV decodes r and resamples to sampleRate when the file rate differs.
func OpenWAV(r io.Reader, sampleRate int) (*WAVReader, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	source, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	var stream beep.Streamer = source
	if int(format.SampleRate) != sampleRate {
		stream = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(sampleRate), source)
	}
	return &WAVReader{
		source:  source,
		stream:  stream,
		format:  format,
		rate:    sampleRate,
		scratch: make([][2]float64, 512),
	}, nil
}

// Format returns the file's own format.
func (w *WAVReader) Format() beep.Format {
	return w.format
}

// SampleRate returns the rate samples are delivered at.
func (w *WAVReader) SampleRate() int {
	return w.rate
}

// ReadMono fills dst with up to len(dst) samples. It returns io.EOF once the
// stream is exhausted and no samples were read.
func (w *WAVReader) ReadMono(dst []float32) (int, error) {
	total := 0
	for total < len(dst) {
		chunk := w.scratch
		if rest := len(dst) - total; rest < len(chunk) {
			chunk = chunk[:rest]
		}
		n, ok := w.stream.Stream(chunk)
		for i := 0; i < n; i++ {
			dst[total+i] = float32(chunk[i][0])
		}
		total += n
		if !ok {
			break
		}
	}
	if total == 0 && len(dst) > 0 {
		if err := w.stream.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	return total, nil
}

// Close releases the decoder.
func (w *WAVReader) Close() error {
	return w.source.Close()
}

// WriteWAV renders frames of s as 16-bit stereo PCM. gain scales the output
// linearly; 1 leaves it unchanged.
func WriteWAV(out io.WriteSeeker, s beep.Streamer, sampleRate, frames int, gain float64) error {
	if gain <= 0 || math.IsNaN(gain) {
		return ErrInvalidGain
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	var stream beep.Streamer = beep.Take(frames, s)
	if gain != 1 {
		stream = &effects.Volume{Streamer: stream, Base: 2, Volume: math.Log2(gain)}
	}
	if err := wav.Encode(out, stream, format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}
