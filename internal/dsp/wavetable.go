// internal/dsp/wavetable.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidTableSize indicates the wavetable needs at least 2 entries
	ErrInvalidTableSize = errors.New("wavetable size must be at least 2")
	// ErrInvalidShape indicates an unknown waveform name
	ErrInvalidShape = errors.New("waveform must be one of sine, triangle, saw, square")
)

// Shape names a single-cycle waveform.
type Shape string

const (
	ShapeSine     Shape = "sine"
	ShapeTriangle Shape = "triangle"
	ShapeSaw      Shape = "saw"
	ShapeSquare   Shape = "square"
)

// DefaultTableSize is the default wavetable length.
const DefaultTableSize = 4096

// Wavetable is an immutable single-cycle waveform read through a phase
// accumulator measured in table entries.
type Wavetable struct {
	shape   Shape
	samples []float32
}

// NewWavetable computes one cycle of shape over size entries.
func NewWavetable(size int, shape Shape) (*Wavetable, error) {
	if size < 2 {
		return nil, ErrInvalidTableSize
	}
	if shape == "" {
		shape = ShapeSine
	}

	samples := make([]float32, size)
	for i := range samples {
		x := float64(i) / float64(size) // position in cycle, [0,1)
		var v float64
		switch shape {
		case ShapeSine:
			v = math.Sin(x * 2 * math.Pi)
		case ShapeTriangle:
			v = 1 - 4*math.Abs(math.Mod(x+0.25, 1)-0.5)
		case ShapeSaw:
			v = 2*x - 1
		case ShapeSquare:
			v = 1
			if x >= 0.5 {
				v = -1
			}
		default:
			return nil, ErrInvalidShape
		}
		samples[i] = float32(v)
	}

	return &Wavetable{shape: shape, samples: samples}, nil
}

// Len returns the number of entries.
func (w *Wavetable) Len() int {
	return len(w.samples)
}

// Shape returns the waveform the table was built from.
func (w *Wavetable) Shape() Shape {
	return w.shape
}

// At returns entry i. Panics on out-of-range indexes like a slice.
func (w *Wavetable) At(i int) float32 {
	return w.samples[i]
}

// Nearest reads the entry at floor(phase) mod Len. Phase must be >= 0.
func (w *Wavetable) Nearest(phase float64) float64 {
	return float64(w.samples[int(phase)%len(w.samples)])
}

// Linear reads with linear interpolation between adjacent entries,
// wrapping at the end of the cycle. Phase must be >= 0.
func (w *Wavetable) Linear(phase float64) float64 {
	n := len(w.samples)
	whole := math.Floor(phase)
	i := int(whole) % n
	j := i + 1
	if j == n {
		j = 0
	}
	frac := phase - whole
	a := float64(w.samples[i])
	return a + (float64(w.samples[j])-a)*frac
}
