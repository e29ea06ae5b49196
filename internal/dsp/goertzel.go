// internal/dsp/goertzel.go
package dsp

import (
	"math"
)

// powerFloor keeps log10 finite for silent windows.
const powerFloor = 1e-12

// goertzelPower runs the second-order Goertzel recursion over the windowed
// block and returns s1² + s2² - coeff*s1*s2.
// Caller MUST ensure len(block) == len(window).
func goertzelPower(block, window []float32, coeff float64) float64 {
	var s0, s1, s2 float64
	window = window[:len(block)]

	for j, x := range block {
		s0 = float64(x)*float64(window[j]) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	return s1*s1 + s2*s2 - coeff*s1*s2
}

// PowerDB converts a Goertzel power over an n-sample window to a level in
// dB: 10*log10(power/n² + 1e-12).
func PowerDB(power float64, n int) float64 {
	// Guard against floating point errors causing negative values
	if power < 0 {
		power = 0
	}
	nn := float64(n) * float64(n)
	return 10 * math.Log10(power/nn+powerFloor)
}

// Velocity maps a dB level to a MIDI-style velocity, clamp(100+db, 0, 127).
func Velocity(db float64) float64 {
	v := 100 + db
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}

// NoteLevel computes the level in dB of a single note over block using the
// tables' window and coefficient. Returns false when the note is out of
// range or block is not exactly one window long.
func (t *AnalysisTables) NoteLevel(block []float32, note int) (float64, bool) {
	coeff, ok := t.Coefficient(note)
	if !ok || len(block) != t.config.WindowSize {
		return 0, false
	}
	return PowerDB(goertzelPower(block, t.window, coeff), t.config.WindowSize), true
}
