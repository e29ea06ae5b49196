// internal/dsp/tables.go
package dsp

import (
	"errors"
	"math"
)

const (
	// MIDINotes is the number of addressable MIDI note numbers (0-127).
	MIDINotes = 128
	// ReferenceNote is the MIDI number of the tuning reference (A4).
	ReferenceNote = 69
	// DefaultTuning is the frequency of the reference note in Hz.
	DefaultTuning = 440.0
)

var (
	// ErrInvalidWindowSize indicates window size must be at least 2
	ErrInvalidWindowSize = errors.New("window size must be at least 2")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidNoteRange indicates the note range must lie within 0-127 with low <= high
	ErrInvalidNoteRange = errors.New("note range must satisfy 0 <= low <= high <= 127")
	// ErrInvalidTuning indicates the reference frequency must be positive
	ErrInvalidTuning = errors.New("tuning reference must be positive")
	// ErrInvalidCoefficientMode indicates an unknown coefficient mode
	ErrInvalidCoefficientMode = errors.New("unknown coefficient mode")
)

// CoefficientMode selects how the per-note Goertzel coefficient is derived.
type CoefficientMode int

const (
	// CoefficientResonant tunes each resonator to the note frequency: 2*cos(2π*f/fs).
	CoefficientResonant CoefficientMode = iota
	// CoefficientLegacy is 2*cos(2π*f/fs*N), kept for output compatibility
	// with older detectors. The resonator lands on f*N mod fs, not on f.
	CoefficientLegacy
)

// ParseCoefficientMode maps a config string to a CoefficientMode.
func ParseCoefficientMode(s string) (CoefficientMode, error) {
	switch s {
	case "", "resonant":
		return CoefficientResonant, nil
	case "legacy":
		return CoefficientLegacy, nil
	}
	return 0, ErrInvalidCoefficientMode
}

func (m CoefficientMode) String() string {
	switch m {
	case CoefficientResonant:
		return "resonant"
	case CoefficientLegacy:
		return "legacy"
	}
	return "unknown"
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note,
// f = tuning * 2^((note-69)/12).
func NoteFrequency(note int, tuning float64) float64 {
	return tuning * math.Pow(2, float64(note-ReferenceNote)/12)
}

// ResonantCoefficient returns 2*cos(2π*f/fs).
func ResonantCoefficient(freq, sampleRate float64) float64 {
	return 2 * math.Cos(2*math.Pi*freq/sampleRate)
}

// LegacyCoefficient returns 2*cos(2π*f/fs*N).
func LegacyCoefficient(freq, sampleRate float64, windowSize int) float64 {
	return 2 * math.Cos(2*math.Pi*freq/sampleRate*float64(windowSize))
}

// HannWindow builds the symmetric raised-cosine window
// w[j] = 0.5*(1 - cos(2πj/(n-1))).
func HannWindow(n int) []float32 {
	w := make([]float32, n)
	if n < 2 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	for j := range w {
		w[j] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(j)/float64(n-1))))
	}
	return w
}

// TablesConfig holds the inputs of the analysis precomputation.
type TablesConfig struct {
	SampleRate float64
	WindowSize int
	LowNote    int
	HighNote   int
	Tuning     float64
	Mode       CoefficientMode
}

// AnalysisTables holds the immutable data shared by every detection pass.
// Built once, never mutated; safe to read from any goroutine after publication.
type AnalysisTables struct {
	config       TablesConfig
	window       []float32
	coefficients []float64 // indexed by note - LowNote
}

// NewAnalysisTables validates cfg and precomputes the window and coefficient tables.
// A sample rate change requires building new tables.
func NewAnalysisTables(cfg TablesConfig) (*AnalysisTables, error) {
	if cfg.SampleRate <= 0 || math.IsNaN(cfg.SampleRate) || math.IsInf(cfg.SampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}
	if cfg.WindowSize < 2 {
		return nil, ErrInvalidWindowSize
	}
	if cfg.LowNote < 0 || cfg.HighNote >= MIDINotes || cfg.LowNote > cfg.HighNote {
		return nil, ErrInvalidNoteRange
	}
	if cfg.Tuning <= 0 {
		return nil, ErrInvalidTuning
	}
	if cfg.Mode != CoefficientResonant && cfg.Mode != CoefficientLegacy {
		return nil, ErrInvalidCoefficientMode
	}

	coeffs := make([]float64, cfg.HighNote-cfg.LowNote+1)
	for m := cfg.LowNote; m <= cfg.HighNote; m++ {
		f := NoteFrequency(m, cfg.Tuning)
		if cfg.Mode == CoefficientLegacy {
			coeffs[m-cfg.LowNote] = LegacyCoefficient(f, cfg.SampleRate, cfg.WindowSize)
		} else {
			coeffs[m-cfg.LowNote] = ResonantCoefficient(f, cfg.SampleRate)
		}
	}

	return &AnalysisTables{
		config:       cfg,
		window:       HannWindow(cfg.WindowSize),
		coefficients: coeffs,
	}, nil
}

// Config returns the inputs the tables were built from.
func (t *AnalysisTables) Config() TablesConfig {
	return t.config
}

// WindowSize returns N.
func (t *AnalysisTables) WindowSize() int {
	return t.config.WindowSize
}

// Window returns the window table. Callers must not modify it.
func (t *AnalysisTables) Window() []float32 {
	return t.window
}

// Coefficient returns the coefficient for a note, or false when the note is
// outside the configured range.
func (t *AnalysisTables) Coefficient(note int) (float64, bool) {
	if note < t.config.LowNote || note > t.config.HighNote {
		return 0, false
	}
	return t.coefficients[note-t.config.LowNote], true
}

// NoteRange returns the inclusive MIDI note range.
func (t *AnalysisTables) NoteRange() (low, high int) {
	return t.config.LowNote, t.config.HighNote
}
