// internal/dsp/detector.go
package dsp

import (
	"errors"
	"math"
	"sync/atomic"
)

// DefaultThreshold is the default detection level in dB.
const DefaultThreshold = -100.0

var (
	// ErrTablesRequired indicates analysis tables are required
	ErrTablesRequired = errors.New("analysis tables are required")
	// ErrInvalidOverlap indicates overlap percentage must be 0-99
	ErrInvalidOverlap = errors.New("overlap percentage must be between 0 and 99")
	// ErrInvalidThreshold indicates the threshold is NaN
	ErrInvalidThreshold = errors.New("threshold must not be NaN")
)

// NotesSink receives one NotesMessage per completed window.
// TryPush is called from the audio path: it must not block and reports
// false when the message was dropped. *ring.Queue[NotesMessage] satisfies it.
type NotesSink interface {
	TryPush(msg NotesMessage) bool
}

// DetectorConfig holds configuration for the note detector.
// All values should come from the application config file.
type DetectorConfig struct {
	// Threshold is the level in dB a note must exceed (from config: threshold_db)
	Threshold float64
	// OverlapPct slides the window instead of restarting it (from config: overlap_pct).
	// 0 keeps detection block-aligned.
	OverlapPct int
}

// Detector accumulates mono samples into a fixed analysis window and runs a
// Goertzel resonator per note each time the window fills.
//
// Process/ProcessSamples must be called from a single goroutine. SetThreshold
// and the counters are safe from any goroutine.
type Detector struct {
	config     DetectorConfig
	tables     *AnalysisTables
	sink       NotesSink
	sampleRate float64

	buf []float32 // analysis window, len N
	pos int       // write cursor, [0, N)
	hop int       // samples to advance after each pass

	frames uint64       // samples consumed since construction or Reset
	msg    NotesMessage // scratch, reused every window

	thresholdBits atomic.Uint64
	windows       atomic.Uint64
	dropped       atomic.Uint64
}

// NewDetector creates a note detector reading its window and coefficients
// from tables. sink may be nil, in which case results are discarded.
func NewDetector(cfg DetectorConfig, tables *AnalysisTables, sink NotesSink) (*Detector, error) {
	if tables == nil {
		return nil, ErrTablesRequired
	}
	if cfg.OverlapPct < 0 || cfg.OverlapPct >= 100 {
		return nil, ErrInvalidOverlap
	}
	if math.IsNaN(cfg.Threshold) {
		return nil, ErrInvalidThreshold
	}

	n := tables.WindowSize()
	hop := n - (n*cfg.OverlapPct)/100

	d := &Detector{
		config:     cfg,
		tables:     tables,
		sink:       sink,
		sampleRate: tables.Config().SampleRate,
		buf:        make([]float32, n),
		hop:        hop,
	}
	d.thresholdBits.Store(math.Float64bits(cfg.Threshold))
	return d, nil
}

// Process consumes the first channel of the first input, mirroring a host
// callback's inputs[input][channel][frame] layout. Missing inputs or channels
// contribute zero samples. Always returns true (keep processing).
func (d *Detector) Process(inputs [][][]float32) bool {
	if len(inputs) == 0 || len(inputs[0]) == 0 {
		return true
	}
	d.ProcessSamples(inputs[0][0])
	return true
}

// ProcessSamples appends mono samples to the window, running a detection
// pass every time it fills. A nil or empty slice is a no-op.
func (d *Detector) ProcessSamples(samples []float32) {
	n := len(d.buf)
	for _, s := range samples {
		d.buf[d.pos] = s
		d.pos++
		d.frames++
		if d.pos >= n {
			d.analyze()
		}
	}
}

// analyze runs the Goertzel bank over the full window and publishes the result.
func (d *Detector) analyze() {
	n := len(d.buf)
	window := d.tables.window
	low := d.tables.config.LowNote
	threshold := d.Threshold()

	d.msg.reset()
	for i, coeff := range d.tables.coefficients {
		db := PowerDB(goertzelPower(d.buf, window, coeff), n)
		if db > threshold {
			d.msg.add(DetectedNote{MIDI: low + i, Velocity: Velocity(db)})
		}
	}
	d.msg.Time = float64(d.frames) / d.sampleRate
	d.msg.Window = d.windows.Add(1) - 1

	if d.sink != nil && !d.sink.TryPush(d.msg) {
		d.dropped.Add(1)
	}

	if d.hop >= n {
		d.pos = 0
		return
	}
	copy(d.buf, d.buf[d.hop:])
	d.pos = n - d.hop
}

// SetThreshold changes the detection level in dB. Takes effect from the next
// completed window. NaN is ignored.
func (d *Detector) SetThreshold(db float64) {
	if math.IsNaN(db) {
		return
	}
	d.thresholdBits.Store(math.Float64bits(db))
}

// Threshold returns the current detection level in dB.
func (d *Detector) Threshold() float64 {
	return math.Float64frombits(d.thresholdBits.Load())
}

// Buffered returns the number of samples waiting in the window.
func (d *Detector) Buffered() int {
	return d.pos
}

// Windows returns the number of completed detection passes.
func (d *Detector) Windows() uint64 {
	return d.windows.Load()
}

// Dropped returns the number of results the sink refused.
func (d *Detector) Dropped() uint64 {
	return d.dropped.Load()
}

// Tables returns the shared analysis tables.
func (d *Detector) Tables() *AnalysisTables {
	return d.tables
}

// Reset clears the window and the stream clock. Not safe to call
// concurrently with Process.
func (d *Detector) Reset() {
	clear(d.buf)
	d.pos = 0
	d.frames = 0
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() DetectorConfig {
	return d.config
}
