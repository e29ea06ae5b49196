// internal/cli/pipeline/pipeline.go
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ColonelBlimp/notesynth/internal/config"
	"github.com/ColonelBlimp/notesynth/internal/dsp"
	"github.com/ColonelBlimp/notesynth/internal/ring"
	"github.com/ColonelBlimp/notesynth/internal/synth"
)

var ErrSettingsRequired = errors.New("settings required")

// Pipeline builds the detector and synth from validated settings and runs
// them against files or audio devices.
type Pipeline struct {
	settings config.Settings
	logger   *slog.Logger
	tables   *dsp.AnalysisTables
	table    *dsp.Wavetable
}

// New builds the shared analysis tables and wavetable. logger may be nil.
func New(settings *config.Settings, logger *slog.Logger) (*Pipeline, error) {
	if settings == nil {
		return nil, ErrSettingsRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	tables, err := dsp.NewAnalysisTables(settings.TablesConfig())
	if err != nil {
		return nil, fmt.Errorf("analysis tables: %w", err)
	}
	table, err := settings.Wavetable()
	if err != nil {
		return nil, fmt.Errorf("wavetable: %w", err)
	}
	return &Pipeline{
		settings: *settings,
		logger:   logger,
		tables:   tables,
		table:    table,
	}, nil
}

// Settings returns a copy of the settings the pipeline was built from.
func (p *Pipeline) Settings() config.Settings {
	return p.settings
}

// NewDetector returns a detector publishing into a new notes queue.
func (p *Pipeline) NewDetector() (*dsp.Detector, *ring.Queue[dsp.NotesMessage], error) {
	notes := ring.New[dsp.NotesMessage](p.settings.QueueSize)
	det, err := dsp.NewDetector(p.settings.DetectorConfig(), p.tables, notes)
	if err != nil {
		return nil, nil, fmt.Errorf("detector: %w", err)
	}
	return det, notes, nil
}

// Voices bundles a synth with its control queues. Echo is nil unless
// echo_events is enabled.
type Voices struct {
	Synth *synth.Synth
	Inbox *ring.Queue[synth.Event]
	Echo  *ring.Queue[synth.Event]
}

// NewVoices returns a synth reading from a new inbox queue.
func (p *Pipeline) NewVoices() (*Voices, error) {
	s, err := synth.New(p.settings.SynthConfig(), p.table)
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	v := &Voices{Synth: s, Inbox: ring.New[synth.Event](p.settings.QueueSize)}
	s.SetInbox(v.Inbox)
	if p.settings.EchoEvents {
		v.Echo = ring.New[synth.Event](p.settings.QueueSize)
		s.SetPassThrough(v.Echo)
	}
	return v, nil
}

// ReleaseTail returns how long a full-velocity voice takes to fall below the
// release cutoff after note-off, in seconds.
func (p *Pipeline) ReleaseTail() float64 {
	cfg := p.settings.SynthConfig()
	samples := math.Ceil(math.Log(cfg.ReleaseCutoff/cfg.VoiceGain) / math.Log(cfg.ReleaseDecay))
	if samples < 0 || math.IsNaN(samples) {
		return 0
	}
	return samples / cfg.SampleRate
}

// logCounters reports the detector and synth counters at shutdown.
func (p *Pipeline) logCounters(det *dsp.Detector, v *Voices) {
	if det != nil {
		p.logger.Info("detector stopped", "windows", det.Windows(), "dropped", det.Dropped())
	}
	if v != nil {
		p.logger.Info("synth stopped",
			"active", v.Synth.ActiveVoices(),
			"stolen", v.Synth.Stolen(),
			"echo_dropped", v.Synth.EchoDropped())
	}
}
