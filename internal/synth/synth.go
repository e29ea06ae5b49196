// internal/synth/synth.go
package synth

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/ColonelBlimp/notesynth/internal/dsp"
)

// Defaults mirror the reference voice behaviour.
const (
	DefaultMaxVoices     = 32
	DefaultVoiceGain     = 0.25
	DefaultReleaseDecay  = 0.995
	DefaultReleaseCutoff = 0.001
)

var (
	// ErrWavetableRequired indicates a wavetable is required
	ErrWavetableRequired = errors.New("wavetable is required")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidMaxVoices indicates polyphony must be at least 1
	ErrInvalidMaxVoices = errors.New("max voices must be at least 1")
	// ErrInvalidVoiceGain indicates voice gain must be in (0, 1]
	ErrInvalidVoiceGain = errors.New("voice gain must be between 0 and 1")
	// ErrInvalidReleaseDecay indicates release decay must be in (0, 1)
	ErrInvalidReleaseDecay = errors.New("release decay must be between 0 and 1 exclusive")
	// ErrInvalidReleaseCutoff indicates release cutoff must be in (0, 1)
	ErrInvalidReleaseCutoff = errors.New("release cutoff must be between 0 and 1 exclusive")
	// ErrInvalidStealPolicy indicates an unknown voice stealing policy
	ErrInvalidStealPolicy = errors.New("steal policy must be oldest or quietest")
	// ErrInvalidTuning indicates the reference frequency must be positive
	ErrInvalidTuning = errors.New("tuning reference must be positive")
)

// StealPolicy picks the voice replaced when a note-on arrives with every slot in use.
type StealPolicy int

const (
	StealOldest StealPolicy = iota
	StealQuietest
)

// ParseStealPolicy maps a config string to a StealPolicy.
func ParseStealPolicy(s string) (StealPolicy, error) {
	switch s {
	case "", "oldest":
		return StealOldest, nil
	case "quietest":
		return StealQuietest, nil
	}
	return 0, ErrInvalidStealPolicy
}

// Config holds configuration for the wavetable synth.
// All values should come from the application config file.
type Config struct {
	// SampleRate is the output rate in Hz (from config: sample_rate)
	SampleRate float64
	// Tuning is the A4 frequency in Hz (from config: tuning_a4)
	Tuning float64
	// MaxVoices bounds polyphony (from config: max_voices)
	MaxVoices int
	// VoiceGain scales velocity/127 into voice gain (from config: voice_gain)
	VoiceGain float64
	// ReleaseDecay multiplies a releasing voice's gain every sample (from config: release_decay)
	ReleaseDecay float64
	// ReleaseCutoff removes a releasing voice once its gain falls below it (from config: release_cutoff)
	ReleaseCutoff float64
	// Steal selects the eviction victim when the pool is full (from config: steal_policy)
	Steal StealPolicy
	// Interpolate enables linear table interpolation instead of nearest-neighbour (from config: interpolate)
	Interpolate bool
}

// DefaultConfig returns the reference voice behaviour at the given rate.
func DefaultConfig(sampleRate float64) Config {
	return Config{
		SampleRate:    sampleRate,
		Tuning:        dsp.DefaultTuning,
		MaxVoices:     DefaultMaxVoices,
		VoiceGain:     DefaultVoiceGain,
		ReleaseDecay:  DefaultReleaseDecay,
		ReleaseCutoff: DefaultReleaseCutoff,
		Steal:         StealOldest,
	}
}

// voice is one slot of the arena.
type voice struct {
	note      int
	phase     float64 // table entries, never wrapped
	increment float64 // table entries per sample
	gain      float64
	releasing bool
	serial    uint64 // note-on order, for StealOldest
}

// VoiceState is a read-only view of a sounding voice.
type VoiceState struct {
	Note      int
	Phase     float64
	Increment float64
	Gain      float64
	Releasing bool
}

// Synth is a polyphonic wavetable synthesizer driven by note events.
//
// Render, Process and HandleEvent must be called from the audio goroutine.
// Other goroutines talk to it through the inbox (see SetInbox) and read the
// atomic counters.
type Synth struct {
	config Config
	table  *dsp.Wavetable

	voices []voice // fixed arena, voices[:active] are sounding
	active int
	serial uint64

	inbox       EventSource
	passThrough EventSink

	activeCount atomic.Int64
	stolen      atomic.Uint64
	echoDropped atomic.Uint64
}

// New creates a synth reading waveform data from table.
func New(cfg Config, table *dsp.Wavetable) (*Synth, error) {
	if table == nil {
		return nil, ErrWavetableRequired
	}
	if cfg.SampleRate <= 0 || math.IsNaN(cfg.SampleRate) || math.IsInf(cfg.SampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Tuning <= 0 {
		return nil, ErrInvalidTuning
	}
	if cfg.MaxVoices < 1 {
		return nil, ErrInvalidMaxVoices
	}
	if cfg.VoiceGain <= 0 || cfg.VoiceGain > 1 {
		return nil, ErrInvalidVoiceGain
	}
	if cfg.ReleaseDecay <= 0 || cfg.ReleaseDecay >= 1 {
		return nil, ErrInvalidReleaseDecay
	}
	if cfg.ReleaseCutoff <= 0 || cfg.ReleaseCutoff >= 1 {
		return nil, ErrInvalidReleaseCutoff
	}
	if cfg.Steal != StealOldest && cfg.Steal != StealQuietest {
		return nil, ErrInvalidStealPolicy
	}

	return &Synth{
		config: cfg,
		table:  table,
		voices: make([]voice, cfg.MaxVoices),
	}, nil
}

// SetInbox sets the queue drained at the start of every Process call.
// Set before the audio goroutine starts.
func (s *Synth) SetInbox(src EventSource) {
	s.inbox = src
}

// SetPassThrough sets a sink that receives a copy of every handled event
// before it is applied. nil disables the echo. Set before the audio
// goroutine starts.
func (s *Synth) SetPassThrough(sink EventSink) {
	s.passThrough = sink
}

// HandleEvent applies one control event to the voice pool.
func (s *Synth) HandleEvent(ev Event) {
	if s.passThrough != nil && !s.passThrough.TryPush(ev) {
		s.echoDropped.Add(1)
	}

	switch ev.Kind {
	case EventNoteOn:
		s.noteOn(ev.Note, ev.Velocity)
	case EventNoteOff:
		s.noteOff(ev.Note)
	}
	s.activeCount.Store(int64(s.active))
}

func (s *Synth) noteOn(note, velocity int) {
	freq := dsp.NoteFrequency(note, s.config.Tuning)
	v := voice{
		note:      note,
		increment: freq * float64(s.table.Len()) / s.config.SampleRate,
		gain:      float64(velocity) / 127 * s.config.VoiceGain,
		serial:    s.serial,
	}
	s.serial++

	if s.active < len(s.voices) {
		s.voices[s.active] = v
		s.active++
		return
	}
	s.voices[s.victim()] = v
	s.stolen.Add(1)
}

// victim returns the arena index to overwrite when the pool is full.
func (s *Synth) victim() int {
	idx := 0
	for i := 1; i < s.active; i++ {
		a, b := &s.voices[i], &s.voices[idx]
		switch s.config.Steal {
		case StealQuietest:
			if a.gain < b.gain || (a.gain == b.gain && a.serial < b.serial) {
				idx = i
			}
		default:
			if a.serial < b.serial {
				idx = i
			}
		}
	}
	return idx
}

// noteOff releases every voice playing note; duplicates are all released.
func (s *Synth) noteOff(note int) {
	for i := 0; i < s.active; i++ {
		if s.voices[i].note == note {
			s.voices[i].releasing = true
		}
	}
}

// drain applies every queued inbox event.
func (s *Synth) drain() {
	if s.inbox == nil {
		return
	}
	for {
		ev, ok := s.inbox.TryPop()
		if !ok {
			return
		}
		s.HandleEvent(ev)
	}
}

// nextSample mixes one output sample and advances every voice.
// Voices are visited from the end of the arena so a removal can move the
// last voice, already visited, into the freed slot.
func (s *Synth) nextSample() float64 {
	var mix float64
	decay := s.config.ReleaseDecay
	cutoff := s.config.ReleaseCutoff

	for i := s.active - 1; i >= 0; i-- {
		v := &s.voices[i]
		if s.config.Interpolate {
			mix += s.table.Linear(v.phase) * v.gain
		} else {
			mix += s.table.Nearest(v.phase) * v.gain
		}
		v.phase += v.increment

		if v.releasing {
			v.gain *= decay
			if v.gain < cutoff {
				s.active--
				s.voices[i] = s.voices[s.active]
			}
		}
	}
	return mix
}

// Process drains the inbox and renders into the first output, mirroring a
// host callback's outputs[output][channel][frame] layout. The frame count is
// the length of channel 0; shorter channels are written as far as they go.
// Always returns true (keep processing).
func (s *Synth) Process(outputs [][][]float32) bool {
	s.drain()
	if len(outputs) == 0 {
		return true
	}
	s.Render(outputs[0])
	return true
}

// Render writes one block, the same mono mix on every channel.
func (s *Synth) Render(channels [][]float32) {
	if len(channels) == 0 {
		return
	}
	frames := len(channels[0])
	for i := 0; i < frames; i++ {
		mix := float32(s.nextSample())
		for _, ch := range channels {
			if i < len(ch) {
				ch[i] = mix
			}
		}
	}
	s.activeCount.Store(int64(s.active))
}

// RenderInterleaved drains the inbox and writes len(buf)/channels frames of
// interleaved samples. Trailing samples of a partial frame are zeroed.
func (s *Synth) RenderInterleaved(buf []float32, channels int) {
	s.drain()
	if channels < 1 {
		clear(buf)
		return
	}
	frames := len(buf) / channels
	for i := 0; i < frames; i++ {
		mix := float32(s.nextSample())
		frame := buf[i*channels : (i+1)*channels]
		for c := range frame {
			frame[c] = mix
		}
	}
	clear(buf[frames*channels:])
	s.activeCount.Store(int64(s.active))
}

// ActiveVoices returns the number of sounding voices as of the last render
// or event. Safe from any goroutine.
func (s *Synth) ActiveVoices() int {
	return int(s.activeCount.Load())
}

// AppendVoices appends the state of every sounding voice to dst.
// Audio goroutine only.
func (s *Synth) AppendVoices(dst []VoiceState) []VoiceState {
	for _, v := range s.voices[:s.active] {
		dst = append(dst, VoiceState{
			Note:      v.note,
			Phase:     v.phase,
			Increment: v.increment,
			Gain:      v.gain,
			Releasing: v.releasing,
		})
	}
	return dst
}

// Stolen returns how many voices were evicted to make room for a note-on.
func (s *Synth) Stolen() uint64 {
	return s.stolen.Load()
}

// EchoDropped returns how many pass-through copies the echo sink refused.
func (s *Synth) EchoDropped() uint64 {
	return s.echoDropped.Load()
}

// Wavetable returns the shared waveform table.
func (s *Synth) Wavetable() *dsp.Wavetable {
	return s.table
}

// Config returns the configuration the synth was built with.
func (s *Synth) Config() Config {
	return s.config
}
