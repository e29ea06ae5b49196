// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ColonelBlimp/notesynth/internal/audio"
	"github.com/ColonelBlimp/notesynth/internal/dsp"
	"github.com/ColonelBlimp/notesynth/internal/logging"
	"github.com/ColonelBlimp/notesynth/internal/synth"
	"github.com/spf13/viper"
)

const (
	AppName       = "notesynth"
	ConfigType    = "yaml"
	DefaultConfig = `# Note Synth Configuration

# Audio device settings
device_index: -1          # Capture device, -1 for default (see 'notesynth devices')
output_device_index: -1   # Playback device, -1 for default
sample_rate: 44100        # Audio sample rate in Hz
channels: 1               # Capture channels (only the first is analysed)
buffer_size: 128          # Frames per audio callback

# Note detection
window_size: 1024         # Goertzel window in samples
low_note: 40              # Lowest MIDI note analysed (E2)
high_note: 84             # Highest MIDI note analysed (C6)
tuning_a4: 440            # Reference frequency of MIDI note 69 in Hz
threshold_db: -100        # A note is reported when its level exceeds this (dB)
overlap_pct: 0            # Window overlap percentage (0-99), 0 = block-aligned windows
coefficient_mode: "resonant"  # resonant: 2cos(2πf/fs)
                              # legacy:   2cos(2πf/fs·N), kept for compatibility

# Synth
table_size: 4096          # Wavetable entries
waveform: "sine"          # sine, triangle, saw or square
max_voices: 32            # Polyphony; the oldest/quietest voice is stolen beyond this
voice_gain: 0.25          # Gain of a velocity-127 voice
release_decay: 0.995      # Per-sample gain multiplier after note-off
release_cutoff: 0.001     # Voice is removed once its gain falls below this
steal_policy: "oldest"    # oldest or quietest
interpolate: false        # Linear table interpolation (false = nearest entry)
echo_events: false        # Forward handled events to the control side
queue_size: 256           # Capacity of each control/audio queue

# Follow mode
follow_max_notes: 4       # Strongest detected notes played back

# Output
debug: false              # Enable debug logging
log_format: "text"        # text or json
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio device settings
	DeviceIndex       int     `mapstructure:"device_index"`
	OutputDeviceIndex int     `mapstructure:"output_device_index"`
	SampleRate        float64 `mapstructure:"sample_rate"`
	Channels          int     `mapstructure:"channels"`
	BufferSize        int     `mapstructure:"buffer_size"`

	// Note detection
	WindowSize      int     `mapstructure:"window_size"`
	LowNote         int     `mapstructure:"low_note"`
	HighNote        int     `mapstructure:"high_note"`
	TuningA4        float64 `mapstructure:"tuning_a4"`
	ThresholdDB     float64 `mapstructure:"threshold_db"`
	OverlapPct      int     `mapstructure:"overlap_pct"`
	CoefficientMode string  `mapstructure:"coefficient_mode"`

	// Synth
	TableSize     int     `mapstructure:"table_size"`
	Waveform      string  `mapstructure:"waveform"`
	MaxVoices     int     `mapstructure:"max_voices"`
	VoiceGain     float64 `mapstructure:"voice_gain"`
	ReleaseDecay  float64 `mapstructure:"release_decay"`
	ReleaseCutoff float64 `mapstructure:"release_cutoff"`
	StealPolicy   string  `mapstructure:"steal_policy"`
	Interpolate   bool    `mapstructure:"interpolate"`
	EchoEvents    bool    `mapstructure:"echo_events"`
	QueueSize     int     `mapstructure:"queue_size"`

	// Follow mode
	FollowMaxNotes int `mapstructure:"follow_max_notes"`

	// Output
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/notesynth/
func Init() error {
	// Set defaults
	viper.SetDefault("device_index", -1)
	viper.SetDefault("output_device_index", -1)
	viper.SetDefault("sample_rate", 44100)
	viper.SetDefault("channels", 1)
	viper.SetDefault("buffer_size", 128)
	viper.SetDefault("window_size", 1024)
	viper.SetDefault("low_note", 40)
	viper.SetDefault("high_note", 84)
	viper.SetDefault("tuning_a4", 440)
	viper.SetDefault("threshold_db", -100)
	viper.SetDefault("overlap_pct", 0)
	viper.SetDefault("coefficient_mode", "resonant")
	viper.SetDefault("table_size", 4096)
	viper.SetDefault("waveform", "sine")
	viper.SetDefault("max_voices", 32)
	viper.SetDefault("voice_gain", 0.25)
	viper.SetDefault("release_decay", 0.995)
	viper.SetDefault("release_cutoff", 0.001)
	viper.SetDefault("steal_policy", "oldest")
	viper.SetDefault("interpolate", false)
	viper.SetDefault("echo_events", false)
	viper.SetDefault("queue_size", 256)
	viper.SetDefault("follow_max_notes", 4)
	viper.SetDefault("debug", false)
	viper.SetDefault("log_format", "text")

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		// No config found - create default in ~/.config/notesynth/
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Audio device settings
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 32 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 32 and 8192, got %d", s.BufferSize))
	}

	// Note detection
	if s.WindowSize < 64 || s.WindowSize > 16384 {
		errs = append(errs, fmt.Errorf("window_size must be between 64 and 16384, got %d", s.WindowSize))
	}
	if s.LowNote < 0 || s.HighNote > dsp.MIDINotes-1 || s.LowNote > s.HighNote {
		errs = append(errs, fmt.Errorf("low_note..high_note must be an ascending range within 0..127, got %d..%d", s.LowNote, s.HighNote))
	}
	if s.TuningA4 < 400 || s.TuningA4 > 480 {
		errs = append(errs, fmt.Errorf("tuning_a4 must be between 400 and 480 Hz, got %v", s.TuningA4))
	}
	if math.IsNaN(s.ThresholdDB) || s.ThresholdDB > 0 {
		errs = append(errs, fmt.Errorf("threshold_db must be at most 0 dB, got %v", s.ThresholdDB))
	}
	if s.OverlapPct < 0 || s.OverlapPct > 99 {
		errs = append(errs, fmt.Errorf("overlap_pct must be between 0 and 99, got %d", s.OverlapPct))
	}
	if _, err := dsp.ParseCoefficientMode(s.CoefficientMode); err != nil {
		errs = append(errs, fmt.Errorf("coefficient_mode must be resonant or legacy, got %q", s.CoefficientMode))
	}

	// Nyquist check: the highest analysed note must be below half the sample rate
	if s.HighNote <= dsp.MIDINotes-1 && s.TuningA4 > 0 {
		if f := dsp.NoteFrequency(s.HighNote, s.TuningA4); f >= s.SampleRate/2 {
			errs = append(errs, fmt.Errorf("high_note frequency (%.1f Hz) must be less than Nyquist frequency (%v Hz)", f, s.SampleRate/2))
		}
	}

	// Synth
	if s.TableSize < 16 || s.TableSize > 1<<20 {
		errs = append(errs, fmt.Errorf("table_size must be between 16 and 1048576, got %d", s.TableSize))
	}
	if _, err := dsp.NewWavetable(16, dsp.Shape(s.Waveform)); err != nil {
		errs = append(errs, fmt.Errorf("waveform must be one of sine, triangle, saw, square, got %q", s.Waveform))
	}
	if s.MaxVoices < 1 || s.MaxVoices > 256 {
		errs = append(errs, fmt.Errorf("max_voices must be between 1 and 256, got %d", s.MaxVoices))
	}
	if s.VoiceGain <= 0 || s.VoiceGain > 1 {
		errs = append(errs, fmt.Errorf("voice_gain must be in (0, 1], got %v", s.VoiceGain))
	}
	if s.ReleaseDecay <= 0 || s.ReleaseDecay >= 1 {
		errs = append(errs, fmt.Errorf("release_decay must be between 0 and 1 exclusive, got %v", s.ReleaseDecay))
	}
	if s.ReleaseCutoff <= 0 || s.ReleaseCutoff >= 1 {
		errs = append(errs, fmt.Errorf("release_cutoff must be between 0 and 1 exclusive, got %v", s.ReleaseCutoff))
	}
	if _, err := synth.ParseStealPolicy(s.StealPolicy); err != nil {
		errs = append(errs, fmt.Errorf("steal_policy must be oldest or quietest, got %q", s.StealPolicy))
	}
	if s.QueueSize < 2 || s.QueueSize > 65536 {
		errs = append(errs, fmt.Errorf("queue_size must be between 2 and 65536, got %d", s.QueueSize))
	}

	// Follow mode
	if s.FollowMaxNotes < 1 || s.FollowMaxNotes > s.MaxVoices {
		errs = append(errs, fmt.Errorf("follow_max_notes must be between 1 and max_voices (%d), got %d", s.MaxVoices, s.FollowMaxNotes))
	}

	// Output
	if s.LogFormat != logging.FormatText && s.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", s.LogFormat))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// TablesConfig returns the analysis table parameters.
func (s *Settings) TablesConfig() dsp.TablesConfig {
	mode, _ := dsp.ParseCoefficientMode(s.CoefficientMode)
	return dsp.TablesConfig{
		SampleRate: s.SampleRate,
		WindowSize: s.WindowSize,
		LowNote:    s.LowNote,
		HighNote:   s.HighNote,
		Tuning:     s.TuningA4,
		Mode:       mode,
	}
}

// DetectorConfig returns the detector parameters.
func (s *Settings) DetectorConfig() dsp.DetectorConfig {
	return dsp.DetectorConfig{
		Threshold:  s.ThresholdDB,
		OverlapPct: s.OverlapPct,
	}
}

// SynthConfig returns the synth parameters.
func (s *Settings) SynthConfig() synth.Config {
	steal, _ := synth.ParseStealPolicy(s.StealPolicy)
	return synth.Config{
		SampleRate:    s.SampleRate,
		Tuning:        s.TuningA4,
		MaxVoices:     s.MaxVoices,
		VoiceGain:     s.VoiceGain,
		ReleaseDecay:  s.ReleaseDecay,
		ReleaseCutoff: s.ReleaseCutoff,
		Steal:         steal,
		Interpolate:   s.Interpolate,
	}
}

// Wavetable builds the configured synth wavetable.
func (s *Settings) Wavetable() (*dsp.Wavetable, error) {
	return dsp.NewWavetable(s.TableSize, dsp.Shape(s.Waveform))
}

// CaptureConfig returns the input stream parameters.
func (s *Settings) CaptureConfig() audio.Config {
	return audio.Config{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		Channels:    uint32(s.Channels),
		BufferSize:  uint32(s.BufferSize),
	}
}

// PlaybackConfig returns the output stream parameters. Output is mono.
func (s *Settings) PlaybackConfig() audio.Config {
	return audio.Config{
		DeviceIndex: s.OutputDeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		Channels:    1,
		BufferSize:  uint32(s.BufferSize),
	}
}
