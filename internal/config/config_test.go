package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ColonelBlimp/notesynth/internal/dsp"
	"github.com/ColonelBlimp/notesynth/internal/synth"
	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
}

// setHome points HOME and XDG_CONFIG_HOME at a temp directory and returns it.
func setHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	return tmpDir
}

// chdir switches to dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	origDir, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	})
}

func TestInit_WithDefaults(t *testing.T) {
	resetViper()
	tmpDir := setHome(t)
	chdir(t, tmpDir)

	// Create the config file so Init doesn't try to create one
	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"device_index", -1},
		{"output_device_index", -1},
		{"sample_rate", 44100},
		{"channels", 1},
		{"buffer_size", 128},
		{"window_size", 1024},
		{"low_note", 40},
		{"high_note", 84},
		{"tuning_a4", 440},
		{"threshold_db", -100},
		{"overlap_pct", 0},
		{"coefficient_mode", "resonant"},
		{"table_size", 4096},
		{"waveform", "sine"},
		{"max_voices", 32},
		{"voice_gain", 0.25},
		{"release_decay", 0.995},
		{"release_cutoff", 0.001},
		{"steal_policy", "oldest"},
		{"interpolate", false},
		{"echo_events", false},
		{"queue_size", 256},
		{"follow_max_notes", 4},
		{"debug", false},
		{"log_format", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v (%T), want %v", tt.key, got, got, tt.expected)
			}
		})
	}
}

func TestInit_CreatesConfigIfMissing(t *testing.T) {
	resetViper()
	tmpDir := setHome(t)
	chdir(t, tmpDir)

	// Don't create config - let Init create it
	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".config", AppName, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Errorf("Init() did not create config file at %s", configPath)
	}
}

func TestInit_ReadsLocalConfigFirst(t *testing.T) {
	resetViper()
	tmpDir := setHome(t)

	xdgConfigDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(xdgConfigDir, 0755); err != nil {
		t.Fatalf("failed to create XDG config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(xdgConfigDir, "config.yaml"), []byte("max_voices: 8"), 0644); err != nil {
		t.Fatalf("failed to write XDG config: %v", err)
	}

	chdir(t, tmpDir)
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("max_voices: 16"), 0644); err != nil {
		t.Fatalf("failed to write local config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// Local config should take precedence
	if got := viper.GetInt("max_voices"); got != 16 {
		t.Errorf("viper.GetInt(max_voices) = %d, want 16 (local config)", got)
	}
}

func TestInit_DotConfigTakesPrecedence(t *testing.T) {
	resetViper()
	tmpDir := setHome(t)
	chdir(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, ".config.yaml"), []byte("waveform: saw"), 0644); err != nil {
		t.Fatalf("failed to write .config.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("waveform: square"), 0644); err != nil {
		t.Fatalf("failed to write config.yaml: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := viper.GetString("waveform"); got != "saw" {
		t.Errorf("viper.GetString(waveform) = %q, want saw (.config.yaml)", got)
	}
}

func TestInit_InvalidConfigFile(t *testing.T) {
	resetViper()
	tmpDir := setHome(t)
	chdir(t, tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	invalidYAML := "invalid: yaml: content: [[["
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write invalid config: %v", err)
	}

	if err := Init(); err == nil {
		t.Error("Init() should return error for invalid YAML")
	}
}

func TestGet_ReturnsSettings(t *testing.T) {
	resetViper()
	tmpDir := setHome(t)
	chdir(t, tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	s, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.SampleRate != 44100 {
		t.Errorf("Settings.SampleRate = %v, want 44100", s.SampleRate)
	}
	if s.WindowSize != 1024 {
		t.Errorf("Settings.WindowSize = %d, want 1024", s.WindowSize)
	}
	if s.LowNote != 40 || s.HighNote != 84 {
		t.Errorf("Settings note range = %d..%d, want 40..84", s.LowNote, s.HighNote)
	}
	if s.ThresholdDB != -100 {
		t.Errorf("Settings.ThresholdDB = %v, want -100", s.ThresholdDB)
	}
	if s.MaxVoices != 32 {
		t.Errorf("Settings.MaxVoices = %d, want 32", s.MaxVoices)
	}
}

func TestGet_InvalidSettings(t *testing.T) {
	resetViper()
	tmpDir := setHome(t)
	chdir(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("window_size: 3"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, err := Get()
	if err == nil || !strings.Contains(err.Error(), "window_size") {
		t.Errorf("Get() error = %v, want window_size violation", err)
	}
}

func TestEnsureConfigExists_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config")

	if err := ensureConfigExists(configPath); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(configPath, "config.yaml"))
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != DefaultConfig {
		t.Errorf("config content does not match DefaultConfig")
	}
}

func TestEnsureConfigExists_DoesNotOverwrite(t *testing.T) {
	configPath := t.TempDir()

	configFile := filepath.Join(configPath, "config.yaml")
	existingContent := "existing: true"
	if err := os.WriteFile(configFile, []byte(existingContent), 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	if err := ensureConfigExists(configPath); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != existingContent {
		t.Errorf("ensureConfigExists() overwrote existing config")
	}
}

func TestEnsureConfigExists_WriteError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping test when running as root")
	}

	configPath := filepath.Join(t.TempDir(), "readonly")
	if err := os.MkdirAll(configPath, 0555); err != nil {
		t.Fatalf("failed to create readonly dir: %v", err)
	}
	defer func() {
		if err := os.Chmod(configPath, 0755); err != nil {
			t.Logf("failed to restore permissions: %v", err)
		}
	}()

	if err := ensureConfigExists(filepath.Join(configPath, "subdir")); err == nil {
		t.Error("ensureConfigExists() should return error for read-only directory")
	}
}

func TestConstants(t *testing.T) {
	if AppName != "notesynth" {
		t.Errorf("AppName = %q, want %q", AppName, "notesynth")
	}
	if ConfigType != "yaml" {
		t.Errorf("ConfigType = %q, want %q", ConfigType, "yaml")
	}
}

func TestDefaultConfig_ContainsExpectedKeys(t *testing.T) {
	keys := []string{
		"device_index", "output_device_index", "sample_rate", "channels", "buffer_size",
		"window_size", "low_note", "high_note", "tuning_a4", "threshold_db", "overlap_pct",
		"coefficient_mode", "table_size", "waveform", "max_voices", "voice_gain",
		"release_decay", "release_cutoff", "steal_policy", "interpolate", "echo_events",
		"queue_size", "follow_max_notes", "debug", "log_format",
	}
	for _, key := range keys {
		if !strings.Contains(DefaultConfig, key+":") {
			t.Errorf("DefaultConfig missing key %q", key)
		}
	}
}

func TestSettings_Validate_ValidSettings(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestSettings_Validate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Settings)
		key    string
	}{
		{"sample rate low", func(s *Settings) { s.SampleRate = 4000 }, "sample_rate"},
		{"sample rate high", func(s *Settings) { s.SampleRate = 384000 }, "sample_rate"},
		{"channels", func(s *Settings) { s.Channels = 3 }, "channels"},
		{"buffer size", func(s *Settings) { s.BufferSize = 8 }, "buffer_size"},
		{"window size", func(s *Settings) { s.WindowSize = 32 }, "window_size"},
		{"reversed notes", func(s *Settings) { s.LowNote, s.HighNote = 84, 40 }, "low_note"},
		{"note above 127", func(s *Settings) { s.HighNote = 128 }, "low_note"},
		{"tuning", func(s *Settings) { s.TuningA4 = 300 }, "tuning_a4"},
		{"threshold positive", func(s *Settings) { s.ThresholdDB = 3 }, "threshold_db"},
		{"threshold NaN", func(s *Settings) { s.ThresholdDB = math.NaN() }, "threshold_db"},
		{"overlap", func(s *Settings) { s.OverlapPct = 100 }, "overlap_pct"},
		{"coefficient mode", func(s *Settings) { s.CoefficientMode = "fast" }, "coefficient_mode"},
		{"nyquist", func(s *Settings) { s.SampleRate = 8000; s.HighNote = 127 }, "Nyquist"},
		{"table size", func(s *Settings) { s.TableSize = 8 }, "table_size"},
		{"waveform", func(s *Settings) { s.Waveform = "noise" }, "waveform"},
		{"max voices", func(s *Settings) { s.MaxVoices = 0 }, "max_voices"},
		{"voice gain", func(s *Settings) { s.VoiceGain = 0 }, "voice_gain"},
		{"release decay", func(s *Settings) { s.ReleaseDecay = 1 }, "release_decay"},
		{"release cutoff", func(s *Settings) { s.ReleaseCutoff = 0 }, "release_cutoff"},
		{"steal policy", func(s *Settings) { s.StealPolicy = "random" }, "steal_policy"},
		{"queue size", func(s *Settings) { s.QueueSize = 1 }, "queue_size"},
		{"follow notes", func(s *Settings) { s.FollowMaxNotes = 64 }, "follow_max_notes"},
		{"log format", func(s *Settings) { s.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(s)
			err := s.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want %s violation", tt.key)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Validate() error should mention %q, got: %v", tt.key, err)
			}
		})
	}
}

func TestSettings_Validate_MultipleErrors(t *testing.T) {
	s := &Settings{
		SampleRate:  0,     // invalid
		Channels:    0,     // invalid
		BufferSize:  10,    // invalid
		WindowSize:  10,    // invalid
		OverlapPct:  -1,    // invalid
		Waveform:    "bad", // invalid
		StealPolicy: "bad", // invalid
		LogFormat:   "bad", // invalid
	}

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate() should return error for multiple invalid fields")
	}

	errStr := err.Error()
	for _, substr := range []string{
		"sample_rate", "channels", "buffer_size", "window_size", "overlap_pct",
		"tuning_a4", "table_size", "waveform", "max_voices", "voice_gain",
		"steal_policy", "queue_size", "log_format",
	} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("Validate() error should mention %q, got: %v", substr, errStr)
		}
	}
}

func TestSettings_ComponentConfigs(t *testing.T) {
	s := validSettings()
	s.CoefficientMode = "legacy"
	s.StealPolicy = "quietest"
	s.Interpolate = true
	s.OverlapPct = 50

	tc := s.TablesConfig()
	if tc.Mode != dsp.CoefficientLegacy {
		t.Errorf("TablesConfig().Mode = %v, want legacy", tc.Mode)
	}
	if tc.WindowSize != 1024 || tc.LowNote != 40 || tc.HighNote != 84 || tc.Tuning != 440 {
		t.Errorf("TablesConfig() = %+v", tc)
	}
	if _, err := dsp.NewAnalysisTables(tc); err != nil {
		t.Errorf("NewAnalysisTables(TablesConfig()) error = %v", err)
	}

	dc := s.DetectorConfig()
	if dc.Threshold != -100 || dc.OverlapPct != 50 {
		t.Errorf("DetectorConfig() = %+v", dc)
	}

	sc := s.SynthConfig()
	if sc.Steal != synth.StealQuietest || !sc.Interpolate || sc.MaxVoices != 32 {
		t.Errorf("SynthConfig() = %+v", sc)
	}
	table, err := s.Wavetable()
	if err != nil {
		t.Fatalf("Wavetable() error = %v", err)
	}
	if _, err := synth.New(sc, table); err != nil {
		t.Errorf("synth.New(SynthConfig()) error = %v", err)
	}

	cc := s.CaptureConfig()
	if cc.DeviceIndex != -1 || cc.SampleRate != 44100 || cc.BufferSize != 128 {
		t.Errorf("CaptureConfig() = %+v", cc)
	}
	pc := s.PlaybackConfig()
	if pc.DeviceIndex != 2 || pc.Channels != 1 {
		t.Errorf("PlaybackConfig() = %+v", pc)
	}
}

// validSettings returns a Settings struct with all valid values
func validSettings() *Settings {
	return &Settings{
		DeviceIndex:       -1,
		OutputDeviceIndex: 2,
		SampleRate:        44100,
		Channels:          1,
		BufferSize:        128,
		WindowSize:        1024,
		LowNote:           40,
		HighNote:          84,
		TuningA4:          440,
		ThresholdDB:       -100,
		OverlapPct:        0,
		CoefficientMode:   "resonant",
		TableSize:         4096,
		Waveform:          "sine",
		MaxVoices:         32,
		VoiceGain:         0.25,
		ReleaseDecay:      0.995,
		ReleaseCutoff:     0.001,
		StealPolicy:       "oldest",
		QueueSize:         256,
		FollowMaxNotes:    4,
		LogFormat:         "text",
	}
}
