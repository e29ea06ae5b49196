// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/notesynth/internal/audio"
	"github.com/ColonelBlimp/notesynth/internal/cli/pipeline"
	"github.com/ColonelBlimp/notesynth/internal/config"
	"github.com/ColonelBlimp/notesynth/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "notesynth",
	Short: "Polyphonic note detector and wavetable synth",
	Long: `Detects MIDI notes 40-84 in audio with a Goertzel filter bank and plays
note-on/note-off events through a polyphonic wavetable synth.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "capture device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("sample-rate", "r", 44100, "audio sample rate in Hz")
	rootCmd.PersistentFlags().Float64P("threshold", "t", -100, "note detection threshold in dB")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("sample_rate", rootCmd.PersistentFlags().Lookup("sample-rate"))
	viper.BindPFlag("threshold_db", rootCmd.PersistentFlags().Lookup("threshold"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(devicesCmd, detectCmd, playCmd, renderCmd, followCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// newPipeline loads the settings, installs the logger and builds the pipeline.
func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *slog.Logger, error) {
	settings, err := config.Get()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Install(cmd.ErrOrStderr(), settings.Debug, settings.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	p, err := pipeline.New(settings, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}

// openBackend initializes the audio context.
func openBackend(logger *slog.Logger) (*audio.Backend, error) {
	backend := audio.NewBackend(logger)
	if err := backend.Init(); err != nil {
		return nil, err
	}
	return backend, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
