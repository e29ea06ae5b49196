// cmd/play.go
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play JSON note events through the synth",
	Long: `Reads {"type":"event","event":{...}} lines from a file or stdin and plays
them on the output device. With echo_events enabled, handled events are
written back to stdout.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringP("events", "e", "-", "event file, - for stdin")
	playCmd.Flags().Int("output-device", -1, "playback device index (-1 for default)")
	playCmd.Flags().Bool("echo", false, "write handled events to stdout")
	viper.BindPFlag("output_device_index", playCmd.Flags().Lookup("output-device"))
	viper.BindPFlag("echo_events", playCmd.Flags().Lookup("echo"))
}

func runPlay(cmd *cobra.Command, args []string) error {
	p, logger, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	var events io.Reader = cmd.InOrStdin()
	if path, _ := cmd.Flags().GetString("events"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open events: %w", err)
		}
		defer f.Close()
		events = f
	}

	backend, err := openBackend(logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, stop := signalContext(cmd)
	defer stop()
	return p.Play(ctx, backend, events, cmd.OutOrStdout())
}
