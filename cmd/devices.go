// cmd/devices.go
package cmd

import (
	"github.com/ColonelBlimp/notesynth/internal/cli/pipeline"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture and playback devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		backend, err := openBackend(logger)
		if err != nil {
			return err
		}
		defer backend.Close()
		return pipeline.ListAudioDevices(backend, cmd.OutOrStdout())
	},
}
