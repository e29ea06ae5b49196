// cmd/follow.go
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Play detected notes back through the synth",
	Long: `Listens on the capture device and plays the strongest detected notes
(follow_max_notes) through the synth on the output device until interrupted.`,
	RunE: runFollow,
}

func init() {
	followCmd.Flags().Int("max-notes", 4, "strongest notes to follow")
	viper.BindPFlag("follow_max_notes", followCmd.Flags().Lookup("max-notes"))
}

func runFollow(cmd *cobra.Command, args []string) error {
	p, logger, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	backend, err := openBackend(logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, stop := signalContext(cmd)
	defer stop()
	return p.Follow(ctx, backend)
}
