// cmd/detect.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print detected notes as JSON lines",
	Long: `Runs the note detector over a WAV file (--input) or the capture device and
prints one {"type":"notes",...} message per analysis window.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringP("input", "i", "", "WAV file to analyse instead of the capture device")
}

func runDetect(cmd *cobra.Command, args []string) error {
	p, logger, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	if input, _ := cmd.Flags().GetString("input"); input != "" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		return p.DetectWAV(ctx, f, cmd.OutOrStdout())
	}

	backend, err := openBackend(logger)
	if err != nil {
		return err
	}
	defer backend.Close()
	return p.DetectLive(ctx, backend, cmd.OutOrStdout())
}
