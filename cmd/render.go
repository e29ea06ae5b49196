// cmd/render.go
package cmd

import (
	"fmt"
	"os"

	"github.com/ColonelBlimp/notesynth/internal/cli/pipeline"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a timed event score to a WAV file",
	Long: `Renders a score of {"at":seconds,"type":"event","event":{...}} lines to a
16-bit stereo WAV file without an audio device.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringP("events", "e", "", "score file (required)")
	renderCmd.Flags().StringP("out", "o", "", "output WAV file (required)")
	renderCmd.Flags().Float64("duration", 0, "length in seconds (0 = last cue plus release)")
	renderCmd.Flags().Float64("gain", 1, "linear output gain")
	_ = renderCmd.MarkFlagRequired("events")
	_ = renderCmd.MarkFlagRequired("out")
}

func runRender(cmd *cobra.Command, args []string) error {
	p, logger, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	eventsPath, _ := cmd.Flags().GetString("events")
	outPath, _ := cmd.Flags().GetString("out")
	duration, _ := cmd.Flags().GetFloat64("duration")
	gain, _ := cmd.Flags().GetFloat64("gain")

	score, err := os.Open(eventsPath)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer score.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	frames, err := p.Render(score, out, pipeline.RenderOptions{Duration: duration, Gain: gain})
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		return err
	}

	logger.Info("rendered", "file", outPath, "frames", frames,
		"seconds", float64(frames)/p.Settings().SampleRate)
	return nil
}
