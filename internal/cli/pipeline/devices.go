// internal/cli/pipeline/devices.go
package pipeline

import (
	"fmt"
	"io"

	"github.com/ColonelBlimp/notesynth/internal/audio"
)

// ListAudioDevices prints the capture and playback devices of backend.
func ListAudioDevices(backend *audio.Backend, out io.Writer) error {
	inputs, err := backend.CaptureDevices()
	if err != nil {
		return err
	}
	outputs, err := backend.PlaybackDevices()
	if err != nil {
		return err
	}
	writeDevices(out, "Capture devices", inputs)
	writeDevices(out, "Playback devices", outputs)
	return nil
}

func writeDevices(out io.Writer, title string, devices []audio.DeviceInfo) {
	fmt.Fprintf(out, "%s:\n", title)
	if len(devices) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	for _, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " (default)"
		}
		fmt.Fprintf(out, "  [%d] %s%s\n", d.Index, d.Name, marker)
	}
}
