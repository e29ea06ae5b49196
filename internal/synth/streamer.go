// internal/synth/streamer.go
package synth

import (
	"math"

	"github.com/gopxl/beep"
)

// Streamer adapts a Synth to beep.Streamer for offline rendering.
// Cues are applied at the exact frame they fall on; the inbox, when set, is
// drained once per Stream call.
type Streamer struct {
	synth *Synth
	cues  []Cue
	next  int   // index of the first cue not yet applied
	pos   int64 // frames streamed so far
}

var _ beep.Streamer = (*Streamer)(nil)

// NewStreamer wraps s. cues must be sorted by time (see ReadScore).
func NewStreamer(s *Synth, cues []Cue) *Streamer {
	return &Streamer{synth: s, cues: cues}
}

// Stream fills samples with the synth's mono mix on both channels.
// It never runs dry: wrap it with beep.Take to bound the length.
func (st *Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	st.synth.drain()
	rate := st.synth.config.SampleRate

	for i := range samples {
		for st.next < len(st.cues) && cueFrame(st.cues[st.next].At, rate) <= st.pos {
			st.synth.HandleEvent(st.cues[st.next].Event)
			st.next++
		}
		mix := st.synth.nextSample()
		samples[i][0] = mix
		samples[i][1] = mix
		st.pos++
	}
	st.synth.activeCount.Store(int64(st.synth.active))
	return len(samples), true
}

// Err always returns nil.
func (st *Streamer) Err() error {
	return nil
}

// Position returns the number of frames streamed.
func (st *Streamer) Position() int64 {
	return st.pos
}

// Pending returns the number of cues not yet applied.
func (st *Streamer) Pending() int {
	return len(st.cues) - st.next
}

func cueFrame(at, rate float64) int64 {
	return int64(math.Round(at * rate))
}
