// internal/tracker/tracker.go
package tracker

import (
	"cmp"
	"errors"
	"math"
	"slices"

	"github.com/ColonelBlimp/notesynth/internal/dsp"
	"github.com/ColonelBlimp/notesynth/internal/synth"
)

// DefaultMaxNotes is the polyphony followed when not configured.
const DefaultMaxNotes = 4

var ErrInvalidMaxNotes = errors.New("max notes must be between 1 and 128")

// Tracker turns successive detection batches into note transitions.
// Each batch selects the strongest notes; notes leaving the selection are
// released and notes entering it are started. Not safe for concurrent use.
type Tracker struct {
	maxNotes int
	sounding [dsp.MIDINotes]bool
	selected [dsp.MIDINotes]bool
	ranked   []dsp.DetectedNote
}

// New creates a tracker following at most maxNotes notes.
func New(maxNotes int) (*Tracker, error) {
	if maxNotes < 1 || maxNotes > dsp.MIDINotes {
		return nil, ErrInvalidMaxNotes
	}
	return &Tracker{
		maxNotes: maxNotes,
		ranked:   make([]dsp.DetectedNote, 0, dsp.MIDINotes),
	}, nil
}

// Update appends the transitions implied by msg to dst and returns it.
// Note-offs come first, then note-ons, each in ascending note order.
func (t *Tracker) Update(msg *dsp.NotesMessage, dst []synth.Event) []synth.Event {
	t.ranked = append(t.ranked[:0], msg.Notes()...)
	slices.SortFunc(t.ranked, func(a, b dsp.DetectedNote) int {
		if c := cmp.Compare(b.Velocity, a.Velocity); c != 0 {
			return c
		}
		return cmp.Compare(a.MIDI, b.MIDI)
	})
	if len(t.ranked) > t.maxNotes {
		t.ranked = t.ranked[:t.maxNotes]
	}

	clear(t.selected[:])
	for _, n := range t.ranked {
		if n.MIDI >= 0 && n.MIDI < dsp.MIDINotes {
			t.selected[n.MIDI] = true
		}
	}

	for note := range t.sounding {
		if t.sounding[note] && !t.selected[note] {
			dst = append(dst, synth.NoteOff(note))
			t.sounding[note] = false
		}
	}

	// Walk in note order, not rank order
	for note := range t.selected {
		if !t.selected[note] || t.sounding[note] {
			continue
		}
		n, _ := msg.Find(note)
		dst = append(dst, synth.NoteOn(note, velocity(n.Velocity)))
		t.sounding[note] = true
	}
	return dst
}

// Release appends note-offs for every sounding note and resets the tracker.
func (t *Tracker) Release(dst []synth.Event) []synth.Event {
	for note := range t.sounding {
		if t.sounding[note] {
			dst = append(dst, synth.NoteOff(note))
			t.sounding[note] = false
		}
	}
	return dst
}

// Sounding returns the number of notes currently started.
func (t *Tracker) Sounding() int {
	n := 0
	for _, on := range t.sounding {
		if on {
			n++
		}
	}
	return n
}

// MaxNotes returns the configured polyphony.
func (t *Tracker) MaxNotes() int {
	return t.maxNotes
}

// velocity maps a detection velocity to a note-on velocity. Zero would be
// read as a release, so the floor is 1.
func velocity(v float64) int {
	return min(max(int(math.Round(v)), 1), 127)
}
