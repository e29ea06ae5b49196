// internal/dsp/notes.go
package dsp

import (
	"encoding/json"
)

// DetectedNote is one note that cleared the detection threshold.
type DetectedNote struct {
	MIDI     int     `json:"midi"`
	Velocity float64 `json:"velocity"`
}

// NotesMessage is the result of one completed analysis window.
// The note storage is inline so the message can be copied through a ring
// queue without allocating.
type NotesMessage struct {
	notes [MIDINotes]DetectedNote
	count int
	// Time is the stream position in seconds at which the window completed.
	Time float64
	// Window is the zero-based sequence number of the analysis window.
	Window uint64
}

// Notes returns the detected notes in ascending MIDI order.
// The slice aliases the message; copy it to keep it past the message.
func (m *NotesMessage) Notes() []DetectedNote {
	return m.notes[:m.count]
}

// Len returns the number of detected notes.
func (m *NotesMessage) Len() int {
	return m.count
}

// Contains reports whether note was detected.
func (m *NotesMessage) Contains(note int) bool {
	_, ok := m.Find(note)
	return ok
}

// Find returns the detection for note, if present.
func (m *NotesMessage) Find(note int) (DetectedNote, bool) {
	for _, n := range m.notes[:m.count] {
		if n.MIDI == note {
			return n, true
		}
	}
	return DetectedNote{}, false
}

func (m *NotesMessage) reset() {
	m.count = 0
}

func (m *NotesMessage) add(n DetectedNote) {
	if m.count < len(m.notes) {
		m.notes[m.count] = n
		m.count++
	}
}

type notesWire struct {
	Type  string         `json:"type"`
	Notes []DetectedNote `json:"notes"`
	Time  float64        `json:"time"`
}

// MarshalJSON encodes the message as {"type":"notes","notes":[...],"time":t}.
// An empty detection encodes notes as [] rather than null.
func (m NotesMessage) MarshalJSON() ([]byte, error) {
	notes := make([]DetectedNote, m.count)
	copy(notes, m.notes[:m.count])
	return json.Marshal(notesWire{Type: "notes", Notes: notes, Time: m.Time})
}

// NewNotesMessage builds a message from a list of notes, for control-side
// code and tests. Notes past MIDINotes are dropped.
func NewNotesMessage(t float64, notes ...DetectedNote) NotesMessage {
	var m NotesMessage
	m.Time = t
	for _, n := range notes {
		m.add(n)
	}
	return m
}
