// internal/synth/event.go
package synth

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownMessage indicates the envelope type is not "event"
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrUnknownEvent indicates the event type is not noteOn or noteOff
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrMissingNote indicates the event carries no note number
	ErrMissingNote = errors.New("event has no note")
	// ErrNoteRange indicates the note is outside 0-127
	ErrNoteRange = errors.New("note must be between 0 and 127")
	// ErrVelocityRange indicates the velocity is outside 0-127
	ErrVelocityRange = errors.New("velocity must be between 0 and 127")
)

// EventKind is the closed set of control events the synth understands.
type EventKind uint8

const (
	// EventNone is the zero value; the synth ignores it.
	EventNone EventKind = iota
	EventNoteOn
	EventNoteOff
)

func (k EventKind) String() string {
	switch k {
	case EventNoteOn:
		return "noteOn"
	case EventNoteOff:
		return "noteOff"
	}
	return "none"
}

// Event is one control message for the synth.
// Velocity is only meaningful for EventNoteOn.
type Event struct {
	Kind     EventKind
	Note     int
	Velocity int
}

// NoteOn builds a note-on event.
func NoteOn(note, velocity int) Event {
	return Event{Kind: EventNoteOn, Note: note, Velocity: velocity}
}

// NoteOff builds a note-off event.
func NoteOff(note int) Event {
	return Event{Kind: EventNoteOff, Note: note}
}

// EventSource supplies events to the audio path. *ring.Queue[Event] satisfies it.
type EventSource interface {
	TryPop() (Event, bool)
}

// EventSink accepts events without blocking. *ring.Queue[Event] satisfies it.
type EventSink interface {
	TryPush(ev Event) bool
}

type eventWire struct {
	Type     string `json:"type"`
	Note     *int   `json:"note,omitempty"`
	Velocity *int   `json:"velocity,omitempty"`
}

type envelopeWire struct {
	Type  string     `json:"type"`
	Event *eventWire `json:"event,omitempty"`
}

// ParseEvent decodes {"type":"event","event":{"type":"noteOn"|"noteOff",...}}.
// Unknown envelope or event types are rejected here so the audio path only
// ever sees valid events.
func ParseEvent(data []byte) (Event, error) {
	var env envelopeWire
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return env.event()
}

func (env envelopeWire) event() (Event, error) {
	if env.Type != "event" || env.Event == nil {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}

	w := env.Event
	var kind EventKind
	switch w.Type {
	case "noteOn":
		kind = EventNoteOn
	case "noteOff":
		kind = EventNoteOff
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Type)
	}

	if w.Note == nil {
		return Event{}, ErrMissingNote
	}
	if *w.Note < 0 || *w.Note > 127 {
		return Event{}, fmt.Errorf("%w, got %d", ErrNoteRange, *w.Note)
	}

	ev := Event{Kind: kind, Note: *w.Note}
	if kind == EventNoteOn {
		ev.Velocity = 127
		if w.Velocity != nil {
			ev.Velocity = *w.Velocity
		}
		if ev.Velocity < 0 || ev.Velocity > 127 {
			return Event{}, fmt.Errorf("%w, got %d", ErrVelocityRange, ev.Velocity)
		}
	}
	return ev, nil
}

// MarshalJSON encodes the event in its envelope form.
func (e Event) MarshalJSON() ([]byte, error) {
	note := e.Note
	w := &eventWire{Type: e.Kind.String(), Note: &note}
	if e.Kind == EventNoteOn {
		vel := e.Velocity
		w.Velocity = &vel
	}
	return json.Marshal(envelopeWire{Type: "event", Event: w})
}
