package synth

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEvent_Valid(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want Event
	}{
		{"noteOn", `{"type":"event","event":{"type":"noteOn","note":60,"velocity":100}}`, NoteOn(60, 100)},
		{"noteOff", `{"type":"event","event":{"type":"noteOff","note":60}}`, NoteOff(60)},
		{"noteOff ignores velocity", `{"type":"event","event":{"type":"noteOff","note":61,"velocity":20}}`, NoteOff(61)},
		{"noteOn default velocity", `{"type":"event","event":{"type":"noteOn","note":69}}`, NoteOn(69, 127)},
		{"extra fields", `{"type":"event","source":"ui","event":{"type":"noteOn","note":0,"velocity":0,"channel":3}}`, NoteOn(0, 0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseEvent([]byte(tc.in))
			if err != nil {
				t.Fatalf("ParseEvent() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseEvent() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want error
	}{
		{"wrong envelope", `{"type":"notes","notes":[]}`, ErrUnknownMessage},
		{"missing event", `{"type":"event"}`, ErrUnknownMessage},
		{"unknown event", `{"type":"event","event":{"type":"pitchBend","note":60}}`, ErrUnknownEvent},
		{"case sensitive", `{"type":"event","event":{"type":"NoteOn","note":60}}`, ErrUnknownEvent},
		{"missing note", `{"type":"event","event":{"type":"noteOn","velocity":10}}`, ErrMissingNote},
		{"note too high", `{"type":"event","event":{"type":"noteOff","note":128}}`, ErrNoteRange},
		{"negative note", `{"type":"event","event":{"type":"noteOn","note":-1}}`, ErrNoteRange},
		{"velocity too high", `{"type":"event","event":{"type":"noteOn","note":60,"velocity":200}}`, ErrVelocityRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tc.in))
			if !errors.Is(err, tc.want) {
				t.Errorf("ParseEvent() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseEvent_MalformedJSON(t *testing.T) {
	for _, in := range []string{``, `{`, `[]`, `{"type":"event","event":{"type":"noteOn","note":"C4"}}`} {
		if _, err := ParseEvent([]byte(in)); err == nil {
			t.Errorf("ParseEvent(%q) error = nil, want error", in)
		}
	}
}

func TestEvent_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(NoteOn(64, 90))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"type":"event","event":{"type":"noteOn","note":64,"velocity":90}}`
	if string(data) != want {
		t.Errorf("Marshal(noteOn) = %s, want %s", data, want)
	}

	data, _ = json.Marshal(NoteOff(64))
	want = `{"type":"event","event":{"type":"noteOff","note":64}}`
	if string(data) != want {
		t.Errorf("Marshal(noteOff) = %s, want %s", data, want)
	}

	back, err := ParseEvent(data)
	if err != nil || back != NoteOff(64) {
		t.Errorf("ParseEvent(Marshal(noteOff)) = %+v, %v", back, err)
	}
}

func TestEventKind_String(t *testing.T) {
	if EventNoteOn.String() != "noteOn" || EventNoteOff.String() != "noteOff" || EventNone.String() != "none" {
		t.Error("EventKind.String() does not match wire names")
	}
}
