// internal/synth/score.go
package synth

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// ErrInvalidTime indicates a score entry has a negative or non-finite time
var ErrInvalidTime = errors.New("score time must be a finite, non-negative number of seconds")

// Cue is an event scheduled at a stream position in seconds.
type Cue struct {
	At    float64
	Event Event
}

type cueWire struct {
	At float64 `json:"at"`
	envelopeWire
}

// ParseCue decodes one score line: an event envelope with an extra "at" field.
func ParseCue(data []byte) (Cue, error) {
	var w cueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Cue{}, fmt.Errorf("decode cue: %w", err)
	}
	if w.At < 0 || math.IsNaN(w.At) || math.IsInf(w.At, 0) {
		return Cue{}, ErrInvalidTime
	}
	ev, err := w.envelopeWire.event()
	if err != nil {
		return Cue{}, err
	}
	return Cue{At: w.At, Event: ev}, nil
}

// ReadScore reads JSON-lines cues, skipping blank lines and lines starting
// with '#'. The result is sorted by time; cues with equal times keep file order.
func ReadScore(r io.Reader) ([]Cue, error) {
	var cues []Cue
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cue, err := ParseCue([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cues = append(cues, cue)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read score: %w", err)
	}

	sort.SliceStable(cues, func(i, j int) bool { return cues[i].At < cues[j].At })
	return cues, nil
}

// Duration returns the time of the last cue.
func Duration(cues []Cue) float64 {
	if len(cues) == 0 {
		return 0
	}
	return cues[len(cues)-1].At
}
