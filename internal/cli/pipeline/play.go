// internal/cli/pipeline/play.go
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ColonelBlimp/notesynth/internal/audio"
	"github.com/ColonelBlimp/notesynth/internal/recovery"
	"github.com/ColonelBlimp/notesynth/internal/synth"
)

// EventSink receives events on the control side.
type EventSink interface {
	TryPush(synth.Event) bool
}

// ReadEvents parses one JSON event per line from r and pushes it to sink,
// waiting while the sink is full. Blank lines are skipped; malformed lines
// are logged and skipped. It returns the number of events delivered.
func (p *Pipeline) ReadEvents(ctx context.Context, r io.Reader, sink EventSink) (int, error) {
	scanner := bufio.NewScanner(r)
	delivered, line := 0, 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		ev, err := synth.ParseEvent(raw)
		if err != nil {
			p.logger.Warn("skipping event", "line", line, "error", err)
			continue
		}
		for !sink.TryPush(ev) {
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-time.After(pollInterval):
			}
		}
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return delivered, fmt.Errorf("read events: %w", err)
	}
	return delivered, nil
}

// drainEcho writes echoed events to enc as JSON lines. A nil enc discards them.
func drainEcho(v *Voices, enc *json.Encoder) {
	if v.Echo == nil {
		return
	}
	for {
		ev, ok := v.Echo.TryPop()
		if !ok {
			return
		}
		if enc != nil {
			_ = enc.Encode(ev)
		}
	}
}

// settled reports whether every sent event has been handled and no voice
// is still sounding.
func settled(v *Voices) bool {
	return v.Inbox.Len() == 0 && v.Synth.ActiveVoices() == 0
}

// Play feeds JSON event lines from events into the synth and plays the
// result. It returns once input is exhausted and every voice has finished,
// or when ctx is cancelled. Echoed events go to echo when enabled.
func (p *Pipeline) Play(ctx context.Context, backend *audio.Backend, events io.Reader, echo io.Writer) error {
	v, err := p.NewVoices()
	if err != nil {
		return err
	}

	playback := audio.NewPlayback(backend, p.settings.PlaybackConfig())
	defer playback.Close()
	playback.SetRender(v.Synth.RenderInterleaved)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := playback.Start(ctx); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	p.logger.Info("playing", "device", p.settings.OutputDeviceIndex, "rate", p.settings.SampleRate)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer recovery.HandlePanicFunc(cancel)
		n, err := p.ReadEvents(ctx, events, v.Inbox)
		done <- result{n, err}
	}()

	var enc *json.Encoder
	if echo != nil {
		enc = json.NewEncoder(echo)
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	inputDone, quiet := false, 0
	for {
		select {
		case <-ctx.Done():
			drainEcho(v, enc)
			p.logCounters(nil, v)
			return nil
		case r := <-done:
			inputDone = true
			if r.err != nil && ctx.Err() == nil {
				return r.err
			}
			p.logger.Debug("event input finished", "events", r.n)
		case <-ticker.C:
			drainEcho(v, enc)
			if !inputDone || !settled(v) {
				quiet = 0
				continue
			}
			// A block may still be rendering; require two quiet polls
			if quiet++; quiet >= 2 {
				p.logCounters(nil, v)
				return nil
			}
		}
	}
}
