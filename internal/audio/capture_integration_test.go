//go:build integration

package audio

import (
	"context"
	"testing"
	"time"
)

// These tests require actual audio hardware and are skipped by default.
// Run with: go test -tags=integration ./internal/audio

func newIntegrationBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend(nil)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_Devices_Integration(t *testing.T) {
	b := newIntegrationBackend(t)

	inputs, err := b.CaptureDevices()
	if err != nil {
		t.Fatalf("CaptureDevices() error = %v", err)
	}
	t.Logf("Found %d capture devices:", len(inputs))
	for _, d := range inputs {
		t.Logf("  [%d] %s default=%v", d.Index, d.Name, d.IsDefault)
	}

	outputs, err := b.PlaybackDevices()
	if err != nil {
		t.Fatalf("PlaybackDevices() error = %v", err)
	}
	t.Logf("Found %d playback devices:", len(outputs))
	for _, d := range outputs {
		t.Logf("  [%d] %s default=%v", d.Index, d.Name, d.IsDefault)
	}
}

func TestCapture_StartStop_Integration(t *testing.T) {
	capture := NewCapture(newIntegrationBackend(t), DefaultConfig())
	defer capture.Close()

	received := make(chan int, 16)
	capture.SetCallback(func(samples []float32) {
		select {
		case received <- len(samples):
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := capture.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !capture.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}

	select {
	case n := <-received:
		t.Logf("received block of %d samples", n)
	case <-time.After(2 * time.Second):
		t.Error("no samples within 2s")
	}

	if err := capture.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if capture.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
}

func TestPlayback_ContextCancel_Integration(t *testing.T) {
	playback := NewPlayback(newIntegrationBackend(t), DefaultConfig())
	defer playback.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := playback.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for playback.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if playback.IsRunning() {
		t.Error("playback still running after context cancel")
	}
}
