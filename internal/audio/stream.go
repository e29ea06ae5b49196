// internal/audio/stream.go
package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// Config holds audio stream configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 44100
	Channels    uint32 // 1 for mono, 2 for stereo
	BufferSize  uint32 // frames per callback
}

// DefaultConfig returns the defaults of a 128-frame render quantum at 44.1 kHz
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  44100,
		Channels:    1,
		BufferSize:  128,
	}
}

// stream is the device lifecycle shared by Capture and Playback.
type stream struct {
	backend *Backend
	config  Config
	kind    malgo.DeviceType

	mu      sync.Mutex
	device  *malgo.Device
	done    chan struct{}
	running atomic.Bool
	faults  atomic.Uint64
}

func (s *stream) start(ctx context.Context, onFrames malgo.DataProc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return ErrAlreadyRunning
	}
	if s.backend == nil {
		return ErrNotInitialized
	}
	allocated, err := s.backend.allocated()
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(s.kind)
	deviceConfig.SampleRate = s.config.SampleRate
	deviceConfig.PeriodSizeInFrames = s.config.BufferSize
	sub := malgo.SubConfig{
		Format:   malgo.FormatF32,
		Channels: s.config.Channels,
	}

	// Select specific device if requested
	if s.config.DeviceIndex >= 0 {
		var devices []DeviceInfo
		if s.kind == malgo.Capture {
			devices, err = s.backend.CaptureDevices()
		} else {
			devices, err = s.backend.PlaybackDevices()
		}
		if err != nil {
			return err
		}
		id, err := selectDevice(devices, s.config.DeviceIndex)
		if err != nil {
			return err
		}
		sub.DeviceID = id.Pointer()
	}
	if s.kind == malgo.Capture {
		deviceConfig.Capture = sub
	} else {
		deviceConfig.Playback = sub
	}

	device, err := malgo.InitDevice(allocated.Context, deviceConfig, malgo.DeviceCallbacks{Data: onFrames})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	s.device = device
	s.done = make(chan struct{})
	s.running.Store(true)

	go func(done chan struct{}) {
		select {
		case <-ctx.Done():
			_ = s.stop()
		case <-done:
		}
	}(s.done)
	return nil
}

func (s *stream) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return ErrNotRunning
	}
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	close(s.done)
	s.running.Store(false)
	return nil
}

// bytesAsFloat32 reinterprets a little-endian F32 device buffer without
// copying. Returns nil when data holds less than one sample.
func bytesAsFloat32(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}
