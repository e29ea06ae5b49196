// internal/audio/backend.go
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio backend not initialized")
	ErrAlreadyRunning = errors.New("audio stream already running")
	ErrNotRunning     = errors.New("audio stream not running")
	ErrNoDevice       = errors.New("device index out of range")
)

// DeviceInfo describes one capture or playback device.
type DeviceInfo struct {
	Index     int
	Name      string
	IsDefault bool

	id malgo.DeviceID
}

// Backend owns the malgo context shared by capture and playback streams.
type Backend struct {
	mu     sync.RWMutex
	ctx    *malgo.AllocatedContext
	logger *slog.Logger
}

// NewBackend returns an uninitialized backend. logger may be nil.
func NewBackend(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{logger: logger}
}

// Init initializes the audio context.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		b.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	b.ctx = ctx
	return nil
}

// CaptureDevices lists the available input devices.
func (b *Backend) CaptureDevices() ([]DeviceInfo, error) {
	return b.devices(malgo.Capture)
}

// PlaybackDevices lists the available output devices.
func (b *Backend) PlaybackDevices() ([]DeviceInfo, error) {
	return b.devices(malgo.Playback)
}

func (b *Backend) devices(kind malgo.DeviceType) ([]DeviceInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := b.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	out := make([]DeviceInfo, len(infos))
	for i, info := range infos {
		out[i] = DeviceInfo{
			Index:     i,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
			id:        info.ID,
		}
	}
	return out, nil
}

// allocated returns the context for device initialization.
func (b *Backend) allocated() (*malgo.AllocatedContext, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.ctx == nil {
		return nil, ErrNotInitialized
	}
	return b.ctx, nil
}

// selectDevice resolves a device index; -1 selects the system default.
func selectDevice(devices []DeviceInfo, index int) (*malgo.DeviceID, error) {
	if index < 0 {
		return nil, nil
	}
	if index >= len(devices) {
		return nil, fmt.Errorf("%w: %d (have %d devices)", ErrNoDevice, index, len(devices))
	}
	id := devices[index].id
	return &id, nil
}

// Close releases the audio context. Streams must be closed first.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}
	if err := b.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninit context: %w", err)
	}
	b.ctx.Free()
	b.ctx = nil
	return nil
}
