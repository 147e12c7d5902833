package capture

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/scanbox/scanbox/internal/domain/device"
	"github.com/scanbox/scanbox/internal/domain/scanerr"
)

// SimDeviceConfig describes one simulated device.
type SimDeviceConfig struct {
	ID    string `yaml:"id" mapstructure:"id" validate:"required"`
	Label string `yaml:"label" mapstructure:"label" validate:"required"`
}

// SimConfig configures the simulated capture backend.
type SimConfig struct {
	Devices        []SimDeviceConfig `yaml:"devices" mapstructure:"devices"`
	AcquireDelayMs int               `yaml:"acquire_delay_ms" mapstructure:"acquire_delay_ms" default:"20" validate:"gte=0"`
	DenyPermission bool              `yaml:"deny_permission" mapstructure:"deny_permission"`
	FailAcquire    bool              `yaml:"fail_acquire" mapstructure:"fail_acquire"`
}

// SimPlatform is a deterministic in-process capture backend. It enforces
// single-stream exclusivity the way a real device does: acquiring while a
// stream is still open fails.
type SimPlatform struct {
	mu      sync.Mutex
	config  *SimConfig
	devices []device.Device
	open    map[string]*SimStream
}

// NewSimPlatform creates a simulated platform from a settings map.
func NewSimPlatform(settings map[string]any) (*SimPlatform, error) {
	var config SimConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	devices := make([]device.Device, 0, len(config.Devices))
	for _, d := range config.Devices {
		devices = append(devices, device.New(d.ID, d.Label))
	}

	return &SimPlatform{
		config:  &config,
		devices: devices,
		open:    make(map[string]*SimStream),
	}, nil
}

// Enumerate lists the configured devices in configuration order.
func (p *SimPlatform) Enumerate(ctx context.Context) ([]device.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.DenyPermission {
		return nil, errors.Wrap(scanerr.ErrPermissionDenied, "sim: permission denied")
	}

	result := make([]device.Device, len(p.devices))
	copy(result, p.devices)
	return result, nil
}

// Acquire opens a stream from the given device after the configured delay.
func (p *SimPlatform) Acquire(ctx context.Context, deviceID string) (Stream, error) {
	delay := time.Duration(p.loadConfig().AcquireDelayMs) * time.Millisecond
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(scanerr.ErrAcquireFailed, "sim: acquire cancelled")
		case <-time.After(delay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.DenyPermission {
		return nil, errors.Wrap(scanerr.ErrPermissionDenied, "sim: permission denied")
	}
	if p.config.FailAcquire {
		return nil, errors.Wrapf(scanerr.ErrAcquireFailed, "sim: acquire failed for device %s", deviceID)
	}

	found := false
	for _, d := range p.devices {
		if d.ID == deviceID {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Wrapf(scanerr.ErrNoDevice, "sim: unknown device %s", deviceID)
	}

	if len(p.open) > 0 {
		return nil, errors.Wrapf(scanerr.ErrAcquireFailed, "sim: device busy, %d stream(s) still open", len(p.open))
	}

	s := &SimStream{platform: p, deviceID: deviceID}
	p.open[deviceID] = s
	zlog.Debug().Msgf("capture(sim): acquired device %s", deviceID)
	return s, nil
}

// OpenStreams returns the number of currently open streams.
func (p *SimPlatform) OpenStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}

func (p *SimPlatform) loadConfig() *SimConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

// SimStream is a stream held from the simulated platform.
type SimStream struct {
	mu       sync.Mutex
	platform *SimPlatform
	deviceID string
	released bool
}

// DeviceID returns the source device ID.
func (s *SimStream) DeviceID() string {
	return s.deviceID
}

// Release closes the stream. Releasing twice reports an interruption.
func (s *SimStream) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return errors.Wrapf(scanerr.ErrInterrupted, "sim: stream for %s already released", s.deviceID)
	}
	s.released = true

	s.platform.mu.Lock()
	delete(s.platform.open, s.deviceID)
	s.platform.mu.Unlock()

	zlog.Debug().Msgf("capture(sim): released device %s", s.deviceID)
	return nil
}
