// Package capture provides the platform media capture abstraction.
package capture

import (
	"context"

	"github.com/scanbox/scanbox/internal/domain/device"
)

// Stream is an exclusively held capture stream for a single device.
// It is owned by whoever acquired it and must be released exactly once.
type Stream interface {
	// DeviceID returns the ID of the device the stream was acquired from.
	DeviceID() string

	// Release tears the stream down. Safe to call once per acquisition.
	Release(ctx context.Context) error
}

// Platform is the host media capture API. Enumerate and Acquire may fail
// with the scanerr sentinels (permission denied, no device, acquire failed,
// interrupted); callers classify, they do not inspect messages.
type Platform interface {
	// Enumerate lists the available capture devices in platform order.
	Enumerate(ctx context.Context) ([]device.Device, error)

	// Acquire opens a stream from the given device.
	Acquire(ctx context.Context, deviceID string) (Stream, error)
}
