// Package device provides capture device enumeration and default ordering.
package device

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/scanbox/scanbox/internal/domain/device"
	"github.com/scanbox/scanbox/internal/domain/scanerr"
	"github.com/scanbox/scanbox/internal/infra/capture"
)

// Enumerator lists capture devices and orders them for default selection.
type Enumerator struct {
	platform capture.Platform
}

// NewEnumerator creates a new enumerator.
func NewEnumerator(platform capture.Platform) *Enumerator {
	return &Enumerator{platform: platform}
}

// List returns the available devices, back-facing first. The ordering is a
// default-selection heuristic only; callers may index into the list to pick
// a specific device (used for camera switching).
func (e *Enumerator) List(ctx context.Context) ([]device.Device, error) {
	devices, err := e.platform.Enumerate(ctx)
	if err != nil {
		if errors.Is(err, scanerr.ErrPermissionDenied) {
			return nil, err
		}
		return nil, errors.Mark(errors.Wrap(err, "device query failed"), scanerr.ErrAcquireFailed)
	}

	if len(devices) == 0 {
		return nil, errors.Wrap(scanerr.ErrNoDevice, "platform reported zero devices")
	}

	ordered := Order(devices)
	for i, d := range ordered {
		zlog.Debug().Msgf("device: index=%d id=%s label=%q facing=%s", i, d.ID, d.Label, d.Facing)
	}
	return ordered, nil
}

// Order sorts devices back-facing first, ties broken by platform order.
func Order(devices []device.Device) []device.Device {
	ordered := make([]device.Device, len(devices))
	copy(ordered, devices)

	sort.SliceStable(ordered, func(i, j int) bool {
		return facingRank(ordered[i].Facing) < facingRank(ordered[j].Facing)
	})
	return ordered
}

// facingRank puts back-facing devices ahead of everything else.
func facingRank(f device.Facing) int {
	if f == device.FacingBack {
		return 0
	}
	return 1
}
