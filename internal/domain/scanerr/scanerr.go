// Package scanerr provides the scan error taxonomy and classifier.
package scanerr

import "github.com/cockroachdb/errors"

// Sentinel errors returned by the capture and decode adapters. Adapters wrap
// these with platform detail; classification matches via errors.Is, never via
// message text.
var (
	ErrPermissionDenied  = errors.New("capture permission denied")
	ErrNoDevice          = errors.New("no capture device found")
	ErrAcquireFailed     = errors.New("device acquisition failed")
	ErrInterrupted       = errors.New("capture stream interrupted")
	ErrEngineUnavailable = errors.New("decode engine unavailable")
)

// Kind is the closed set of error kinds surfaced to the caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindNoDeviceFound
	KindDecodeEngineUnavailable
	KindDeviceAcquisitionFailed
	KindStreamInterrupted // Expected during a self-initiated stop, never user-facing
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNoDeviceFound:
		return "no_device_found"
	case KindDecodeEngineUnavailable:
		return "decode_engine_unavailable"
	case KindDeviceAcquisitionFailed:
		return "device_acquisition_failed"
	case KindStreamInterrupted:
		return "stream_interrupted"
	default:
		return "unknown"
	}
}

// Intent tags the context in which an error was raised. The controller tags
// its own teardown as IntentSelfStop so that interruptions caused by the
// teardown itself are not mistaken for real failures.
type Intent int

const (
	IntentNone     Intent = iota // No controller-initiated teardown in progress
	IntentSelfStop               // Error raised while the controller was tearing down
)

// Classify maps a raw adapter error to a Kind. Pure function.
//
// An interruption is only classified as StreamInterrupted when the controller
// declared the teardown intent; the same underlying error outside a self-stop
// is a real acquisition failure.
func Classify(err error, intent Intent) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNoDevice):
		return KindNoDeviceFound
	case errors.Is(err, ErrEngineUnavailable):
		return KindDecodeEngineUnavailable
	case errors.Is(err, ErrInterrupted):
		if intent == IntentSelfStop {
			return KindStreamInterrupted
		}
		return KindDeviceAcquisitionFailed
	case errors.Is(err, ErrAcquireFailed):
		return KindDeviceAcquisitionFailed
	default:
		return KindUnknown
	}
}

// Benign reports whether the kind must be swallowed rather than surfaced.
func Benign(k Kind) bool {
	return k == KindStreamInterrupted
}
