// Package scan provides the camera scanning session controller.
package scan

// State represents the session state.
type State int

const (
	StateIdle      State = iota // No device held, no decode loop running
	StateAcquiring              // Device request in flight
	StateActive                 // Device held, decode loop running
	StateStopping               // Release in flight
	StateDecoded                // Terminal success, device already released
	StateFailed                 // Terminal failure, device already released
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateDecoded:
		return "decoded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is terminal. A terminal session may be
// re-armed with a fresh Start, which begins a new epoch lineage.
func (s State) Terminal() bool {
	return s == StateDecoded || s == StateFailed
}
