// Package device provides the capture device domain entity.
package device

import "strings"

// Facing represents which way a capture device points.
type Facing int

const (
	FacingUnknown Facing = iota // Facing could not be determined from the label
	FacingBack                  // Points away from the user
	FacingFront                 // Points toward the user
)

// String returns the string representation of the facing.
func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	default:
		return "unknown"
	}
}

// Device represents a capture device as reported by the platform.
// Immutable once enumerated; the list is refreshed only on a fresh start.
type Device struct {
	ID     string // Platform device identifier
	Label  string // Human-readable label
	Facing Facing // Facing hint derived from the label
}

// Label tokens used to guess the facing. Platform labels are free-form,
// so this is a heuristic, not a guarantee.
var (
	backTokens  = []string{"back", "rear", "environment"}
	frontTokens = []string{"front", "user", "face"}
)

// ClassifyFacing guesses the facing of a device from its label.
func ClassifyFacing(label string) Facing {
	l := strings.ToLower(label)
	for _, tok := range backTokens {
		if strings.Contains(l, tok) {
			return FacingBack
		}
	}
	for _, tok := range frontTokens {
		if strings.Contains(l, tok) {
			return FacingFront
		}
	}
	return FacingUnknown
}

// New creates a device with its facing classified from the label.
func New(id, label string) Device {
	return Device{
		ID:     id,
		Label:  label,
		Facing: ClassifyFacing(label),
	}
}
