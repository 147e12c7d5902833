// Package scan provides the decode result domain entity.
package scan

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrEmptyValue is returned when a manually entered value is empty or whitespace.
var ErrEmptyValue = errors.New("value is empty")

// Result represents a positive decode from a single frame.
// The value is stored verbatim; normalization is the caller's concern.
type Result struct {
	Value     string    // Decoded payload
	FrameTime time.Time // Timestamp of the frame the payload came from
}

// ValidateManualValue checks a manually entered value.
func ValidateManualValue(value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrEmptyValue
	}
	return nil
}
