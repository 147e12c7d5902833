// Package decode provides the frame decode engine abstraction.
package decode

import (
	"context"

	"github.com/scanbox/scanbox/internal/domain/scan"
	"github.com/scanbox/scanbox/internal/infra/capture"
)

// Handle is a decode engine bound to a single capture stream. The binding has
// the same exclusivity as the stream itself.
type Handle interface {
	// NextFrame inspects the next frame. A "not found" frame returns
	// ok=false with a nil error; that is the common case and not a failure.
	NextFrame(ctx context.Context) (result scan.Result, ok bool, err error)

	// Release drops the binding. The underlying stream is not released.
	Release(ctx context.Context) error
}

// Engine binds a decoder to a capture stream. Bind fails with
// scanerr.ErrEngineUnavailable when the engine cannot be loaded.
type Engine interface {
	Bind(ctx context.Context, stream capture.Stream) (Handle, error)
}
