package decode

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/scanbox/scanbox/internal/domain/scan"
	"github.com/scanbox/scanbox/internal/domain/scanerr"
	"github.com/scanbox/scanbox/internal/infra/capture"
)

// SimConfig configures the simulated decode engine.
type SimConfig struct {
	Value             string `yaml:"value" mapstructure:"value" default:"SIM-0001"`
	FramesUntilDecode int    `yaml:"frames_until_decode" mapstructure:"frames_until_decode" default:"5" validate:"gte=1"`
	FailBind          bool   `yaml:"fail_bind" mapstructure:"fail_bind"`
}

// SimEngine is a deterministic in-process decode engine: it reports "not
// found" for a configured number of frames, then decodes a fixed value.
type SimEngine struct {
	config *SimConfig
}

// NewSimEngine creates a simulated engine from a settings map.
func NewSimEngine(settings map[string]any) (*SimEngine, error) {
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
	return &SimEngine{config: &config}, nil
}

// Bind binds the engine to a stream.
func (e *SimEngine) Bind(ctx context.Context, stream capture.Stream) (Handle, error) {
	if e.config.FailBind {
		return nil, errors.Wrap(scanerr.ErrEngineUnavailable, "sim: engine load failed")
	}
	return &simHandle{engine: e, stream: stream}, nil
}

type simHandle struct {
	mu       sync.Mutex
	engine   *SimEngine
	stream   capture.Stream
	frames   int
	released bool
}

// NextFrame returns "not found" until the configured frame count is reached.
func (h *simHandle) NextFrame(ctx context.Context) (scan.Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return scan.Result{}, false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return scan.Result{}, false, errors.Wrap(scanerr.ErrInterrupted, "sim: handle released")
	}

	h.frames++
	if h.frames < h.engine.config.FramesUntilDecode {
		return scan.Result{}, false, nil
	}

	return scan.Result{
		Value:     h.engine.config.Value,
		FrameTime: time.Now(),
	}, true, nil
}

// Release drops the binding.
func (h *simHandle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	return nil
}
