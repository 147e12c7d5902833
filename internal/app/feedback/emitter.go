// Package feedback provides best-effort success cues (haptic/audio hooks).
package feedback

import (
	"context"
	"os/exec"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Config holds emitter configuration.
type Config struct {
	Enabled        bool
	OnDecoded      []string      // Shell commands to run on a successful decode
	CommandTimeout time.Duration // Per-command timeout
}

// Emitter fires success cues. Cues are pure side effects: a failing or
// unsupported cue never propagates as a scan error and never delays the
// decoded notification.
type Emitter struct {
	config Config
}

// NewEmitter creates a new emitter.
func NewEmitter(config Config) *Emitter {
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 2 * time.Second
	}
	return &Emitter{config: config}
}

// Decoded fires the configured success cues. Fire-and-forget: the commands
// run on their own goroutine and the call returns immediately.
func (e *Emitter) Decoded() {
	if e == nil || !e.config.Enabled || len(e.config.OnDecoded) == 0 {
		return
	}

	hooks := make([]string, len(e.config.OnDecoded))
	copy(hooks, e.config.OnDecoded)
	timeout := e.config.CommandTimeout

	go func() {
		for _, hook := range hooks {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			// Use sh -c to allow shell features like redirection or pipes
			cmd := exec.CommandContext(ctx, "sh", "-c", hook)
			if err := cmd.Run(); err != nil {
				zlog.Debug().Err(err).Msgf("feedback: hook failed: %s", hook)
			}
			cancel()
		}
	}()
}
