package decode

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// NewEngine creates a decode engine from configuration.
func NewEngine(engine string, settings map[string]any) (Engine, error) {
	zlog.Debug().Msgf("creating decode engine: type=%s settings=%+v", engine, settings)

	switch engine {
	case "sim":
		e, err := NewSimEngine(settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create sim decode engine")
		}
		zlog.Info().Msgf("registered decode engine: type=%s", engine)
		return e, nil

	default:
		return nil, errors.Newf("unsupported decode engine: %s", engine)
	}
}
