package capture

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// NewPlatform creates a capture platform from configuration.
func NewPlatform(backend string, settings map[string]any) (Platform, error) {
	zlog.Debug().Msgf("creating capture backend: type=%s settings=%+v", backend, settings)

	switch backend {
	case "sim":
		p, err := NewSimPlatform(settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create sim capture backend")
		}
		zlog.Info().Msgf("registered capture backend: type=%s devices=%d", backend, len(p.devices))
		return p, nil

	default:
		return nil, errors.Newf("unsupported capture backend: %s", backend)
	}
}
