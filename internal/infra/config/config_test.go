package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	require.NoError(t, defaults.Set(&cfg))
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "frame interval too small",
			mutate:  func(c *Config) { c.Scan.FrameIntervalMs = 0 },
			wantErr: true,
			errMsg:  "FrameIntervalMs",
		},
		{
			name:    "frame interval exceeds acquire timeout",
			mutate:  func(c *Config) { c.Scan.FrameIntervalMs = 5000; c.Scan.AcquireTimeoutMs = 1000 },
			wantErr: true,
			errMsg:  "frame_interval_ms",
		},
		{
			name:    "missing capture backend",
			mutate:  func(c *Config) { c.Capture.Backend = "" },
			wantErr: true,
			errMsg:  "Backend",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: true,
			errMsg:  "Level",
		},
		{
			name:    "feedback enabled without commands",
			mutate:  func(c *Config) { c.Feedback.Enabled = true },
			wantErr: true,
			errMsg:  "on_decoded",
		},
		{
			name: "feedback enabled with commands",
			mutate: func(c *Config) {
				c.Feedback.Enabled = true
				c.Feedback.OnDecoded = []string{"paplay /usr/share/sounds/ding.wav"}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
scan:
  frame_interval_ms: 50
capture:
  backend: sim
  settings:
    devices:
      - id: cam0
        label: "Back Camera"
decoder:
  engine: sim
  settings:
    value: "QR-42"
    frames_until_decode: 2
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.Scan.FrameIntervalMs)
	// Unset fields pick up defaults.
	assert.Equal(t, 5000, cfg.Scan.AcquireTimeoutMs)
	assert.Equal(t, "sim", cfg.Capture.Backend)
	assert.Equal(t, "QR-42", cfg.Decoder.Settings["value"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))

	t.Setenv("SCANBOX_LOG_LEVEL", "debug")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
