// Package main provides the scanner entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/scanbox/scanbox/internal/app/device"
	"github.com/scanbox/scanbox/internal/app/feedback"
	"github.com/scanbox/scanbox/internal/app/scan"
	"github.com/scanbox/scanbox/internal/infra/capture"
	"github.com/scanbox/scanbox/internal/infra/config"
	"github.com/scanbox/scanbox/internal/infra/decode"
	"github.com/scanbox/scanbox/internal/infra/logger"
)

var (
	app        = kingpin.New("scanner", "scanbox scanning session runner")
	configPath = app.Flag("config", "Path to config file").Default("config/scanner.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	deviceIndex = app.Flag("device", "Device index to start with (default: back-facing first)").Default("-1").Int()

	devicesCmd = app.Command("devices", "List capture devices and exit")
)

func init() {
	// scan command (default) - no need to store the command
	app.Command("scan", "Run a scanning session (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == devicesCmd.FullCommand() {
		if err := printDevices(cfg); err != nil {
			zlog.Error().Msgf("Device listing failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Scanner error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to built-in defaults when
// the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zlog.Info().Msgf("Config file %s not found, using defaults", path)
		return config.Default()
	}
	zlog.Info().Msgf("Loading config from %s", path)
	return config.Load(path)
}

// run executes a single scanning session until it reaches a terminal state
// or the process is interrupted.
func run(cfg *config.Config) error {
	platform, err := capture.NewPlatform(cfg.Capture.Backend, cfg.Capture.Settings)
	if err != nil {
		return fmt.Errorf("failed to create capture backend: %w", err)
	}

	engine, err := decode.NewEngine(cfg.Decoder.Engine, cfg.Decoder.Settings)
	if err != nil {
		return fmt.Errorf("failed to create decode engine: %w", err)
	}

	emitter := feedback.NewEmitter(feedback.Config{
		Enabled:        cfg.Feedback.Enabled,
		OnDecoded:      cfg.Feedback.OnDecoded,
		CommandTimeout: cfg.Feedback.CommandTimeout(),
	})

	controller := scan.NewController(scan.Config{
		FrameInterval:  cfg.Scan.FrameInterval(),
		AcquireTimeout: cfg.Scan.AcquireTimeout(),
		ReleaseTimeout: cfg.Scan.ReleaseTimeout(),
	}, platform, engine, emitter)
	defer controller.Close()

	if *deviceIndex >= 0 {
		err = controller.StartDevice(*deviceIndex)
	} else {
		err = controller.Start()
	}
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// Manual fallback: a line typed on stdin is submitted as the value.
	go readManualInput(controller)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			zlog.Info().Msg("Received shutdown signal...")
			return nil

		case ev, ok := <-controller.Events():
			if !ok {
				return nil
			}
			switch ev.Type {
			case scan.EventDecoded:
				fmt.Printf("decoded: %s\n", ev.Value)
				return nil
			case scan.EventError:
				return fmt.Errorf("scan failed: %s: %s", ev.Kind, ev.Message)
			case scan.EventStateChanged:
				zlog.Info().Msgf("state: %s device=%s", ev.State, ev.DeviceID)
			}
		}
	}
}

// readManualInput submits stdin lines as manually entered values.
func readManualInput(controller *scan.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		value := scanner.Text()
		if err := controller.Submit(value); err != nil {
			fmt.Fprintf(os.Stderr, "invalid value: %v\n", err)
		}
	}
}

// printDevices enumerates and prints the ordered device list.
func printDevices(cfg *config.Config) error {
	platform, err := capture.NewPlatform(cfg.Capture.Backend, cfg.Capture.Settings)
	if err != nil {
		return err
	}

	devices, err := device.NewEnumerator(platform).List(context.Background())
	if err != nil {
		return err
	}

	fmt.Println("Available Devices:")
	for i, d := range devices {
		fmt.Printf("  [%d] %-30s facing=%s id=%s\n", i, d.Label, d.Facing, d.ID)
	}
	return nil
}
