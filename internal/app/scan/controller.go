package scan

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	appdevice "github.com/scanbox/scanbox/internal/app/device"
	"github.com/scanbox/scanbox/internal/app/feedback"
	"github.com/scanbox/scanbox/internal/domain/device"
	domscan "github.com/scanbox/scanbox/internal/domain/scan"
	"github.com/scanbox/scanbox/internal/domain/scanerr"
	"github.com/scanbox/scanbox/internal/infra/capture"
	"github.com/scanbox/scanbox/internal/infra/decode"
)

// Errors
var (
	ErrSessionActive     = errors.New("session already active")
	ErrSessionNotRunning = errors.New("session is not running")
	ErrSwitchUnavailable = errors.New("switching requires more than one device")
)

// Config holds controller configuration.
type Config struct {
	FrameInterval  time.Duration // Delay between decode attempts
	AcquireTimeout time.Duration // Timeout for a single device acquisition
	ReleaseTimeout time.Duration // Timeout for stream/decoder teardown
}

// Controller owns one logical scanning session: at most one capture device
// held at any instant, one decode loop per Active epoch, and a guaranteed
// release of the device on every exit path.
//
// Cancellation is cooperative: every transition bumps the epoch, and any
// asynchronous completion carrying a stale epoch is discarded. Lifecycle
// bodies (acquisition, teardown) additionally serialize on opMu so that a
// new acquisition can never begin before the previous one has settled and
// released its device, and teardowns chain on releaseDone so an operation
// issued during Stopping publishes its successor state only after the
// earlier epoch's release has completed.
type Controller struct {
	mu   sync.Mutex
	opMu sync.Mutex

	id       string
	config   Config
	platform capture.Platform
	engine   decode.Engine
	enum     *appdevice.Enumerator
	feedback *feedback.Emitter

	// Guarded by mu
	epoch       uint64
	state       State
	devices     []device.Device // Refreshed on each fresh start
	deviceID    string          // Device chosen for the current epoch
	stream      capture.Stream
	handle      decode.Handle
	releaseDone chan struct{} // Closed when the most recent teardown's release completes
	value       string
	failKind    scanerr.Kind
	failMsg     string
	closed      bool

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new session controller.
func NewController(config Config, platform capture.Platform, engine decode.Engine, fb *feedback.Emitter) *Controller {
	if config.FrameInterval <= 0 {
		config.FrameInterval = 100 * time.Millisecond
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = 5 * time.Second
	}
	if config.ReleaseTimeout <= 0 {
		config.ReleaseTimeout = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:       uuid.New().String(),
		config:   config,
		platform: platform,
		engine:   engine,
		enum:     appdevice.NewEnumerator(platform),
		feedback: fb,
		state:    StateIdle,
		eventCh:  make(chan Event, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Start begins a session with the default device (back-facing first).
// Valid only from Idle or a terminal state.
func (c *Controller) Start() error {
	return c.start(-1)
}

// StartDevice begins a session with the device at the given index of the
// enumerated list.
func (c *Controller) StartDevice(index int) error {
	if index < 0 {
		return errors.Newf("device index %d out of range", index)
	}
	return c.start(index)
}

func (c *Controller) start(preferred int) error {
	c.mu.Lock()

	switch c.state {
	case StateIdle, StateDecoded, StateFailed:
	default:
		c.mu.Unlock()
		return ErrSessionActive
	}

	c.epoch++
	e := c.epoch
	c.value = ""
	c.failKind = scanerr.KindUnknown
	c.failMsg = ""
	c.deviceID = ""
	c.setStateLocked(StateAcquiring)
	c.mu.Unlock()

	zlog.Debug().Msgf("scan: session %s starting: epoch=%d preferred=%d", c.id, e, preferred)
	go c.acquire(e, preferred)
	return nil
}

// Stop tears the session down and returns it to Idle. Valid from any state;
// calling Stop when already Idle is a no-op. All in-flight callbacks from
// the previous epoch are invalidated.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}

	c.epoch++
	e := c.epoch
	stream, handle, prev, done := c.beginTeardownLocked()
	c.setStateLocked(StateStopping)
	c.mu.Unlock()

	zlog.Debug().Msgf("scan: session %s stopping: epoch=%d", c.id, e)
	go func() {
		c.awaitAndRelease(prev, done, stream, handle)

		c.mu.Lock()
		defer c.mu.Unlock()
		if e != c.epoch {
			return
		}
		c.deviceID = ""
		c.setStateLocked(StateIdle)
	}()
}

// SwitchDevice stops the current session and restarts it against the device
// at the given index, as one atomic operation: the intermediate Idle state
// is never observable and the old device is fully released before the new
// acquisition begins.
func (c *Controller) SwitchDevice(index int) error {
	c.mu.Lock()

	if c.state != StateAcquiring && c.state != StateActive {
		c.mu.Unlock()
		return ErrSessionNotRunning
	}
	if index < 0 {
		c.mu.Unlock()
		return errors.Newf("device index %d out of range", index)
	}
	// The device list is empty until the first enumeration completes; in that
	// window the switch proceeds and the re-enumeration inside acquire bounds
	// checks the index against the fresh list.
	if len(c.devices) > 0 {
		if len(c.devices) <= 1 {
			c.mu.Unlock()
			return ErrSwitchUnavailable
		}
		if index >= len(c.devices) {
			c.mu.Unlock()
			return errors.Newf("device index %d out of range", index)
		}
	}

	c.epoch++
	e := c.epoch
	stream, handle, prev, done := c.beginTeardownLocked()
	c.setStateLocked(StateStopping)
	c.mu.Unlock()

	zlog.Debug().Msgf("scan: session %s switching: epoch=%d index=%d", c.id, e, index)
	go func() {
		c.awaitAndRelease(prev, done, stream, handle)

		c.mu.Lock()
		if e != c.epoch {
			c.mu.Unlock()
			return
		}
		c.deviceID = ""
		c.setStateLocked(StateAcquiring)
		c.mu.Unlock()

		c.acquire(e, index)
	}()
	return nil
}

// Submit records a manually entered value, bypassing the camera entirely.
// Valid in any state; a device held or mid-acquisition is released before
// the Decoded transition becomes observable.
func (c *Controller) Submit(value string) error {
	if err := domscan.ValidateManualValue(value); err != nil {
		return err
	}

	c.mu.Lock()
	c.epoch++
	e := c.epoch

	if c.state == StateIdle || c.state.Terminal() {
		// Nothing held and nothing in flight: complete synchronously.
		c.value = value
		c.setStateLocked(StateDecoded)
		c.sendEventLocked(Event{Type: EventDecoded, State: StateDecoded, Value: value})
		c.mu.Unlock()
		c.feedback.Decoded()
		return nil
	}

	stream, handle, prev, done := c.beginTeardownLocked()
	c.setStateLocked(StateStopping)
	c.mu.Unlock()

	go func() {
		// Waits for any in-flight acquisition or earlier teardown to settle
		// and release its device before the terminal transition.
		c.awaitAndRelease(prev, done, stream, handle)

		c.mu.Lock()
		if e != c.epoch {
			c.mu.Unlock()
			return
		}
		c.deviceID = ""
		c.value = value
		c.setStateLocked(StateDecoded)
		c.sendEventLocked(Event{Type: EventDecoded, State: StateDecoded, Value: value})
		c.mu.Unlock()
		c.feedback.Decoded()
	}()
	return nil
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Value returns the decoded value, if the session reached Decoded.
func (c *Controller) Value() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDecoded {
		return "", false
	}
	return c.value, true
}

// Failure returns the error kind and message, if the session reached Failed.
func (c *Controller) Failure() (scanerr.Kind, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateFailed {
		return scanerr.KindUnknown, "", false
	}
	return c.failKind, c.failMsg, true
}

// Devices returns a copy of the device list from the last enumeration.
func (c *Controller) Devices() []device.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]device.Device, len(c.devices))
	copy(result, c.devices)
	return result
}

// DeviceCount returns the number of enumerated devices.
func (c *Controller) DeviceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.devices)
}

// CurrentDeviceID returns the device chosen for the current epoch.
func (c *Controller) CurrentDeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// Close destroys the controller. It is an implicit Stop: any held device is
// released, in-flight work is invalidated, and the event channel is closed.
func (c *Controller) Close() {
	c.Stop()
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.eventCh)
}

// acquire runs the asynchronous half of a start: enumerate, pick a device,
// open a stream, bind the decoder, begin the decode loop. Any failure along
// the way releases whatever was partially acquired before it is reported.
func (c *Controller) acquire(e uint64, preferred int) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	devices, err := c.enum.List(c.ctx)
	if err != nil {
		c.failAcquire(e, err)
		return
	}

	c.mu.Lock()
	if e != c.epoch {
		c.mu.Unlock()
		return
	}
	c.devices = devices
	idx := 0
	if preferred >= 0 {
		if preferred >= len(devices) {
			c.mu.Unlock()
			c.failAcquire(e, errors.Wrapf(scanerr.ErrNoDevice, "device index %d out of range", preferred))
			return
		}
		idx = preferred
	}
	dev := devices[idx]
	c.deviceID = dev.ID
	c.mu.Unlock()

	acquireCtx, cancel := context.WithTimeout(c.ctx, c.config.AcquireTimeout)
	stream, err := c.platform.Acquire(acquireCtx, dev.ID)
	cancel()
	if err != nil {
		c.failAcquire(e, err)
		return
	}

	handle, err := c.engine.Bind(c.ctx, stream)
	if err != nil {
		c.releaseNow(stream, nil)
		c.failAcquire(e, err)
		return
	}

	c.mu.Lock()
	if e != c.epoch {
		// A stop or switch won the race while we were acquiring. The new
		// epoch never saw this stream, so it is ours to release.
		c.mu.Unlock()
		c.releaseNow(stream, handle)
		return
	}
	c.stream = stream
	c.handle = handle
	c.setStateLocked(StateActive)
	c.mu.Unlock()

	zlog.Info().Msgf("scan: session %s active: device=%s epoch=%d", c.id, dev.ID, e)
	go c.decodeLoop(e, handle)
}

// decodeLoop calls the decode engine once per frame interval until a frame
// decodes, the epoch moves on, or the engine reports an error.
func (c *Controller) decodeLoop(e uint64, handle decode.Handle) {
	ticker := time.NewTicker(c.config.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		current := e == c.epoch
		c.mu.Unlock()
		if !current {
			return
		}

		result, ok, err := handle.NextFrame(c.ctx)
		if err != nil {
			c.failActive(e, err)
			return
		}
		if !ok {
			// "Not found" is the common case and is silent.
			continue
		}

		c.completeDecode(e, result)
		return
	}
}

// completeDecode finishes a session after a positive decode: release first,
// then the Decoded transition, then feedback. Exactly once per epoch.
func (c *Controller) completeDecode(e uint64, result domscan.Result) {
	c.mu.Lock()
	if e != c.epoch {
		c.mu.Unlock()
		return
	}
	c.epoch++
	te := c.epoch
	stream, handle, prev, done := c.beginTeardownLocked()
	deviceID := c.deviceID
	c.setStateLocked(StateStopping)
	c.mu.Unlock()

	c.awaitAndRelease(prev, done, stream, handle)

	c.mu.Lock()
	if te != c.epoch {
		c.mu.Unlock()
		return
	}
	c.deviceID = ""
	c.value = result.Value
	c.setStateLocked(StateDecoded)
	c.sendEventLocked(Event{Type: EventDecoded, State: StateDecoded, DeviceID: deviceID, Value: result.Value})
	c.mu.Unlock()

	zlog.Info().Msgf("scan: session %s decoded: device=%s frame_time=%s", c.id, deviceID, result.FrameTime.Format(time.RFC3339Nano))
	c.feedback.Decoded()
}

// failAcquire reports a failure from the acquisition path. Nothing is held
// at this point; callers release partial acquisitions before calling.
func (c *Controller) failAcquire(e uint64, err error) {
	c.mu.Lock()
	if e != c.epoch {
		c.mu.Unlock()
		c.swallowStale(err)
		return
	}
	c.epoch++
	kind := scanerr.Classify(err, scanerr.IntentNone)
	c.failLocked(kind, err)
	c.mu.Unlock()
}

// failActive reports a failure from the decode loop: release the binding,
// then the Failed transition.
func (c *Controller) failActive(e uint64, err error) {
	c.mu.Lock()
	if e != c.epoch {
		c.mu.Unlock()
		c.swallowStale(err)
		return
	}
	c.epoch++
	te := c.epoch
	stream, handle, prev, done := c.beginTeardownLocked()
	c.setStateLocked(StateStopping)
	c.mu.Unlock()

	c.awaitAndRelease(prev, done, stream, handle)

	c.mu.Lock()
	if te != c.epoch {
		c.mu.Unlock()
		return
	}
	c.deviceID = ""
	kind := scanerr.Classify(err, scanerr.IntentNone)
	c.failLocked(kind, err)
	c.mu.Unlock()
}

// swallowStale handles an error whose epoch has moved on: it was raised as
// a side effect of a controller-initiated stop and is not a real failure.
func (c *Controller) swallowStale(err error) {
	kind := scanerr.Classify(err, scanerr.IntentSelfStop)
	if scanerr.Benign(kind) {
		zlog.Debug().Msgf("scan: session %s ignoring interruption from own stop: %v", c.id, err)
		return
	}
	zlog.Debug().Msgf("scan: session %s discarding stale error: kind=%s err=%v", c.id, kind, err)
}

// failLocked moves the session into Failed. Must be called with mu held and
// with no device held.
func (c *Controller) failLocked(kind scanerr.Kind, err error) {
	c.failKind = kind
	c.failMsg = err.Error()
	c.setStateLocked(StateFailed)
	c.sendEventLocked(Event{Type: EventError, State: StateFailed, Kind: kind, Message: c.failMsg})
	zlog.Warn().Msgf("scan: session %s failed: kind=%s err=%v", c.id, kind, err)
}

// takeBindingLocked removes and returns the held stream and decoder handle.
// Must be called with mu held.
func (c *Controller) takeBindingLocked() (capture.Stream, decode.Handle) {
	stream, handle := c.stream, c.handle
	c.stream = nil
	c.handle = nil
	return stream, handle
}

// beginTeardownLocked takes the held binding and links this teardown into the
// release chain. prev is the previous teardown still in flight (nil if none);
// done must be closed once this teardown's release has completed. An
// operation arriving during Stopping finds its binding already taken by the
// earlier teardown, so it must wait on prev before publishing its own
// post-Stopping state. Must be called with mu held.
func (c *Controller) beginTeardownLocked() (stream capture.Stream, handle decode.Handle, prev, done chan struct{}) {
	stream, handle = c.takeBindingLocked()
	prev = c.releaseDone
	done = make(chan struct{})
	c.releaseDone = done
	return stream, handle, prev, done
}

// awaitAndRelease waits for the previous teardown in the chain, releases this
// teardown's binding, and marks it complete. On return no device from this or
// any earlier epoch is held.
func (c *Controller) awaitAndRelease(prev, done chan struct{}, stream capture.Stream, handle decode.Handle) {
	if prev != nil {
		<-prev
	}
	c.releaseBinding(stream, handle)
	close(done)
}

// setStateLocked updates the state and emits a state change event.
// Must be called with mu held.
func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.sendEventLocked(Event{Type: EventStateChanged, State: s, DeviceID: c.deviceID})
}

// sendEventLocked sends an event without blocking. Must be called with mu held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
	}
}

// releaseBinding releases a stream and decoder handle under opMu, so that
// no new acquisition can begin before the release has completed.
func (c *Controller) releaseBinding(stream capture.Stream, handle decode.Handle) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.releaseNow(stream, handle)
}

// releaseNow performs the actual release calls. Callers either hold opMu or
// are themselves the body holding it.
func (c *Controller) releaseNow(stream capture.Stream, handle decode.Handle) {
	if handle != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ReleaseTimeout)
		if err := handle.Release(ctx); err != nil {
			zlog.Debug().Msgf("scan: session %s decoder release: %v", c.id, err)
		}
		cancel()
	}
	if stream != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ReleaseTimeout)
		if err := stream.Release(ctx); err != nil {
			zlog.Debug().Msgf("scan: session %s stream release: %v", c.id, err)
		}
		cancel()
	}
}
