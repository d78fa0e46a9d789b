package scanner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"claimscan/internal/attempts"
	"claimscan/internal/camera"
	"claimscan/internal/config"
	"claimscan/internal/decode"
	"claimscan/internal/dispatch"
	"claimscan/internal/logging"
	"claimscan/internal/payload"
	"claimscan/internal/services"
)

// State is the observable coordinator state.
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateDispatching State = "dispatching"
)

var (
	// ErrNotOpen is returned for operations that require an open scanner.
	ErrNotOpen = errors.New("scanner is not open")
	// ErrAlreadyOpen is returned when opening an already-open scanner.
	ErrAlreadyOpen = errors.New("scanner is already open")
	// ErrDispatchInFlight rejects input while a dispatch is pending.
	ErrDispatchInFlight = errors.New("a dispatch is already in flight")
	// ErrBusy rejects a device switch while another transition is underway.
	ErrBusy = errors.New("scanner is busy")
	// ErrNoItemID means the submitted payload held no item identifier.
	ErrNoItemID = errors.New("payload contains no item identifier")
)

// FrameSource delivers frames from the active camera stream.
type FrameSource interface {
	ReadFrame() (camera.Frame, error)
	Device() string
}

// Camera owns the exclusive camera stream on behalf of the coordinator.
type Camera interface {
	Acquire(ctx context.Context, deviceID string) (FrameSource, error)
	Release()
	ActiveDevice() string
}

// ActionDispatcher issues one claim or collect call per invocation.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, itemID string, mode dispatch.Mode, source attempts.Source) (*attempts.Attempt, error)
}

// Status is a point-in-time snapshot for callers to render.
type Status struct {
	State       State  `json:"state"`
	Open        bool   `json:"open"`
	Device      string `json:"device,omitempty"`
	Mode        string `json:"mode"`
	LastItemID  string `json:"last_item_id,omitempty"`
	LastOutcome string `json:"last_outcome,omitempty"`
}

// Coordinator is the scan-to-claim state machine.
type Coordinator struct {
	logger        *slog.Logger
	cam           Camera
	decoder       decode.Decoder
	dispatcher    ActionDispatcher
	frameInterval time.Duration
	cooldown      time.Duration

	mu         sync.Mutex
	open       bool
	transition bool
	generation int
	mode       dispatch.Mode
	inFlight   bool
	source     FrameSource

	lastDispatched string
	lastResolved   time.Time
	lastItemID     string
	lastOutcome    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a coordinator from configuration and collaborators.
func New(cfg *config.Config, cam Camera, decoder decode.Decoder, dispatcher ActionDispatcher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		logger:        logging.NewComponentLogger(logger, "scan-coordinator"),
		cam:           cam,
		decoder:       decoder,
		dispatcher:    dispatcher,
		frameInterval: time.Duration(cfg.Scanner.FrameInterval) * time.Millisecond,
		cooldown:      time.Duration(cfg.Scanner.DispatchCooldown) * time.Millisecond,
		mode:          dispatch.ModeClaim,
	}
}

// Open acquires the camera (the configured default when deviceID is empty)
// and starts the frame loop.
func (c *Coordinator) Open(ctx context.Context, deviceID string) error {
	// The transition flag keeps the check-acquire-commit sequence single
	// flight without holding the mutex across the camera acquire.
	c.mu.Lock()
	if c.open || c.transition {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.transition = true
	c.mu.Unlock()

	source, err := c.cam.Acquire(ctx, deviceID)
	if err != nil {
		c.mu.Lock()
		c.transition = false
		c.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.transition = false
	c.open = true
	c.source = source
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.frameLoop(loopCtx)

	c.logger.Info("scanner opened",
		logging.String(logging.FieldDevice, source.Device()),
		logging.String(logging.FieldEventType, "scanner_opened"),
	)
	return nil
}

// Close synchronously stops the frame loop and releases the camera. A
// dispatch already in flight runs to completion but its result is discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.open = false
	c.generation++
	c.inFlight = false
	c.source = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.cam.Release()

	c.logger.Info("scanner closed", logging.String(logging.FieldEventType, "scanner_closed"))
}

// SwitchDevice tears down the previous stream and acquires the requested
// device. The camera manager guarantees the old stream is released before
// the new one starts.
func (c *Coordinator) SwitchDevice(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrNotOpen
	}
	if c.transition {
		c.mu.Unlock()
		return ErrBusy
	}
	c.transition = true
	generation := c.generation
	c.mu.Unlock()

	source, err := c.cam.Acquire(ctx, deviceID)

	c.mu.Lock()
	c.transition = false
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.open || c.generation != generation {
		// Closed while switching; the freshly acquired stream must not leak.
		c.mu.Unlock()
		c.cam.Release()
		return ErrNotOpen
	}
	c.source = source
	c.mu.Unlock()

	c.logger.Info("camera switched",
		logging.String(logging.FieldDevice, source.Device()),
		logging.String(logging.FieldEventType, "device_switched"),
	)
	return nil
}

// Mode returns the current dispatch mode.
func (c *Coordinator) Mode() dispatch.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches between claim and collect. Refused while a dispatch is
// in flight.
func (c *Coordinator) SetMode(mode dispatch.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrDispatchInFlight
	}
	if c.mode != mode {
		c.mode = mode
		c.logger.Info("mode changed",
			logging.String(logging.FieldMode, string(mode)),
			logging.String(logging.FieldEventType, "mode_changed"),
		)
	}
	return nil
}

// Status reports the coordinator snapshot.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := StateIdle
	if c.inFlight {
		state = StateDispatching
	} else if c.open {
		state = StateScanning
	}

	status := Status{
		State:       state,
		Open:        c.open,
		Mode:        string(c.mode),
		LastItemID:  c.lastItemID,
		LastOutcome: c.lastOutcome,
	}
	if c.source != nil {
		status.Device = c.source.Device()
	}
	return status
}

// SubmitManual routes a manually entered payload or bare item id through the
// same dispatch guard as camera detections. Unlike camera frames it is not
// deduplicated: resubmitting the same value is the user's retry.
func (c *Coordinator) SubmitManual(ctx context.Context, raw string) (*attempts.Attempt, error) {
	itemID, ok := payload.Parse(raw)
	if !ok {
		return nil, ErrNoItemID
	}

	trimmed := strings.TrimSpace(raw)

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrDispatchInFlight
	}
	c.inFlight = true
	c.lastDispatched = trimmed
	c.lastResolved = time.Time{}
	mode := c.mode
	generation := c.generation
	if c.source != nil {
		ctx = services.WithDevice(ctx, c.source.Device())
	}
	c.mu.Unlock()

	attempt, err := c.dispatcher.Dispatch(ctx, itemID, mode, attempts.SourceManual)
	c.finishDispatch(generation, attempt)
	return attempt, err
}

// frameLoop polls the active stream on a fixed cadence. While a dispatch is
// pending the iteration is a no-op; that is the backpressure that keeps a
// second dispatch from racing the first.
func (c *Coordinator) frameLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if !c.open {
			c.mu.Unlock()
			return
		}
		if c.inFlight {
			c.mu.Unlock()
			continue
		}
		source := c.source
		c.mu.Unlock()
		if source == nil {
			continue
		}

		frame, err := source.ReadFrame()
		if err != nil {
			// Stream gone mid-switch or mid-close; the next tick sees the
			// refreshed source or the loop exits.
			continue
		}

		value, ok, err := c.decoder.Decode(ctx, frame)
		if err != nil || !ok {
			continue
		}
		c.handleDetection(ctx, value)
	}
}

// handleDetection applies dedupe and the single-flight guard to a decoded
// payload, then dispatches asynchronously so frame scheduling is never
// blocked on the network.
func (c *Coordinator) handleDetection(ctx context.Context, raw string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return
	}

	c.mu.Lock()
	if !c.open || c.inFlight {
		c.mu.Unlock()
		return
	}
	if trimmed == c.lastDispatched {
		if c.lastResolved.IsZero() || time.Since(c.lastResolved) < c.cooldown {
			c.mu.Unlock()
			return
		}
	}
	mode := c.mode
	generation := c.generation
	c.mu.Unlock()

	itemID, ok := payload.Parse(raw)
	if !ok {
		// Not an error: the frame decoded to something that is not ours.
		return
	}

	c.mu.Lock()
	if !c.open || c.inFlight || c.generation != generation {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.lastDispatched = trimmed
	c.lastResolved = time.Time{}
	device := ""
	if c.source != nil {
		device = c.source.Device()
	}
	c.mu.Unlock()

	c.logger.Info("payload detected",
		logging.String(logging.FieldItemID, itemID),
		logging.String(logging.FieldMode, string(mode)),
		logging.String(logging.FieldEventType, "payload_detected"),
	)

	// The dispatch deliberately outlives loop cancellation so external state
	// is never left half-submitted.
	go func() {
		dispatchCtx := services.WithDevice(context.Background(), device)
		attempt, _ := c.dispatcher.Dispatch(dispatchCtx, itemID, mode, attempts.SourceCamera)
		c.finishDispatch(generation, attempt)
	}()
}

// finishDispatch clears the in-flight guard and records the outcome, unless
// the coordinator was closed while the dispatch ran, in which case the
// result is discarded.
func (c *Coordinator) finishDispatch(generation int, attempt *attempts.Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return
	}
	c.inFlight = false
	c.lastResolved = time.Now()
	if attempt != nil {
		c.lastItemID = attempt.ItemID
		c.lastOutcome = attempt.Message
	}
}
