package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"claimscan/internal/config"
	"claimscan/internal/logging"
	"claimscan/internal/services"
)

// State is the lifecycle state of the camera session.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateError    State = "error"
)

// ErrCameraUnavailable re-exports the sentinel callers match on when a device
// cannot be opened.
var ErrCameraUnavailable = services.ErrCameraUnavailable

// Frame is one grayscale camera frame. Pix aliases the session's reusable
// buffer and is only valid until the next ReadFrame call.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Session is an exclusively owned camera stream.
type Session struct {
	device string
	width  int
	height int

	reader io.ReadCloser
	stop   func() error
	cancel context.CancelFunc

	buf []byte
}

// Device returns the device path the session is bound to.
func (s *Session) Device() string {
	return s.device
}

// ReadFrame blocks until a full frame arrives from the grabber. The returned
// frame's pixel slice is reused across calls.
func (s *Session) ReadFrame() (Frame, error) {
	want := s.width * s.height
	if len(s.buf) != want {
		s.buf = make([]byte, want)
	}
	if _, err := io.ReadFull(s.reader, s.buf); err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	return Frame{Width: s.width, Height: s.height, Pix: s.buf}, nil
}

func (s *Session) close() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.stop != nil {
		_ = s.stop()
	}
	if s.reader != nil {
		_ = s.reader.Close()
	}
}

// Manager enumerates camera devices and owns at most one active session.
type Manager struct {
	logger         *slog.Logger
	grab           grabber
	defaultDevice  string
	width          int
	height         int
	acquireTimeout time.Duration

	sysfsRoot string
	devRoot   string

	mu     sync.Mutex
	active *Session
	state  State
}

// NewManager constructs a camera session manager from configuration.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	m := &Manager{
		logger:         logging.NewComponentLogger(logger, "camera"),
		grab:           newFFmpegGrabber(cfg.GrabberBinary()),
		defaultDevice:  cfg.Camera.Device,
		width:          cfg.Camera.Width,
		height:         cfg.Camera.Height,
		acquireTimeout: time.Duration(cfg.Camera.AcquireTimeout) * time.Second,
		sysfsRoot:      "/sys/class/video4linux",
		devRoot:        "/dev",
		state:          StateStopped,
	}
	return m
}

// State reports the current session lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveDevice returns the device path of the active session, if any.
func (m *Manager) ActiveDevice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.device
}

// Acquire opens an exclusive stream on the requested device, or on the
// default device when deviceID is empty. Any previously held stream is
// released before the new one is requested; on failure no stream is held.
func (m *Manager) Acquire(ctx context.Context, deviceID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The old stream is torn down before the new device is touched. There is
	// no window where two streams are held.
	m.releaseLocked()
	m.state = StateStarting

	device, err := m.resolveDevice(deviceID)
	if err != nil {
		m.state = StateStopped
		return nil, err
	}

	startCtx := ctx
	var cancelStart context.CancelFunc
	if m.acquireTimeout > 0 {
		startCtx, cancelStart = context.WithTimeout(ctx, m.acquireTimeout)
		defer cancelStart()
	}
	if err := startCtx.Err(); err != nil {
		m.state = StateStopped
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	reader, stop, err := m.grab.Start(streamCtx, device, m.width, m.height)
	if err != nil {
		cancel()
		m.state = StateStopped
		return nil, services.Wrap(ErrCameraUnavailable, "camera", "acquire", fmt.Sprintf("open %s", device), err)
	}

	session := &Session{
		device: device,
		width:  m.width,
		height: m.height,
		reader: reader,
		stop:   stop,
		cancel: cancel,
	}
	m.active = session
	m.state = StateActive
	m.logger.Info("camera stream acquired",
		logging.String(logging.FieldDevice, device),
		logging.String(logging.FieldEventType, "camera_acquired"),
	)
	return session, nil
}

// Release stops the active stream. It is idempotent.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.active != nil {
		device := m.active.device
		m.active.close()
		m.active = nil
		m.logger.Info("camera stream released",
			logging.String(logging.FieldDevice, device),
			logging.String(logging.FieldEventType, "camera_released"),
		)
	}
	m.state = StateStopped
}

func (m *Manager) resolveDevice(deviceID string) (string, error) {
	device := strings.TrimSpace(deviceID)
	if device == "" {
		device = strings.TrimSpace(m.defaultDevice)
	}
	if device == "" {
		devices, err := m.ListDevices()
		if err != nil {
			return "", services.Wrap(ErrCameraUnavailable, "camera", "enumerate", "", err)
		}
		if len(devices) == 0 {
			return "", services.Wrap(ErrCameraUnavailable, "camera", "enumerate", "no capture devices found", nil)
		}
		device = devices[0].Path
	}

	if _, err := os.Stat(device); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(ErrCameraUnavailable, "camera", "acquire", fmt.Sprintf("device %s not found", device), nil)
		}
		return "", services.Wrap(ErrCameraUnavailable, "camera", "acquire", fmt.Sprintf("device %s not accessible", device), err)
	}
	return device, nil
}
