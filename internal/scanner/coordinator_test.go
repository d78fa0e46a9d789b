package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"claimscan/internal/attempts"
	"claimscan/internal/camera"
	"claimscan/internal/config"
	"claimscan/internal/dispatch"
	"claimscan/internal/logging"
	"claimscan/internal/services"
)

const testItemID = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

type fakeSource struct {
	mu     sync.Mutex
	device string
	frames [][]byte
}

func (s *fakeSource) push(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, []byte(payload))
}

func (s *fakeSource) ReadFrame() (camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return camera.Frame{}, errors.New("no frame ready")
	}
	pix := s.frames[0]
	s.frames = s.frames[1:]
	return camera.Frame{Width: len(pix), Height: 1, Pix: pix}, nil
}

func (s *fakeSource) Device() string { return s.device }

type fakeCamera struct {
	mu      sync.Mutex
	events  []string
	current *fakeSource
	failure error

	// acquireStarted and acquireGate let tests hold Acquire mid-flight.
	acquireStarted chan struct{}
	acquireGate    chan struct{}
}

func (c *fakeCamera) Acquire(_ context.Context, deviceID string) (FrameSource, error) {
	c.mu.Lock()
	started := c.acquireStarted
	gate := c.acquireGate
	c.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.events = append(c.events, "release")
		c.current = nil
	}
	if c.failure != nil {
		c.events = append(c.events, "acquire-failed")
		return nil, c.failure
	}
	if deviceID == "" {
		deviceID = "/dev/video0"
	}
	c.events = append(c.events, "acquire:"+deviceID)
	c.current = &fakeSource{device: deviceID}
	return c.current, nil
}

func (c *fakeCamera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.events = append(c.events, "release")
		c.current = nil
	}
}

func (c *fakeCamera) ActiveDevice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.device
}

func (c *fakeCamera) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

// holdNextAcquire arms the camera so the next Acquire signals started and
// then blocks until gate is closed.
func (c *fakeCamera) holdNextAcquire() (started, gate chan struct{}) {
	started = make(chan struct{}, 1)
	gate = make(chan struct{})
	c.mu.Lock()
	c.acquireStarted = started
	c.acquireGate = gate
	c.mu.Unlock()
	return started, gate
}

// passthroughDecoder treats the frame's pixel bytes as the decoded payload.
type passthroughDecoder struct{}

func (passthroughDecoder) Decode(_ context.Context, frame camera.Frame) (string, bool, error) {
	if len(frame.Pix) == 0 {
		return "", false, nil
	}
	return string(frame.Pix), true, nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []string
	sources []attempts.Source
	devices []string
	gate    chan struct{}
	err     error
	message string
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, itemID string, mode dispatch.Mode, source attempts.Source) (*attempts.Attempt, error) {
	device, _ := services.DeviceFromContext(ctx)

	d.mu.Lock()
	d.calls = append(d.calls, itemID)
	d.sources = append(d.sources, source)
	d.devices = append(d.devices, device)
	gate := d.gate
	err := d.err
	message := d.message
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}

	status := attempts.StatusSucceeded
	if err != nil {
		status = attempts.StatusFailed
	}
	now := time.Now().UTC()
	return &attempts.Attempt{
		ID:         fmt.Sprintf("attempt-%d", len(d.calls)),
		ItemID:     itemID,
		Mode:       string(mode),
		Source:     source,
		Status:     status,
		Message:    message,
		CreatedAt:  now,
		ResolvedAt: &now,
	}, err
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scanner.FrameInterval = 5
	cfg.Scanner.DispatchCooldown = 60
	return cfg
}

func newTestCoordinator(t *testing.T, cam *fakeCamera, dispatcher *fakeDispatcher) *Coordinator {
	t.Helper()
	coordinator := New(testConfig(), cam, passthroughDecoder{}, dispatcher, logging.NewNop())
	t.Cleanup(coordinator.Close)
	return coordinator
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestOpenAndCloseLifecycle(t *testing.T) {
	cam := &fakeCamera{}
	coordinator := newTestCoordinator(t, cam, &fakeDispatcher{})

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := coordinator.Open(context.Background(), ""); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
	if got := coordinator.Status().State; got != StateScanning {
		t.Fatalf("expected scanning, got %s", got)
	}

	coordinator.Close()
	coordinator.Close()
	if got := coordinator.Status().State; got != StateIdle {
		t.Fatalf("expected idle after close, got %s", got)
	}

	events := cam.snapshot()
	if len(events) != 2 || events[0] != "acquire:/dev/video0" || events[1] != "release" {
		t.Fatalf("unexpected camera events %v", events)
	}
}

func TestOpenFailureLeavesClosed(t *testing.T) {
	cam := &fakeCamera{failure: services.ErrCameraUnavailable}
	coordinator := newTestCoordinator(t, cam, &fakeDispatcher{})

	err := coordinator.Open(context.Background(), "/dev/video9")
	if !errors.Is(err, services.ErrCameraUnavailable) {
		t.Fatalf("expected camera unavailable, got %v", err)
	}
	if coordinator.Status().Open {
		t.Fatal("failed open must leave the scanner closed")
	}
}

func TestCameraDetectionDispatches(t *testing.T) {
	cam := &fakeCamera{}
	dispatcher := &fakeDispatcher{message: "Claim approved"}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push("TC:ITEM:" + testItemID)

	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "dispatch never happened")
	waitFor(t, func() bool { return coordinator.Status().LastOutcome == "Claim approved" }, "outcome not recorded")

	status := coordinator.Status()
	if status.LastItemID != testItemID {
		t.Fatalf("unexpected last item %q", status.LastItemID)
	}
	if dispatcher.sources[0] != attempts.SourceCamera {
		t.Fatalf("expected camera source, got %s", dispatcher.sources[0])
	}
}

func TestDedupeSuppressesRepeatedPayload(t *testing.T) {
	cam := &fakeCamera{}
	dispatcher := &fakeDispatcher{}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 5; i++ {
		cam.current.push(testItemID)
	}

	waitFor(t, func() bool { return dispatcher.callCount() >= 1 }, "dispatch never happened")
	waitFor(t, func() bool { return coordinator.Status().State == StateScanning }, "dispatch never resolved")
	// Remaining identical frames fall inside the cooldown window.
	time.Sleep(30 * time.Millisecond)
	if got := dispatcher.callCount(); got != 1 {
		t.Fatalf("expected exactly one dispatch for repeated payload, got %d", got)
	}
}

func TestDedupeAllowsChangedPayload(t *testing.T) {
	cam := &fakeCamera{}
	dispatcher := &fakeDispatcher{}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push(testItemID)
	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "first dispatch never happened")
	waitFor(t, func() bool { return coordinator.Status().State == StateScanning }, "first dispatch never resolved")

	const otherID = "11111111-1111-4111-8111-111111111111"
	cam.current.push(otherID)
	waitFor(t, func() bool { return dispatcher.callCount() == 2 }, "changed payload never dispatched")

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if dispatcher.calls[1] != otherID {
		t.Fatalf("unexpected second dispatch %q", dispatcher.calls[1])
	}
}

func TestDedupeExpiresAfterCooldown(t *testing.T) {
	cam := &fakeCamera{}
	dispatcher := &fakeDispatcher{}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push(testItemID)
	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "first dispatch never happened")
	waitFor(t, func() bool { return coordinator.Status().State == StateScanning }, "first dispatch never resolved")

	time.Sleep(80 * time.Millisecond)
	cam.current.push(testItemID)
	waitFor(t, func() bool { return dispatcher.callCount() == 2 }, "payload not re-dispatched after cooldown")
}

func TestNonActionablePayloadIgnored(t *testing.T) {
	cam := &fakeCamera{}
	dispatcher := &fakeDispatcher{}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push("hello-world")
	cam.current.push(testItemID)

	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "dispatch never happened")
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if dispatcher.calls[0] != testItemID {
		t.Fatalf("non-actionable payload dispatched: %v", dispatcher.calls)
	}
}

func TestManualRejectedWhileDispatchInFlight(t *testing.T) {
	cam := &fakeCamera{}
	gate := make(chan struct{})
	dispatcher := &fakeDispatcher{gate: gate}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push(testItemID)
	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "camera dispatch never started")

	_, err := coordinator.SubmitManual(context.Background(), "11111111-1111-4111-8111-111111111111")
	if !errors.Is(err, ErrDispatchInFlight) {
		t.Fatalf("expected ErrDispatchInFlight, got %v", err)
	}

	close(gate)
	waitFor(t, func() bool { return coordinator.Status().State != StateDispatching }, "dispatch never resolved")
	if got := dispatcher.callCount(); got != 1 {
		t.Fatalf("manual submission must not dispatch concurrently, got %d calls", got)
	}
}

func TestManualSubmitWithoutCamera(t *testing.T) {
	dispatcher := &fakeDispatcher{message: "Item collected"}
	coordinator := newTestCoordinator(t, &fakeCamera{}, dispatcher)

	if err := coordinator.SetMode(dispatch.ModeCollect); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	attempt, err := coordinator.SubmitManual(context.Background(), testItemID)
	if err != nil {
		t.Fatalf("manual submit: %v", err)
	}
	if attempt.Mode != string(dispatch.ModeCollect) {
		t.Fatalf("expected collect mode, got %s", attempt.Mode)
	}
	if dispatcher.sources[0] != attempts.SourceManual {
		t.Fatalf("expected manual source, got %s", dispatcher.sources[0])
	}
}

func TestManualSubmitRejectsUnparseableInput(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	coordinator := newTestCoordinator(t, &fakeCamera{}, dispatcher)

	if _, err := coordinator.SubmitManual(context.Background(), "hello-world"); !errors.Is(err, ErrNoItemID) {
		t.Fatalf("expected ErrNoItemID, got %v", err)
	}
	if dispatcher.callCount() != 0 {
		t.Fatal("unparseable input must not dispatch")
	}
}

func TestManualResubmissionIsTheRetry(t *testing.T) {
	dispatcher := &fakeDispatcher{err: services.ErrActionFailed, message: "Claim rejected"}
	coordinator := newTestCoordinator(t, &fakeCamera{}, dispatcher)

	if _, err := coordinator.SubmitManual(context.Background(), testItemID); !errors.Is(err, services.ErrActionFailed) {
		t.Fatalf("expected action failure, got %v", err)
	}
	if _, err := coordinator.SubmitManual(context.Background(), testItemID); !errors.Is(err, services.ErrActionFailed) {
		t.Fatalf("expected second attempt to run, got %v", err)
	}
	if got := dispatcher.callCount(); got != 2 {
		t.Fatalf("manual resubmission must dispatch again, got %d calls", got)
	}
}

func TestSwitchDeviceReleasesPreviousStreamFirst(t *testing.T) {
	cam := &fakeCamera{}
	coordinator := newTestCoordinator(t, cam, &fakeDispatcher{})

	if err := coordinator.Open(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := coordinator.SwitchDevice(context.Background(), "/dev/video2"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	events := cam.snapshot()
	want := []string{"acquire:/dev/video0", "release", "acquire:/dev/video2"}
	if len(events) != len(want) {
		t.Fatalf("unexpected events %v", events)
	}
	for i, event := range want {
		if events[i] != event {
			t.Fatalf("event %d = %q, want %q", i, events[i], event)
		}
	}
	if got := coordinator.Status().Device; got != "/dev/video2" {
		t.Fatalf("unexpected active device %q", got)
	}
}

func TestSwitchDeviceRequiresOpenScanner(t *testing.T) {
	coordinator := newTestCoordinator(t, &fakeCamera{}, &fakeDispatcher{})
	if err := coordinator.SwitchDevice(context.Background(), "/dev/video1"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestSetModeRejectedWhileDispatching(t *testing.T) {
	cam := &fakeCamera{}
	gate := make(chan struct{})
	dispatcher := &fakeDispatcher{gate: gate}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push(testItemID)
	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "dispatch never started")

	if err := coordinator.SetMode(dispatch.ModeCollect); !errors.Is(err, ErrDispatchInFlight) {
		t.Fatalf("expected ErrDispatchInFlight, got %v", err)
	}

	close(gate)
	waitFor(t, func() bool { return coordinator.Status().State != StateDispatching }, "dispatch never resolved")
	if err := coordinator.SetMode(dispatch.ModeCollect); err != nil {
		t.Fatalf("mode switch after resolve: %v", err)
	}
	if coordinator.Mode() != dispatch.ModeCollect {
		t.Fatal("mode not updated")
	}
}

func TestTeardownDiscardsInFlightResult(t *testing.T) {
	cam := &fakeCamera{}
	gate := make(chan struct{})
	dispatcher := &fakeDispatcher{gate: gate, message: "Claim approved"}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push(testItemID)
	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "dispatch never started")

	coordinator.Close()
	if got := len(cam.snapshot()); got != 2 {
		t.Fatalf("camera not released on close, events %d", got)
	}

	close(gate)
	time.Sleep(20 * time.Millisecond)

	status := coordinator.Status()
	if status.LastOutcome != "" || status.LastItemID != "" {
		t.Fatalf("late dispatch result mutated closed coordinator: %+v", status)
	}
	if status.State != StateIdle {
		t.Fatalf("expected idle, got %s", status.State)
	}
}

func TestOpenIsSingleFlight(t *testing.T) {
	cam := &fakeCamera{}
	started, gate := cam.holdNextAcquire()
	coordinator := newTestCoordinator(t, cam, &fakeDispatcher{})

	errs := make(chan error, 1)
	go func() { errs <- coordinator.Open(context.Background(), "") }()
	<-started

	// The first open is still inside the camera acquire; a second must be
	// rejected rather than racing it to a second frame loop.
	if err := coordinator.Open(context.Background(), ""); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen during pending open, got %v", err)
	}

	close(gate)
	if err := <-errs; err != nil {
		t.Fatalf("first open: %v", err)
	}
	if got := coordinator.Status().State; got != StateScanning {
		t.Fatalf("expected scanning, got %s", got)
	}
	if events := cam.snapshot(); len(events) != 1 {
		t.Fatalf("expected a single acquire, got events %v", events)
	}
}

func TestSwitchDeviceRejectsConcurrentSwitch(t *testing.T) {
	cam := &fakeCamera{}
	coordinator := newTestCoordinator(t, cam, &fakeDispatcher{})
	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}

	started, gate := cam.holdNextAcquire()
	errs := make(chan error, 1)
	go func() { errs <- coordinator.SwitchDevice(context.Background(), "/dev/video1") }()
	<-started

	if err := coordinator.SwitchDevice(context.Background(), "/dev/video2"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy during pending switch, got %v", err)
	}

	close(gate)
	if err := <-errs; err != nil {
		t.Fatalf("first switch: %v", err)
	}
	if got := coordinator.Status().Device; got != "/dev/video1" {
		t.Fatalf("expected /dev/video1 active, got %q", got)
	}
}

func TestCloseDuringSwitchReleasesAcquiredStream(t *testing.T) {
	cam := &fakeCamera{}
	coordinator := newTestCoordinator(t, cam, &fakeDispatcher{})
	if err := coordinator.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}

	started, gate := cam.holdNextAcquire()
	errs := make(chan error, 1)
	go func() { errs <- coordinator.SwitchDevice(context.Background(), "/dev/video1") }()
	<-started

	coordinator.Close()
	close(gate)

	if err := <-errs; !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen for switch racing close, got %v", err)
	}
	events := cam.snapshot()
	if len(events) == 0 || events[len(events)-1] != "release" {
		t.Fatalf("stream acquired mid-close was not released, events %v", events)
	}
	if got := cam.ActiveDevice(); got != "" {
		t.Fatalf("expected no active device, got %q", got)
	}
}

func TestCameraDispatchCarriesDevice(t *testing.T) {
	cam := &fakeCamera{}
	dispatcher := &fakeDispatcher{message: "Claim approved"}
	coordinator := newTestCoordinator(t, cam, dispatcher)

	if err := coordinator.Open(context.Background(), "/dev/video3"); err != nil {
		t.Fatalf("open: %v", err)
	}
	cam.current.push(testItemID)
	waitFor(t, func() bool { return dispatcher.callCount() == 1 }, "dispatch never started")

	dispatcher.mu.Lock()
	device := dispatcher.devices[0]
	dispatcher.mu.Unlock()
	if device != "/dev/video3" {
		t.Fatalf("dispatch context device = %q, want /dev/video3", device)
	}
}
