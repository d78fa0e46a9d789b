package daemon

import (
	"context"
	"strings"
	"sync"

	"log/slog"

	"github.com/pilebones/go-udev/netlink"

	"claimscan/internal/logging"
)

// hotplugMonitor listens for udev netlink events on the video4linux
// subsystem so camera attach and detach show up in the daemon log without
// polling /sys.
type hotplugMonitor struct {
	logger  *slog.Logger
	handler func(action, device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newHotplugMonitor(logger *slog.Logger) *hotplugMonitor {
	return &hotplugMonitor{
		logger: logging.NewComponentLogger(logger, "hotplug-monitor"),
	}
}

// Start begins listening for udev netlink events. Failure to connect is
// non-fatal; the daemon still works with a fixed camera.
func (m *hotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; camera hotplug events will not be reported",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the hotplug monitor.
func (m *hotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the hotplug monitor is active.
func (m *hotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *hotplugMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
			)
		}
	}
}

// buildMatcher matches camera attach/detach: SUBSYSTEM=video4linux, ACTION=add|remove.
func (m *hotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *hotplugMonitor) handleEvent(uevent netlink.UEvent) {
	device := extractDeviceName(uevent)
	if device == "" {
		return
	}

	m.logger.Info("camera hotplug event",
		logging.String(logging.FieldDevice, device),
		logging.String("action", string(uevent.Action)),
		logging.String(logging.FieldEventType, "camera_hotplug"),
	)

	if m.handler != nil {
		m.handler(string(uevent.Action), device)
	}
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if strings.HasPrefix(devname, "/dev/") {
			return devname
		}
		return "/dev/" + devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
