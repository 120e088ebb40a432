package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"hirelens/internal/logging"
	"hirelens/internal/services"
)

var connectUEvents = func(conn *netlink.UEventConn) error {
	return conn.Connect(netlink.UdevEvent)
}

// DeviceLost reports the removal of a device held by a session.
type DeviceLost struct {
	Device    string
	Subsystem string
}

// DeviceMonitor listens for udev removal events and reports the devices a
// session holds.
type DeviceMonitor struct {
	logger  *slog.Logger
	handler func(DeviceLost)
	devices map[string]struct{}

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewDeviceMonitor creates a monitor for the given device paths. Only
// absolute device nodes can be watched; it returns nil when none remain.
func NewDeviceMonitor(logger *slog.Logger, devices []string, handler func(DeviceLost)) *DeviceMonitor {
	watched := make(map[string]struct{}, len(devices))
	for _, device := range devices {
		device = strings.TrimSpace(device)
		if strings.HasPrefix(device, "/dev/") {
			watched[device] = struct{}{}
		}
	}
	if len(watched) == 0 {
		return nil
	}
	return &DeviceMonitor{
		logger:  logging.NewComponentLogger(logger, "device-monitor"),
		handler: handler,
		devices: watched,
	}
}

// Start begins listening for udev netlink events. A socket that cannot be
// opened is reported as ErrDeviceUnavailable and leaves the monitor stopped.
func (m *DeviceMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := connectUEvents(conn); err != nil {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "monitor", "connect udev netlink socket", err)
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Debug("device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"),
		logging.Int("devices", len(m.devices)),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *DeviceMonitor) Stop() {
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

	m.logger.Debug("device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *DeviceMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *DeviceMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	matcher := m.buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "unplug detection may be affected"),
			)
		}
	}
}

// buildMatcher matches ACTION=remove for SUBSYSTEM=video4linux|sound.
func (m *DeviceMonitor) buildMatcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux|sound",
		},
	})
	return rules
}

func (m *DeviceMonitor) handleEvent(uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" {
		return
	}
	if _, ok := m.devices[devname]; !ok {
		m.logger.Debug("ignoring removal of unwatched device", logging.String("device", devname))
		return
	}
	lost := DeviceLost{Device: devname, Subsystem: uevent.Env["SUBSYSTEM"]}
	m.logger.Warn("capture device removed",
		logging.String(logging.FieldEventType, "device_lost"),
		logging.String("device", devname),
		logging.String(logging.FieldErrorHint, "reconnect the device before the next attempt"),
		logging.String(logging.FieldImpact, "the current attempt is stopped"),
	)
	if m.handler != nil {
		m.handler(lost)
	}
}

// extractDeviceName gets the device node from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
