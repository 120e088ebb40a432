package capture

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"hirelens/internal/services"
)

func TestNewDeviceMonitor(t *testing.T) {
	if m := NewDeviceMonitor(nil, nil, nil); m != nil {
		t.Error("expected nil monitor without devices")
	}
	if m := NewDeviceMonitor(nil, []string{"pulse:default", "/tmp/frames"}, nil); m != nil {
		t.Error("expected nil monitor when no device node is held")
	}
	m := NewDeviceMonitor(nil, []string{"/dev/video0", "pulse:default"}, nil)
	if m == nil {
		t.Fatal("expected non-nil monitor")
	}
	if _, ok := m.devices["/dev/video0"]; !ok || len(m.devices) != 1 {
		t.Fatalf("unexpected watched devices %v", m.devices)
	}
}

func TestDeviceMonitorStopStartIdempotency(t *testing.T) {
	t.Run("nil monitor is safe", func(t *testing.T) {
		var m *DeviceMonitor
		m.Stop()
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start on nil monitor should return nil, got %v", err)
		}
		if m.Running() {
			t.Error("nil monitor should not be running")
		}
	})

	t.Run("double stop is safe", func(t *testing.T) {
		m := NewDeviceMonitor(nil, []string{"/dev/video0"}, nil)
		m.Stop()
		m.Stop()
		if m.Running() {
			t.Error("expected Running() false after Stop")
		}
	})

	t.Run("start then stop", func(t *testing.T) {
		m := NewDeviceMonitor(nil, []string{"/dev/video0"}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		// Connect may fail without privileges.
		if err := m.Start(ctx); err != nil {
			if !errors.Is(err, services.ErrDeviceUnavailable) {
				t.Fatalf("Start: %v", err)
			}
			if m.Running() {
				t.Error("failed start should leave the monitor stopped")
			}
			return
		}
		m.Stop()
		if m.Running() {
			t.Error("expected Running() false after Stop")
		}
	})
}

func TestDeviceMonitorStartReportsConnectFailure(t *testing.T) {
	original := connectUEvents
	t.Cleanup(func() { connectUEvents = original })
	connectUEvents = func(*netlink.UEventConn) error { return syscall.EPERM }

	m := NewDeviceMonitor(nil, []string{"/dev/video0"}, nil)
	err := m.Start(context.Background())
	if !errors.Is(err, services.ErrDeviceUnavailable) || !errors.Is(err, syscall.EPERM) {
		t.Fatalf("Start error = %v, want device unavailable wrapping EPERM", err)
	}
	if m.Running() {
		t.Error("monitor should not run after a failed connect")
	}
}

func TestDeviceMonitorMatcher(t *testing.T) {
	m := NewDeviceMonitor(nil, []string{"/dev/video0"}, nil)
	matcher := m.buildMatcher()

	removeCamera := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "/dev/video0"},
	}
	if !matcher.Evaluate(removeCamera) {
		t.Error("expected camera removal to match")
	}

	removeSound := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "sound", "DEVNAME": "/dev/snd/pcmC0D0c"},
	}
	if !matcher.Evaluate(removeSound) {
		t.Error("expected sound removal to match")
	}

	addCamera := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "/dev/video0"},
	}
	if matcher.Evaluate(addCamera) {
		t.Error("expected ADD action to be ignored")
	}

	removeDisk := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVNAME": "/dev/sda"},
	}
	if matcher.Evaluate(removeDisk) {
		t.Error("expected block device removal to be ignored")
	}
}

func TestDeviceMonitorHandleEvent(t *testing.T) {
	var lost []DeviceLost
	m := NewDeviceMonitor(nil, []string{"/dev/video0"}, func(d DeviceLost) { lost = append(lost, d) })

	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{}})
	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "/dev/video1"}})
	if len(lost) != 0 {
		t.Fatalf("expected no events for unwatched devices, got %v", lost)
	}

	m.handleEvent(netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"DEVNAME": "video0", "SUBSYSTEM": "video4linux"},
	})
	if len(lost) != 1 || lost[0].Device != "/dev/video0" || lost[0].Subsystem != "video4linux" {
		t.Fatalf("unexpected device lost events %v", lost)
	}
}

func TestExtractDeviceName(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"DEVNAME": "/dev/video0"}, "/dev/video0"},
		{map[string]string{"DEVNAME": "snd/pcmC1D0c"}, "/dev/snd/pcmC1D0c"},
		{map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/video4linux/video2"}, "/dev/video2"},
		{map[string]string{}, ""},
	}
	for _, tc := range tests {
		if got := extractDeviceName(netlink.UEvent{Env: tc.env}); got != tc.want {
			t.Errorf("extractDeviceName(%v) = %q, want %q", tc.env, got, tc.want)
		}
	}
}

func TestDescribeDevice(t *testing.T) {
	camera, ok := describeDevice(t.TempDir(), map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "video0"})
	if !ok || camera.Kind != "camera" || camera.Path != "/dev/video0" || camera.Input != "/dev/video0" {
		t.Fatalf("unexpected camera %+v ok=%v", camera, ok)
	}
	if camera.Name != "video0" {
		t.Fatalf("expected name fallback to devname, got %q", camera.Name)
	}

	mic, ok := describeDevice(t.TempDir(), map[string]string{"SUBSYSTEM": "sound", "DEVNAME": "snd/pcmC1D2c"})
	if !ok || mic.Kind != "microphone" || mic.Input != "hw:1,2" {
		t.Fatalf("unexpected microphone %+v ok=%v", mic, ok)
	}

	if _, ok := describeDevice("", map[string]string{"SUBSYSTEM": "sound", "DEVNAME": "snd/pcmC0D0p"}); ok {
		t.Fatal("playback endpoints should be skipped")
	}
	if _, ok := describeDevice("", map[string]string{"SUBSYSTEM": "sound", "DEVNAME": "snd/controlC0"}); ok {
		t.Fatal("control devices should be skipped")
	}
	if _, ok := describeDevice("", map[string]string{"SUBSYSTEM": "video4linux"}); ok {
		t.Fatal("devices without a node should be skipped")
	}
}
