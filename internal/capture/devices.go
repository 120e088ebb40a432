package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
)

// Device kinds reported by ListDevices.
const (
	KindCamera     = "camera"
	KindMicrophone = "microphone"
)

// Device describes a capture-capable device node found through udev.
type Device struct {
	Path      string
	Subsystem string
	Kind      string
	Name      string
	Input     string
	Access    error
}

var pcmCapturePattern = regexp.MustCompile(`^snd/pcmC(\d+)D(\d+)c$`)

// ListDevices crawls sysfs for cameras and capture-capable sound devices.
func ListDevices(ctx context.Context) ([]Device, error) {
	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	quit := crawler.ExistingDevices(queue, errs, deviceMatcher())

	var devices []Device
	for {
		select {
		case <-ctx.Done():
			select {
			case quit <- struct{}{}:
			default:
			}
			go func() {
				for range queue {
				}
			}()
			return nil, ctx.Err()
		case dev, ok := <-queue:
			if !ok {
				select {
				case err := <-errs:
					return devices, fmt.Errorf("crawl devices: %w", err)
				default:
				}
				sortDevices(devices)
				return devices, nil
			}
			if d, ok := describeDevice(dev.KObj, dev.Env); ok {
				devices = append(devices, d)
			}
		}
	}
}

func deviceMatcher() netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"SUBSYSTEM": "video4linux|sound",
			"DEVNAME":   ".+",
		},
	})
	return rules
}

// describeDevice turns a udev environment into a Device. Sound devices other
// than PCM capture endpoints are skipped.
func describeDevice(kobj string, env map[string]string) (Device, bool) {
	devname := strings.TrimPrefix(env["DEVNAME"], "/dev/")
	if devname == "" {
		return Device{}, false
	}
	d := Device{
		Path:      "/dev/" + devname,
		Subsystem: env["SUBSYSTEM"],
	}
	switch d.Subsystem {
	case "video4linux":
		if !strings.HasPrefix(devname, "video") {
			return Device{}, false
		}
		d.Kind = KindCamera
		d.Input = d.Path
		d.Name = readSysfsValue(filepath.Join(kobj, "name"))
	case "sound":
		m := pcmCapturePattern.FindStringSubmatch(devname)
		if m == nil {
			return Device{}, false
		}
		d.Kind = KindMicrophone
		d.Input = fmt.Sprintf("hw:%s,%s", m[1], m[2])
		d.Name = readSysfsValue(filepath.Join(filepath.Dir(kobj), "id"))
	default:
		return Device{}, false
	}
	if d.Name == "" {
		d.Name = devname
	}
	d.Access = CheckAccess(d.Path)
	return d, true
}

func readSysfsValue(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func sortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Kind != devices[j].Kind {
			return devices[i].Kind < devices[j].Kind
		}
		return devices[i].Path < devices[j].Path
	})
}
